// Package goals parses, mutates, and serializes hierarchical goal
// documents kept in a markdown-ish format
package goals

import (
	"fmt"
	"math/rand"
	"time"
)

// Status of a goal item
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	// StatusContext marks prose carried along with the goals, not a task
	StatusContext Status = "context"
)

// ValidStatus reports whether s is a settable task status
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Item is a single goal, context line, or subsection heading
type Item struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	Status       Status  `json:"status"`
	Percent      *int    `json:"percent,omitempty"`
	IsSubsection bool    `json:"isSubsection,omitempty"`
	IsContext    bool    `json:"isContext,omitempty"`
	Items        []*Item `json:"items,omitempty"`
}

// Section groups items under a heading
type Section struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Items     []*Item `json:"items"`
	Collapsed bool    `json:"collapsed"`
}

// Document is a full goal tree plus the raw text it came from
type Document struct {
	Sections []*Section `json:"sections"`
	Raw      string     `json:"raw"`
}

// Stats summarizes task counts across a document. Subsection headings
// are not counted; context lines count toward pending.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
	Blocked    int `json:"blocked"`
	Pending    int `json:"pending"`
}

// generateID returns a unique item/section ID
func generateID() string {
	return fmt.Sprintf("goal_%d_%s", time.Now().UnixMilli(), randomSuffix(9))
}

func randomSuffix(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

func cloneItem(item *Item) *Item {
	if item == nil {
		return nil
	}
	copy := *item
	if item.Percent != nil {
		p := *item.Percent
		copy.Percent = &p
	}
	if item.Items != nil {
		copy.Items = make([]*Item, len(item.Items))
		for i, sub := range item.Items {
			copy.Items[i] = cloneItem(sub)
		}
	}
	return &copy
}

func cloneSection(s *Section) *Section {
	if s == nil {
		return nil
	}
	copy := *s
	copy.Items = make([]*Item, len(s.Items))
	for i, item := range s.Items {
		copy.Items[i] = cloneItem(item)
	}
	return &copy
}

func cloneDocument(doc *Document) *Document {
	if doc == nil {
		return nil
	}
	copy := &Document{Raw: doc.Raw, Sections: make([]*Section, len(doc.Sections))}
	for i, s := range doc.Sections {
		copy.Sections[i] = cloneSection(s)
	}
	return copy
}
