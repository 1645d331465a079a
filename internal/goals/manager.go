package goals

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
)

// Store is the persistence interface for goal documents
type Store interface {
	// LoadDocument returns the stored markdown and structured JSON for
	// an owner. Both empty means no document exists yet.
	LoadDocument(owner string) (markdown string, docJSON string, err error)
	SaveDocument(owner, markdown, docJSON string) error
}

// Manager holds goal documents per owner. All reads and mutations go
// through the manager's mutex so concurrent edits cannot lose updates.
type Manager struct {
	mu    sync.Mutex
	docs  map[string]*Document
	store Store
}

// NewManager creates a goals manager backed by the given store.
// A nil store keeps all documents in memory.
func NewManager(store Store) *Manager {
	return &Manager{
		docs:  make(map[string]*Document),
		store: store,
	}
}

// getOrLoad returns the live document for an owner, loading it from the
// store on first access. Store failures degrade to an empty document.
// Must be called with the lock held.
func (m *Manager) getOrLoad(owner string) *Document {
	if doc, ok := m.docs[owner]; ok {
		return doc
	}

	doc := &Document{}
	if m.store != nil {
		markdown, docJSON, err := m.store.LoadDocument(owner)
		switch {
		case err != nil:
			log.Printf("⚠️ [Goals] Failed to load document for %s, starting empty: %v", owner, err)
		case docJSON != "" && docJSON != "{}":
			if err := json.Unmarshal([]byte(docJSON), doc); err != nil {
				log.Printf("⚠️ [Goals] Corrupt stored document for %s, reparsing markdown: %v", owner, err)
				doc = Parse(markdown)
			}
		case markdown != "":
			doc = Parse(markdown)
		}
	}

	m.docs[owner] = doc
	return doc
}

// save serializes and persists the document, logging on failure. The
// in-memory state stays authoritative either way. Lock must be held.
func (m *Manager) save(owner string, doc *Document) {
	markdown := Serialize(doc)
	doc.Raw = markdown

	if m.store == nil {
		return
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		log.Printf("⚠️ [Goals] Failed to encode document for %s: %v", owner, err)
		return
	}
	if err := m.store.SaveDocument(owner, markdown, string(docJSON)); err != nil {
		log.Printf("⚠️ [Goals] Failed to persist document for %s: %v", owner, err)
	}
}

// SetMarkdown replaces the owner's document with freshly parsed text
func (m *Manager) SetMarkdown(owner, markdown string) *Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := Parse(markdown)
	m.docs[owner] = doc
	m.save(owner, doc)
	return cloneDocument(doc)
}

// GetDocument returns a copy of the owner's document
func (m *Manager) GetDocument(owner string) *Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneDocument(m.getOrLoad(owner))
}

// Markdown returns the owner's document serialized to markdown
func (m *Manager) Markdown(owner string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Serialize(m.getOrLoad(owner))
}

// find locates the first item whose text contains the search string,
// case-insensitively. Top-level items are checked before their
// subsection children, in document order. Lock must be held.
func (m *Manager) find(doc *Document, searchText string) *Item {
	searchLower := strings.ToLower(searchText)

	for _, section := range doc.Sections {
		for _, item := range section.Items {
			if strings.Contains(strings.ToLower(item.Text), searchLower) {
				return item
			}
			for _, sub := range item.Items {
				if strings.Contains(strings.ToLower(sub.Text), searchLower) {
					return sub
				}
			}
		}
	}
	return nil
}

// Find returns a copy of the first item matching the search text
func (m *Manager) Find(owner, searchText string) (*Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.find(m.getOrLoad(owner), searchText)
	if item == nil {
		return nil, false
	}
	return cloneItem(item), true
}

// Complete marks the first matching item as completed
func (m *Manager) Complete(owner, searchText string) (*Item, bool) {
	return m.setStatus(owner, searchText, StatusCompleted)
}

// Start marks the first matching item as in-progress
func (m *Manager) Start(owner, searchText string) (*Item, bool) {
	return m.setStatus(owner, searchText, StatusInProgress)
}

func (m *Manager) setStatus(owner, searchText string, status Status) (*Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)
	item := m.find(doc, searchText)
	if item == nil {
		return nil, false
	}

	item.Status = status
	m.save(owner, doc)
	return cloneItem(item), true
}

// Add inserts a new goal at the top of a section. The section hint is
// matched case-insensitively against section titles; with no match the
// first urgency-sounding section wins, then the first section, and an
// empty document gets a fresh "Goals" section.
func (m *Manager) Add(owner, text, sectionHint string, status Status) (*Section, *Item) {
	if !ValidStatus(status) {
		status = StatusPending
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)

	var target *Section
	if sectionHint != "" {
		hintLower := strings.ToLower(sectionHint)
		for _, s := range doc.Sections {
			if strings.Contains(strings.ToLower(s.Title), hintLower) {
				target = s
				break
			}
		}
	}

	if target == nil && len(doc.Sections) > 0 {
		for _, s := range doc.Sections {
			title := strings.ToLower(s.Title)
			if strings.Contains(title, "immediate") || strings.Contains(title, "today") || strings.Contains(title, "priority") {
				target = s
				break
			}
		}
		if target == nil {
			target = doc.Sections[0]
		}
	}

	if target == nil {
		target = &Section{
			ID:    generateID(),
			Title: "Goals",
			Items: []*Item{},
		}
		doc.Sections = append(doc.Sections, target)
	}

	item := &Item{
		ID:     generateID(),
		Text:   text,
		Status: status,
	}

	// Prepend for visibility
	target.Items = append([]*Item{item}, target.Items...)
	m.save(owner, doc)

	return cloneSection(target), cloneItem(item)
}

// Remove deletes the first matching item. Within each section the
// top-level items are scanned before subsection children.
func (m *Manager) Remove(owner, searchText string) (*Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)
	searchLower := strings.ToLower(searchText)

	for _, section := range doc.Sections {
		for i, item := range section.Items {
			if strings.Contains(strings.ToLower(item.Text), searchLower) {
				section.Items = append(section.Items[:i], section.Items[i+1:]...)
				m.save(owner, doc)
				return cloneItem(item), true
			}
		}
		for _, item := range section.Items {
			for i, sub := range item.Items {
				if strings.Contains(strings.ToLower(sub.Text), searchLower) {
					item.Items = append(item.Items[:i], item.Items[i+1:]...)
					m.save(owner, doc)
					return cloneItem(sub), true
				}
			}
		}
	}
	return nil, false
}

// Update rewrites the text of the first matching item
func (m *Manager) Update(owner, searchText, newText string) (*Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)
	item := m.find(doc, searchText)
	if item == nil {
		return nil, false
	}

	item.Text = newText
	m.save(owner, doc)
	return cloneItem(item), true
}

// ToggleSection flips the collapsed flag of a section
func (m *Manager) ToggleSection(owner, sectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)
	for _, s := range doc.Sections {
		if s.ID == sectionID {
			s.Collapsed = !s.Collapsed
			m.save(owner, doc)
			return true
		}
	}
	return false
}

// Reorder moves the dragged item in front of the target item. Both are
// located by ID among top-level section items; moves across sections
// are allowed.
func (m *Manager) Reorder(owner, draggedID, targetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)

	var draggedSection, targetSection *Section
	draggedIndex, targetIndex := -1, -1

	for _, section := range doc.Sections {
		for i, item := range section.Items {
			if item.ID == draggedID && draggedIndex == -1 {
				draggedSection, draggedIndex = section, i
			}
			if item.ID == targetID && targetIndex == -1 {
				targetSection, targetIndex = section, i
			}
		}
	}

	if draggedIndex == -1 || targetIndex == -1 {
		return false
	}

	dragged := draggedSection.Items[draggedIndex]
	draggedSection.Items = append(draggedSection.Items[:draggedIndex], draggedSection.Items[draggedIndex+1:]...)

	// Removing the dragged item shifts the target when it sat later in
	// the same section
	if draggedSection == targetSection && draggedIndex < targetIndex {
		targetIndex--
	}

	targetSection.Items = append(targetSection.Items[:targetIndex],
		append([]*Item{dragged}, targetSection.Items[targetIndex:]...)...)

	m.save(owner, doc)
	return true
}

// GetStats summarizes task counts for the owner's document
func (m *Manager) GetStats(owner string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.getOrLoad(owner)
	var stats Stats

	count := func(status Status) {
		stats.Total++
		switch status {
		case StatusCompleted:
			stats.Completed++
		case StatusInProgress:
			stats.InProgress++
		case StatusBlocked:
			stats.Blocked++
		}
	}

	for _, section := range doc.Sections {
		for _, item := range section.Items {
			if !item.IsSubsection {
				count(item.Status)
			}
			for _, sub := range item.Items {
				count(sub.Status)
			}
		}
	}

	stats.Pending = stats.Total - stats.Completed - stats.InProgress - stats.Blocked
	return stats
}
