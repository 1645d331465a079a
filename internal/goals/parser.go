package goals

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	orderedPrefixRe = regexp.MustCompile(`^\d+\.\s`)
	percentRe       = regexp.MustCompile(`(\d+)%`)
	ruleLineRe      = regexp.MustCompile(`^-{3,}$`)
)

// statusRule recognizes a status marker in item text. Rules are applied
// in a fixed order: the first match wins and later rules are skipped,
// except the percent override which always runs last.
type statusRule struct {
	match  func(text string) bool
	status Status
	clean  func(text string) string
}

func prefixRule(prefix string, status Status) statusRule {
	return statusRule{
		match:  func(text string) bool { return strings.HasPrefix(text, prefix) },
		status: status,
		clean:  func(text string) string { return text[len(prefix):] },
	}
}

func containsAnyRule(status Status, strip string, needles ...string) statusRule {
	return statusRule{
		match: func(text string) bool {
			for _, n := range needles {
				if strings.Contains(text, n) {
					return true
				}
			}
			return false
		},
		status: status,
		clean: func(text string) string {
			if strip == "" {
				return text
			}
			return strings.TrimSpace(strings.Replace(text, strip, "", 1))
		},
	}
}

// statusRules is the recognizer order: explicit bracket tokens first,
// then emoji/keyword markers.
var statusRules = []statusRule{
	prefixRule("[x] ", StatusCompleted),
	prefixRule("[X] ", StatusCompleted),
	prefixRule("[/] ", StatusInProgress),
	prefixRule("[ ] ", StatusPending),
	prefixRule("[!] ", StatusBlocked),
	containsAnyRule(StatusCompleted, "✅", "✅", "Done", "done"),
	containsAnyRule(StatusInProgress, "", "🔧", "In Progress", "WIP"),
	containsAnyRule(StatusBlocked, "", "🚧", "Blocked"),
}

// Parse converts markdown-style goal text into a section tree.
//
// Heading levels 1 and 2 open a new section, level 3 opens a subsection
// carried as a pseudo-item. List items become tasks; table rows and
// horizontal rules are skipped; any other prose inside a section is kept
// as a context item. List items appearing before any heading go into a
// default "Goals" section.
func Parse(markdownText string) *Document {
	lines := strings.Split(markdownText, "\n")
	doc := &Document{Raw: markdownText}

	var currentSection *Section
	var currentSubsection *Item

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// H1 or H2 = new section
		if strings.HasPrefix(trimmed, "## ") || strings.HasPrefix(trimmed, "# ") {
			title := strings.TrimLeft(trimmed, "#")
			currentSection = &Section{
				ID:    generateID(),
				Title: strings.TrimSpace(title),
				Items: []*Item{},
			}
			doc.Sections = append(doc.Sections, currentSection)
			currentSubsection = nil
			continue
		}

		// H3 = subsection, carried as a special item
		if strings.HasPrefix(trimmed, "### ") {
			if currentSection != nil {
				currentSubsection = &Item{
					ID:           generateID(),
					Text:         strings.TrimSpace(strings.TrimPrefix(trimmed, "###")),
					Status:       StatusPending,
					IsSubsection: true,
					Items:        []*Item{},
				}
				currentSection.Items = append(currentSection.Items, currentSubsection)
			}
			continue
		}

		// List items
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || orderedPrefixRe.MatchString(trimmed) {
			text := strings.TrimPrefix(strings.TrimPrefix(trimmed, "- "), "* ")
			text = orderedPrefixRe.ReplaceAllString(text, "")
			item := parseItem(text)

			switch {
			case currentSubsection != nil:
				currentSubsection.Items = append(currentSubsection.Items, item)
			case currentSection != nil:
				currentSection.Items = append(currentSection.Items, item)
			default:
				currentSection = &Section{
					ID:    generateID(),
					Title: "Goals",
					Items: []*Item{item},
				}
				doc.Sections = append(doc.Sections, currentSection)
			}
			continue
		}

		// Plain prose inside a section becomes a context item
		if currentSection != nil {
			// Skip table rows and horizontal rules
			if strings.HasPrefix(trimmed, "|") {
				continue
			}
			if trimmed == "***" || ruleLineRe.MatchString(trimmed) {
				continue
			}

			currentSection.Items = append(currentSection.Items, &Item{
				ID:        generateID(),
				Text:      trimmed,
				Status:    StatusContext,
				IsContext: true,
			})
		}
	}

	return doc
}

// parseItem extracts the status marker from a single item's text
func parseItem(text string) *Item {
	status := StatusPending
	cleanText := text

	for _, rule := range statusRules {
		if rule.match(text) {
			status = rule.status
			cleanText = rule.clean(text)
			break
		}
	}

	item := &Item{
		ID:     generateID(),
		Text:   cleanText,
		Status: status,
	}

	// A completion percentage overrides the marker-derived status
	if m := percentRe.FindStringSubmatch(cleanText); m != nil {
		if percent, err := strconv.Atoi(m[1]); err == nil {
			item.Percent = &percent
			if percent >= 100 {
				item.Status = StatusCompleted
			} else if percent > 0 {
				item.Status = StatusInProgress
			}
		}
	}

	return item
}
