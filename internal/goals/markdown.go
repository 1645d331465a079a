package goals

import "strings"

// Serialize converts a document back to markdown. All statuses are
// normalized to bracket tokens regardless of how they were written in
// the source text.
func Serialize(doc *Document) string {
	var md strings.Builder

	for _, section := range doc.Sections {
		md.WriteString("## " + section.Title + "\n\n")

		for _, item := range section.Items {
			if item.IsSubsection {
				md.WriteString("### " + item.Text + "\n")
				for _, sub := range item.Items {
					md.WriteString("- " + statusMarker(sub.Status) + sub.Text + "\n")
				}
				continue
			}
			md.WriteString("- " + statusMarker(item.Status) + item.Text + "\n")
		}
		md.WriteString("\n")
	}

	return strings.TrimSpace(md.String())
}

// statusMarker returns the bracket token for a status
func statusMarker(status Status) string {
	switch status {
	case StatusCompleted:
		return "[x] "
	case StatusInProgress:
		return "[/] "
	case StatusBlocked:
		return "[!] "
	default:
		return "[ ] "
	}
}
