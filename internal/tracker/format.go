package tracker

import (
	"fmt"
	"strings"

	"github.com/Jack-Gledhill/bugbot/internal/report"
)

// NameFunc maps a user id to a display name.
type NameFunc func(id string) string

// Title returns the issue title for r.
func Title(r *report.Report) string {
	return fmt.Sprintf("#%d - %s", r.ID, r.Short)
}

// Body returns the markdown issue body for r.
func Body(r *report.Report, name NameFunc) string {
	if name == nil {
		name = func(id string) string { return id }
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Reported by:** %s\n\n", name(r.ReporterID))
	fmt.Fprintf(&b, "### Short description\n%s\n\n", r.Short)
	b.WriteString("### Steps to reproduce\n")
	for i, step := range r.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	fmt.Fprintf(&b, "\n### Expected result\n%s\n\n", r.Expected)
	fmt.Fprintf(&b, "### Actual result\n%s\n\n", r.Actual)
	fmt.Fprintf(&b, "### Software version\n%s\n\n", r.Software)

	b.WriteString("### Reproducibility\n")
	for _, s := range r.Approvals() {
		fmt.Fprintf(&b, "✅ **%s**: %s\n", name(s.Reviewer), s.Text)
	}
	for _, s := range r.Denials() {
		fmt.Fprintf(&b, "❌ **%s**: %s\n", name(s.Reviewer), s.Text)
	}

	b.WriteString("\n### Attachments\n")
	writeEntries(&b, "📎", r.Attachments, name, "*Nothing was attached to this report.*")
	b.WriteString("\n### Notes\n")
	writeEntries(&b, "📝", r.Notes, name, "*Nothing to note for this report.*")
	fmt.Fprintf(&b, "\n<sub>Report #%d</sub>\n", r.ID)
	return b.String()
}

func writeEntries(b *strings.Builder, emoji string, entries []report.Entry, name NameFunc, empty string) {
	if len(entries) == 0 {
		b.WriteString(empty + "\n")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(b, "%s **%s**: %s\n", emoji, name(e.Author), e.Content)
	}
}
