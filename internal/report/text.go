package report

import (
	"strings"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

const textTitle = "HAWKKEYED AI ANALYSIS REPORT"

// Text renders the plain-text export of a run, following the same section
// plan as the PDF.
func Text(res workflow.RunResult, generated time.Time) string {
	var b strings.Builder
	b.WriteString(textTitle)
	b.WriteString("\n")
	b.WriteString(res.Workflow.Title())
	b.WriteString("\n\n")

	for _, s := range plan(res) {
		if s.title != "" {
			b.WriteString(strings.ToUpper(s.title))
			b.WriteString("\n\n")
		}
		for _, it := range s.items {
			switch it.kind {
			case BlockSubsection:
				b.WriteString(it.text + "\n")
			case BlockBullet:
				b.WriteString("- " + it.text + "\n")
			case BlockNumbered:
				b.WriteString(it.marker + " " + it.text + "\n")
			case BlockEmailDraft:
				b.WriteString("Subject: " + it.subject + "\n\n" + it.text + "\n")
			default:
				b.WriteString(it.text + "\n\n")
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(methodologyText)
	b.WriteString("\n\nGenerated: ")
	b.WriteString(generated.UTC().Format(time.RFC1123))
	b.WriteString("\n")
	return b.String()
}

// TextFilename is the download name of the plain-text export.
func TextFilename(res workflow.RunResult) string {
	return DocumentID(res.Workflow, res.Timestamp) + ".txt"
}
