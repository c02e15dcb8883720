// Package report lays a finished run out as a paginated A4 document and
// writes it as PDF or plain text.
package report

import (
	"fmt"
	"strings"
	"time"

	"hawkkeyed-backend/internal/shared/util"
	"hawkkeyed-backend/internal/workflow"
)

const (
	Product         = "HAWKKEYED"
	excerptChars    = 90
	idTimeLayout    = "20060102-150405"
	methodologyText = "Methodology: generated by Hawkkeyed from a structured extraction pass followed by a narrative synthesis pass. AI output can be wrong; verify important facts against the source."
)

// BlockKind identifies how a block is drawn.
type BlockKind string

const (
	BlockSection     BlockKind = "section"
	BlockSubsection  BlockKind = "subsection"
	BlockParagraph   BlockKind = "paragraph"
	BlockBullet      BlockKind = "bullet"
	BlockNumbered    BlockKind = "numbered"
	BlockEmailDraft  BlockKind = "email_draft"
	BlockMethodology BlockKind = "methodology"
)

// Block is an atomic unit of content: it is always drawn on a single page.
type Block struct {
	Kind BlockKind
	// Lines holds the wrapped text as it will be drawn.
	Lines []string
	// Subject holds the wrapped subject lines of an email draft box.
	Subject []string
	// Marker is the list number for numbered items.
	Marker    string
	Continued bool
	Y         float64
	Height    float64
}

// Bottom is the y offset where the block ends.
func (b Block) Bottom() float64 {
	return b.Y + b.Height
}

// Page is one laid-out page.
type Page struct {
	Number int
	Blocks []Block
}

// Header repeats at the top of every page.
type Header struct {
	Product string
	Label   string
	Excerpt string
}

// Document is the result of laying out a run.
type Document struct {
	ID       string
	Workflow workflow.Kind
	Header   Header
	Pages    []Page
	Created  time.Time
}

// Filename is the download name of the PDF.
func (d Document) Filename() string {
	return d.ID + ".pdf"
}

// Footer is the text printed at the bottom of page n.
func (d Document) Footer(n int) string {
	return fmt.Sprintf("Page %d of %d", n, len(d.Pages))
}

// DocumentID derives the report identifier from the workflow and run time.
func DocumentID(kind workflow.Kind, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s", strings.ToLower(Product), kind, ts.UTC().Format(idTimeLayout))
}

// excerpt strips newlines, collapses whitespace and caps the source text.
func excerpt(input string) string {
	flat := strings.Join(strings.Fields(input), " ")
	if len([]rune(flat)) <= excerptChars {
		return flat
	}
	return util.Truncate(flat, excerptChars-3) + "..."
}
