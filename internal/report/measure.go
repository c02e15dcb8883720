package report

import (
	"strings"

	"github.com/go-pdf/fpdf"
)

// measurer wraps text with the core-font metrics the PDF writer uses, so
// layout decisions and drawn lines agree.
type measurer struct {
	pdf *fpdf.Fpdf
}

func newMeasurer() *measurer {
	return &measurer{pdf: newPDF()}
}

func newPDF() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(MarginLeft, BodyTop, MarginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	return pdf
}

func (m *measurer) wrap(style TextStyle, text string, width float64) []string {
	text = latin1(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.pdf.SetFont(style.Family, style.Style, style.Size)
	var out []string
	for _, line := range m.pdf.SplitText(text, width) {
		out = append(out, strings.TrimRight(line, " "))
	}
	return out
}

var latinFolds = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", ",",
	"“", `"`, "”", `"`, "„", `"`,
	"–", "-", "—", "-", "−", "-",
	"•", "-", "…", "...", " ", " ",
	"→", "->", "\t", "    ",
)

// latin1 folds common typographic characters to ASCII and replaces the
// rest of what the core fonts cannot draw.
func latin1(s string) string {
	s = latinFolds.Replace(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return ' '
		case r < 0x20 || (r >= 0x7f && r < 0xa0):
			return -1
		case r > 0xff:
			return '?'
		}
		return r
	}, s)
}
