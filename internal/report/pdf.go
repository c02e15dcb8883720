package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// WritePDF draws a laid-out document. It follows the page and block
// positions in doc exactly and never re-flows content.
func WritePDF(doc Document, w io.Writer) error {
	pdf := newPDF()
	pdf.SetTitle(fmt.Sprintf("%s %s report", Product, doc.Header.Label), true)
	pdf.SetCreator(Product, true)
	if !doc.Created.IsZero() {
		pdf.SetCreationDate(doc.Created)
		pdf.SetModificationDate(doc.Created)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPage()
		drawHeader(pdf, tr, doc.Header)
		for _, b := range page.Blocks {
			drawBlock(pdf, tr, b)
		}
		drawFooter(pdf, tr, doc.Footer(page.Number))
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

// PDFBytes renders doc into memory.
func PDFBytes(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func useStyle(pdf *fpdf.Fpdf, style TextStyle) {
	pdf.SetFont(style.Family, style.Style, style.Size)
	pdf.SetTextColor(style.Color[0], style.Color[1], style.Color[2])
}

func drawHeader(pdf *fpdf.Fpdf, tr func(string) string, h Header) {
	brand := StyleMap["brand"]
	useStyle(pdf, brand)
	pdf.SetXY(MarginLeft, HeaderTop)
	pdf.CellFormat(ContentWidth/2, brand.LineHeight, h.Product, "", 0, "L", false, 0, "")

	label := StyleMap["headerLabel"]
	useStyle(pdf, label)
	pdf.CellFormat(ContentWidth/2, brand.LineHeight, tr(latin1(h.Label)), "", 1, "R", false, 0, "")

	if h.Excerpt != "" {
		quote := StyleMap["headerQuote"]
		useStyle(pdf, quote)
		pdf.SetX(MarginLeft)
		pdf.CellFormat(ContentWidth, quote.LineHeight+1, tr(latin1(`"`+h.Excerpt+`"`)), "", 1, "L", false, 0, "")
	}

	pdf.SetDrawColor(accent[0], accent[1], accent[2])
	pdf.SetLineWidth(0.4)
	pdf.Line(MarginLeft, BodyTop-4, PageWidth-MarginRight, BodyTop-4)
}

func drawFooter(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	style := StyleMap["footer"]
	pdf.SetDrawColor(229, 231, 235)
	pdf.SetLineWidth(0.2)
	pdf.Line(MarginLeft, FooterY-2, PageWidth-MarginRight, FooterY-2)
	useStyle(pdf, style)
	pdf.SetXY(MarginLeft, FooterY)
	pdf.CellFormat(ContentWidth, style.LineHeight, tr(text), "", 0, "C", false, 0, "")
}

func drawBlock(pdf *fpdf.Fpdf, tr func(string) string, b Block) {
	style := styleFor(b.Kind)
	switch b.Kind {
	case BlockEmailDraft:
		drawEmailBox(pdf, tr, b)
		return
	case BlockBullet:
		useStyle(pdf, style)
		pdf.SetFillColor(ink[0], ink[1], ink[2])
		pdf.Circle(MarginLeft+2, b.Y+style.LineHeight/2, 0.8, "F")
		drawLines(pdf, tr, b.Lines, MarginLeft+bulletIndent, b.Y, ContentWidth-bulletIndent, style)
		return
	case BlockNumbered:
		useStyle(pdf, style)
		pdf.SetXY(MarginLeft, b.Y)
		pdf.CellFormat(bulletIndent, style.LineHeight, b.Marker, "", 0, "L", false, 0, "")
		drawLines(pdf, tr, b.Lines, MarginLeft+bulletIndent, b.Y, ContentWidth-bulletIndent, style)
		return
	}
	useStyle(pdf, style)
	drawLines(pdf, tr, b.Lines, MarginLeft, b.Y, ContentWidth, style)
}

func drawLines(pdf *fpdf.Fpdf, tr func(string) string, lines []string, x, y, width float64, style TextStyle) {
	for i, line := range lines {
		pdf.SetXY(x, y+float64(i)*style.LineHeight)
		pdf.CellFormat(width, style.LineHeight, tr(line), "", 0, "L", false, 0, "")
	}
}

func drawEmailBox(pdf *fpdf.Fpdf, tr func(string) string, b Block) {
	subject := StyleMap["subject"]
	body := StyleMap["body"]
	boxHeight := b.Height - blockGap

	pdf.SetDrawColor(muted[0], muted[1], muted[2])
	pdf.SetFillColor(249, 250, 251)
	pdf.SetLineWidth(0.3)
	pdf.Rect(MarginLeft, b.Y, ContentWidth, boxHeight, "FD")

	x := MarginLeft + boxPadding
	width := ContentWidth - 2*boxPadding
	y := b.Y + boxPadding
	if len(b.Subject) > 0 {
		useStyle(pdf, subject)
		drawLines(pdf, tr, b.Subject, x, y, width, subject)
		y += float64(len(b.Subject))*subject.LineHeight + 2
	}
	useStyle(pdf, body)
	drawLines(pdf, tr, b.Lines, x, y, width, body)
}
