package report

// TextStyle captures the font and spacing of one kind of text on the page.
type TextStyle struct {
	Family     string
	Style      string
	Size       float64
	LineHeight float64
	Color      [3]int
}

// Page geometry in millimetres, A4 portrait.
const (
	PageWidth    = 210.0
	PageHeight   = 297.0
	MarginLeft   = 18.0
	MarginRight  = 18.0
	HeaderTop    = 10.0
	BodyTop      = 34.0
	BodyBottom   = 277.0
	FooterY      = 284.0
	ContentWidth = PageWidth - MarginLeft - MarginRight

	bulletIndent = 6.0
	boxPadding   = 4.0
	blockGap     = 2.5
	sectionGap   = 4.0
)

// BodyHeight is the vertical space available for content on every page.
const BodyHeight = BodyBottom - BodyTop

var (
	ink    = [3]int{31, 41, 55}
	muted  = [3]int{107, 114, 128}
	accent = [3]int{37, 99, 235}
)

// StyleMap centralizes the formatting for every block kind.
var StyleMap = map[string]TextStyle{
	"brand":       {Family: "Helvetica", Style: "B", Size: 14, LineHeight: 6, Color: accent},
	"headerLabel": {Family: "Helvetica", Style: "", Size: 9, LineHeight: 4.5, Color: ink},
	"headerQuote": {Family: "Helvetica", Style: "I", Size: 8, LineHeight: 4, Color: muted},
	"footer":      {Family: "Helvetica", Style: "", Size: 8, LineHeight: 4, Color: muted},
	"section":     {Family: "Helvetica", Style: "B", Size: 14, LineHeight: 8, Color: ink},
	"subsection":  {Family: "Helvetica", Style: "B", Size: 11.5, LineHeight: 6.5, Color: ink},
	"body":        {Family: "Helvetica", Style: "", Size: 10.5, LineHeight: 5.2, Color: ink},
	"subject":     {Family: "Helvetica", Style: "B", Size: 11, LineHeight: 6, Color: ink},
	"methodology": {Family: "Helvetica", Style: "I", Size: 8.5, LineHeight: 4.2, Color: muted},
}
