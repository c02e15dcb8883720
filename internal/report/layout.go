package report

import (
	"math"

	"hawkkeyed-backend/internal/workflow"
)

// Render lays out a run as pages of atomic blocks. It performs no I/O.
func Render(res workflow.RunResult) Document {
	doc := Document{
		ID:       DocumentID(res.Workflow, res.Timestamp),
		Workflow: res.Workflow,
		Header: Header{
			Product: Product,
			Label:   res.Workflow.Title(),
			Excerpt: excerpt(res.Input),
		},
		Created: res.Timestamp,
	}

	items := flatten(plan(res))
	items = append(items, item{kind: BlockMethodology, text: methodologyText})

	doc.Pages = paginate(items)
	return doc
}

func paginate(items []item) []Page {
	l := &layouter{m: newMeasurer()}
	l.newPage()
	for i := range items {
		l.place(items, i)
	}
	return l.pages
}

func flatten(sections []section) []item {
	var out []item
	for _, s := range sections {
		if s.title != "" {
			out = append(out, item{kind: BlockSection, text: s.title})
		}
		out = append(out, s.items...)
	}
	return out
}

type layouter struct {
	m     *measurer
	pages []Page
	y     float64
}

func (l *layouter) current() *Page {
	return &l.pages[len(l.pages)-1]
}

func (l *layouter) newPage() {
	l.pages = append(l.pages, Page{Number: len(l.pages) + 1})
	l.y = BodyTop
}

func (l *layouter) remaining() float64 {
	return BodyBottom - l.y
}

// place measures items[i] and puts it on the current page, starting a new
// page first when it does not fit. Headings also reserve room for the
// block that follows them.
func (l *layouter) place(items []item, i int) {
	it := items[i]
	lead := 0.0
	if !isHeading(it.kind) {
		lead = l.lead()
	}
	for _, c := range l.chunks(it, l.remaining(), lead) {
		b := l.measure(c)
		need := b.Height
		if isHeading(it.kind) {
			need += l.reserve(items, i+1, l.lead()+b.Height)
		}
		if need > l.remaining() && len(l.current().Blocks) > 0 {
			l.newPage()
			b = l.measure(c)
		}
		b.Y = l.y
		l.current().Blocks = append(l.current().Blocks, b)
		l.y += b.Height
	}
}

// lead is the height of the headings that end the current page.
func (l *layouter) lead() float64 {
	blocks := l.current().Blocks
	h := 0.0
	for j := len(blocks) - 1; j >= 0 && isHeading(blocks[j].Kind); j-- {
		h += blocks[j].Height
	}
	return h
}

// reserve is the room needed after a heading for the headings that follow
// it and the first content block. lead is the heading height already
// committed above. A content block that cannot share one page with its
// headings is split, so only its first minSplitLines lines are reserved.
func (l *layouter) reserve(items []item, i int, lead float64) float64 {
	total := lead
	for ; i < len(items); i++ {
		b := l.measure(chunk{item: items[i]})
		if isHeading(items[i].kind) {
			total += b.Height
			continue
		}
		if total+b.Height > BodyHeight {
			lh := styleFor(items[i].kind).LineHeight
			keep := min(minSplitLines, len(b.Lines))
			b.Height -= float64(len(b.Lines)-keep) * lh
		}
		total += b.Height
		break
	}
	return total - lead
}

func isHeading(kind BlockKind) bool {
	return kind == BlockSection || kind == BlockSubsection
}

// chunk is an item or a piece of one that is too tall for a page.
type chunk struct {
	item
	lines        []string
	subjectLines []string
	continued    bool
}

// minSplitLines is the fewest lines an oversized item leaves at the bottom
// of a page.
const minSplitLines = 3

// chunks wraps the item once and splits its lines so that every chunk fits
// an empty page body. An item is also split when it cannot share a page
// with the lead headings above it. The first chunk of a split item is sized
// to the avail space left on the current page when at least minSplitLines fit.
func (l *layouter) chunks(it item, avail, lead float64) []chunk {
	full := l.measure(chunk{item: it})
	fitsPage := full.Height <= BodyHeight
	keptWithLead := lead == 0 || lead+full.Height <= BodyHeight || full.Height <= avail
	if fitsPage && keptWithLead {
		return []chunk{{item: it, lines: full.Lines, subjectLines: full.Subject}}
	}

	style := styleFor(it.kind)
	fixed := full.Height - float64(len(full.Lines))*style.LineHeight
	perPage := int(math.Floor((BodyHeight - fixed) / style.LineHeight))
	if perPage < 1 {
		perPage = 1
	}
	first := int(math.Floor((avail - fixed) / style.LineHeight))
	if first < minSplitLines {
		first = perPage
	}
	var out []chunk
	for start, size := 0, first; start < len(full.Lines); start, size = start+size, perPage {
		end := start + size
		if end > len(full.Lines) {
			end = len(full.Lines)
		}
		c := chunk{item: it, lines: full.Lines[start:end], continued: start > 0}
		if start == 0 {
			c.subjectLines = full.Subject
		}
		out = append(out, c)
	}
	return out
}

// measure computes the wrapped lines and height of a chunk. Pre-wrapped
// lines are reused so that chunk boundaries stay stable.
func (l *layouter) measure(c chunk) Block {
	style := styleFor(c.kind)
	b := Block{Kind: c.kind, Marker: c.marker, Continued: c.continued}

	width := ContentWidth
	switch c.kind {
	case BlockBullet, BlockNumbered:
		width -= bulletIndent
	case BlockEmailDraft:
		width -= 2 * boxPadding
	}

	b.Lines = c.lines
	if b.Lines == nil {
		b.Lines = l.m.wrap(style, c.text, width)
	}
	if c.kind == BlockEmailDraft {
		b.Subject = c.subjectLines
		if b.Subject == nil && !c.continued {
			b.Subject = l.m.wrap(StyleMap["subject"], "Subject: "+c.item.subject, width)
		}
		b.Height = boxFixedHeight(b) + float64(len(b.Lines))*style.LineHeight
		return b
	}

	b.Height = float64(len(b.Lines))*style.LineHeight + gapAfter(c.kind)
	return b
}

func boxFixedHeight(b Block) float64 {
	return 2*boxPadding + float64(len(b.Subject))*StyleMap["subject"].LineHeight + 2 + blockGap
}

func gapAfter(kind BlockKind) float64 {
	switch kind {
	case BlockSection:
		return 1.5
	case BlockSubsection:
		return 0.5
	case BlockParagraph:
		return sectionGap
	case BlockMethodology:
		return 0
	}
	return blockGap
}

func styleFor(kind BlockKind) TextStyle {
	switch kind {
	case BlockSection:
		return StyleMap["section"]
	case BlockSubsection:
		return StyleMap["subsection"]
	case BlockMethodology:
		return StyleMap["methodology"]
	}
	return StyleMap["body"]
}
