package report

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

var runTime = time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)

func longNarrative(paragraphs int) string {
	var b strings.Builder
	b.WriteString("## Overview\n\n")
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&b, "Paragraph %d explains the quarterly figures in detail, covering revenue, churn, hiring plans and the risks the team flagged during review.\n\n", i+1)
		if i%5 == 4 {
			fmt.Fprintf(&b, "- follow-up item %d\n- owner assigned\n\n", i+1)
		}
	}
	return b.String()
}

func assertAtomic(t *testing.T, doc Document) {
	t.Helper()
	for _, p := range doc.Pages {
		if len(p.Blocks) == 0 {
			t.Fatalf("page %d is empty", p.Number)
		}
		for i, b := range p.Blocks {
			if b.Y < BodyTop-0.001 || b.Bottom() > BodyBottom+0.001 {
				t.Fatalf("page %d block %d (%s) spans %.2f..%.2f outside body", p.Number, i, b.Kind, b.Y, b.Bottom())
			}
			if i > 0 && b.Y+0.001 < p.Blocks[i-1].Bottom() {
				t.Fatalf("page %d block %d overlaps the previous block", p.Number, i)
			}
		}
	}
}

func blocksOf(doc Document, kind BlockKind) []Block {
	var out []Block
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if b.Kind == kind {
				out = append(out, b)
			}
		}
	}
	return out
}

func sectionTitles(doc Document) []string {
	var out []string
	for _, b := range blocksOf(doc, BlockSection) {
		out = append(out, strings.Join(b.Lines, " "))
	}
	return out
}

func TestRenderPaginatesLongNarrative(t *testing.T) {
	res := workflow.RunResult{
		OK:         true,
		Workflow:   workflow.KindDocumentSummary,
		Input:      "Quarterly report\nfor the board",
		Structured: workflow.DocumentSummary{Summary: "Revenue grew."},
		Narrative:  &workflow.Narrative{Text: longNarrative(60)},
		Timestamp:  runTime,
	}

	doc := Render(res)
	if len(doc.Pages) < 2 {
		t.Fatalf("expected at least 2 pages, got %d", len(doc.Pages))
	}
	assertAtomic(t, doc)

	if doc.Header.Product != "HAWKKEYED" || doc.Header.Label != workflow.KindDocumentSummary.Title() {
		t.Fatalf("unexpected header: %+v", doc.Header)
	}
	if doc.Header.Excerpt != "Quarterly report for the board" {
		t.Fatalf("expected newline-free excerpt, got %q", doc.Header.Excerpt)
	}
	last := len(doc.Pages)
	if got := doc.Footer(last); got != fmt.Sprintf("Page %d of %d", last, last) {
		t.Fatalf("unexpected footer %q", got)
	}
	if titles := sectionTitles(doc); len(titles) != 2 || titles[0] != "Executive Summary" || titles[1] != "Detailed Analysis" {
		t.Fatalf("unexpected sections: %v", titles)
	}
}

func TestRenderSplitsOversizedParagraphIntoAtomicChunks(t *testing.T) {
	huge := strings.TrimSpace(strings.Repeat("word ", 6000))
	res := workflow.RunResult{
		OK:         true,
		Workflow:   workflow.KindDocumentSummary,
		Structured: workflow.RawFallback{Summary: huge},
		Timestamp:  runTime,
	}

	doc := Render(res)
	assertAtomic(t, doc)

	paras := blocksOf(doc, BlockParagraph)
	if len(paras) < 2 {
		t.Fatalf("expected the paragraph to be split, got %d blocks", len(paras))
	}
	if paras[0].Continued || !paras[1].Continued {
		t.Fatalf("expected only follow-on chunks to be marked continued")
	}
	words := 0
	for _, p := range paras {
		for _, line := range p.Lines {
			words += len(strings.Fields(line))
		}
	}
	if words != 6000 {
		t.Fatalf("expected all 6000 words laid out, got %d", words)
	}
}

func TestRenderHeadingsAreNotOrphaned(t *testing.T) {
	res := workflow.RunResult{
		OK:         true,
		Workflow:   workflow.KindDocumentSummary,
		Structured: workflow.DocumentSummary{Summary: "s"},
		Narrative:  &workflow.Narrative{Text: longNarrative(80)},
		Timestamp:  runTime,
	}
	doc := Render(res)
	for _, p := range doc.Pages {
		lastBlock := p.Blocks[len(p.Blocks)-1]
		if (lastBlock.Kind == BlockSection || lastBlock.Kind == BlockSubsection) && p.Number < len(doc.Pages) {
			t.Fatalf("page %d ends with a heading", p.Number)
		}
	}
}

func assertHeadingsLead(t *testing.T, pages []Page) {
	t.Helper()
	for _, p := range pages {
		last := p.Blocks[len(p.Blocks)-1]
		if isHeading(last.Kind) && p.Number < len(pages) {
			t.Fatalf("page %d ends with a heading", p.Number)
		}
	}
}

func TestPaginateKeepsHeadingWithPageSizedBlock(t *testing.T) {
	l := &layouter{m: newMeasurer()}
	heading := item{kind: BlockSection, text: "Executive Summary"}
	headingHeight := l.measure(chunk{item: heading}).Height

	var body item
	var bodyLines int
	for n := 40; ; n++ {
		body = item{kind: BlockParagraph, text: strings.Repeat("steady growth ", n)}
		b := l.measure(chunk{item: body})
		if b.Height > BodyHeight {
			t.Fatalf("no paragraph between %.1f and %.1f found", BodyHeight-headingHeight, BodyHeight)
		}
		if b.Height > BodyHeight-headingHeight {
			bodyLines = len(b.Lines)
			break
		}
	}

	pages := paginate([]item{heading, body})
	doc := Document{Pages: pages}
	assertAtomic(t, doc)
	assertHeadingsLead(t, pages)
	if len(pages) != 2 {
		t.Fatalf("expected the paragraph to continue on a second page, got %d pages", len(pages))
	}
	first := pages[0].Blocks
	if len(first) != 2 || first[0].Kind != BlockSection || first[1].Kind != BlockParagraph {
		t.Fatalf("expected heading followed by paragraph on page 1, got %+v", first)
	}
	if len(first[1].Lines) < minSplitLines {
		t.Fatalf("expected at least %d lines under the heading, got %d", minSplitLines, len(first[1].Lines))
	}
	got := 0
	for _, b := range blocksOf(doc, BlockParagraph) {
		got += len(b.Lines)
	}
	if got != bodyLines {
		t.Fatalf("expected %d lines laid out, got %d", bodyLines, got)
	}
}

func TestPaginateRandomSequencesKeepHeadingsWithContent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	kinds := []BlockKind{BlockSection, BlockSubsection, BlockParagraph, BlockParagraph, BlockBullet, BlockNumbered}
	for n := 0; n < 300; n++ {
		count := 2 + rng.Intn(12)
		items := make([]item, 0, count+1)
		for i := 0; i < count; i++ {
			kind := kinds[rng.Intn(len(kinds))]
			text := "Key Insights"
			if !isHeading(kind) {
				text = strings.Repeat("revenue churn hiring ", 1+rng.Intn(300))
			}
			items = append(items, item{kind: kind, text: text, marker: "1."})
		}
		items = append(items, item{kind: BlockMethodology, text: methodologyText})

		pages := paginate(items)
		assertAtomic(t, Document{Pages: pages})
		assertHeadingsLead(t, pages)
	}
}

func TestRenderChatDraftEmailBox(t *testing.T) {
	res := workflow.RunResult{
		OK:       true,
		Workflow: workflow.KindChatDraft,
		Input:    "Client Follow-up Email...",
		Structured: workflow.ChatDraft{EmailDraft: workflow.EmailDraft{
			Subject: "Follow-up",
			Body:    "Thanks for joining the call today. Attached are the notes we discussed.",
			Tone:    "professional",
		}},
		Narrative: &workflow.Narrative{NotApplicable: true},
		Timestamp: runTime,
	}

	doc := Render(res)
	if titles := sectionTitles(doc); len(titles) != 1 || titles[0] != "Email Draft" {
		t.Fatalf("expected only the Email Draft section, got %v", titles)
	}
	boxes := blocksOf(doc, BlockEmailDraft)
	if len(boxes) != 1 {
		t.Fatalf("expected one email box, got %d", len(boxes))
	}
	if len(boxes[0].Subject) == 0 || boxes[0].Subject[0] != "Subject: Follow-up" {
		t.Fatalf("unexpected subject lines %v", boxes[0].Subject)
	}
	if !strings.Contains(strings.Join(boxes[0].Lines, " "), "Thanks for joining") {
		t.Fatalf("body missing from email box: %v", boxes[0].Lines)
	}
}

func TestRenderChatDraftWithNarrativeAddsSummary(t *testing.T) {
	res := workflow.RunResult{
		OK:         true,
		Workflow:   workflow.KindChatDraft,
		Structured: workflow.ChatDraft{EmailDraft: workflow.EmailDraft{Subject: "Hi", Body: "Body"}},
		Narrative:  &workflow.Narrative{Text: "This email confirms next steps."},
		Timestamp:  runTime,
	}
	titles := sectionTitles(Render(res))
	if len(titles) != 2 || titles[0] != "Executive Summary" || titles[1] != "Email Draft" {
		t.Fatalf("unexpected sections: %v", titles)
	}
}

func TestRenderURLExtractSections(t *testing.T) {
	res := workflow.RunResult{
		OK:       true,
		Workflow: workflow.KindURLExtract,
		Structured: workflow.URLExtract{
			Summary:  "Structured summary",
			KeyFacts: []string{"Fact one", "Fact two"},
			Insights: workflow.Insights{
				Opportunities: []string{"Expand"},
				Risks:         []string{"Churn"},
				Actions:       []string{"Call back"},
			},
		},
		Timestamp: runTime,
	}
	doc := Render(res)
	titles := sectionTitles(doc)
	want := []string{"Executive Summary", "Key Facts", "Insights"}
	if strings.Join(titles, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, titles)
	}
	var subs []string
	for _, b := range blocksOf(doc, BlockSubsection) {
		subs = append(subs, b.Lines[0])
	}
	if strings.Join(subs, "|") != "Opportunities|Risks|Actions" {
		t.Fatalf("unexpected insight categories %v", subs)
	}
	if got := len(blocksOf(doc, BlockBullet)); got != 5 {
		t.Fatalf("expected 5 bullets, got %d", got)
	}
	paras := blocksOf(doc, BlockParagraph)
	if len(paras) == 0 || paras[0].Lines[0] != "Structured summary" {
		t.Fatalf("expected structured summary when no narrative, got %+v", paras)
	}
}

func TestRenderDataInsightsPrefersNarrativeAndNumbers(t *testing.T) {
	res := workflow.RunResult{
		OK:       true,
		Workflow: workflow.KindDataInsights,
		Structured: workflow.DataInsights{
			Summary:  "short",
			Insights: []string{"Sales peaked in March", "", "Costs flat"},
		},
		Narrative: &workflow.Narrative{Text: "Narrative summary of the data."},
		Timestamp: runTime,
	}
	doc := Render(res)
	paras := blocksOf(doc, BlockParagraph)
	if len(paras) == 0 || paras[0].Lines[0] != "Narrative summary of the data." {
		t.Fatalf("expected narrative as executive summary, got %+v", paras)
	}
	nums := blocksOf(doc, BlockNumbered)
	if len(nums) != 2 || nums[0].Marker != "1." || nums[1].Marker != "2." {
		t.Fatalf("unexpected numbered items %+v", nums)
	}
}

func TestRenderAppendsMethodologyOnce(t *testing.T) {
	res := workflow.RunResult{
		OK:         true,
		Workflow:   workflow.KindDataInsights,
		Structured: workflow.DataInsights{Summary: "s", Insights: []string{"a"}},
		Timestamp:  runTime,
	}
	doc := Render(res)
	if got := len(blocksOf(doc, BlockMethodology)); got != 1 {
		t.Fatalf("expected one methodology line, got %d", got)
	}
	lastPage := doc.Pages[len(doc.Pages)-1]
	if lastPage.Blocks[len(lastPage.Blocks)-1].Kind != BlockMethodology {
		t.Fatalf("methodology must be the final block")
	}
}

func TestDocumentIDAndFilename(t *testing.T) {
	doc := Render(workflow.RunResult{
		OK:         true,
		Workflow:   workflow.KindURLExtract,
		Structured: workflow.URLExtract{Summary: "s"},
		Timestamp:  runTime,
	})
	if doc.ID != "hawkkeyed-url-extract-20260402-150405" {
		t.Fatalf("unexpected id %q", doc.ID)
	}
	if doc.Filename() != doc.ID+".pdf" {
		t.Fatalf("unexpected filename %q", doc.Filename())
	}
}

func TestExcerptCapsLength(t *testing.T) {
	got := excerpt(strings.Repeat("abc ", 50))
	if len([]rune(got)) != 90 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected excerpt %q (%d runes)", got, len([]rune(got)))
	}
}

func TestNarrativeItems(t *testing.T) {
	items := narrativeItems("# Title\nFirst line\ncontinues **here**.\n\n- a\n* b\n2) second\n**Bold Heading**")
	var kinds []string
	for _, it := range items {
		kinds = append(kinds, string(it.kind)+":"+it.text)
	}
	want := []string{
		"subsection:Title",
		"paragraph:First line continues here.",
		"bullet:a",
		"bullet:b",
		"numbered:second",
		"subsection:Bold Heading",
	}
	if strings.Join(kinds, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected items:\n%v\nwant:\n%v", kinds, want)
	}
}

func TestLatin1FoldsTypography(t *testing.T) {
	if got := latin1("“Quote” – done… café 漢"); got != `"Quote" - done... café ?` {
		t.Fatalf("unexpected fold %q", got)
	}
}
