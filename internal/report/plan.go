package report

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"hawkkeyed-backend/internal/workflow"
)

// item is an unmeasured piece of content.
type item struct {
	kind    BlockKind
	text    string
	marker  string
	subject string
}

// section is a titled group of items. An empty title means the items
// follow the previous section without a heading.
type section struct {
	title string
	items []item
}

var (
	numberedLine = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)
	boldLine     = regexp.MustCompile(`^\*\*([^*]+)\*\*:?$`)
	emphasis     = strings.NewReplacer("**", "", "__", "", "`", "")
)

// plan returns the ordered sections for a run. It switches over every
// StructuredResult variant.
func plan(res workflow.RunResult) []section {
	narrative := ""
	if res.Narrative.Present() {
		narrative = res.Narrative.Text
	}

	var out []section
	switch s := res.Structured.(type) {
	case workflow.RawFallback:
		out = append(out, summarySection(paragraphs(s.Summary)))
		out = append(out, bodySection(narrative))
	case workflow.DocumentSummary:
		out = append(out, summarySection(paragraphs(s.Summary)))
		out = append(out, bodySection(narrative))
	case workflow.URLExtract:
		out = append(out, summarySection(preferNarrative(narrative, s.Summary)))
		out = append(out, listSection("Key Facts", BlockBullet, s.KeyFacts))
		if cats := s.Insights.Categories(); len(cats) > 0 {
			out = append(out, section{title: "Insights"})
			for _, c := range cats {
				sec := listSection(titleCase(c.Name), BlockBullet, c.Items)
				sec.items = append([]item{{kind: BlockSubsection, text: sec.title}}, sec.items...)
				sec.title = ""
				out = append(out, sec)
			}
		}
	case workflow.DataInsights:
		out = append(out, summarySection(preferNarrative(narrative, s.Summary)))
		out = append(out, listSection("Key Insights", BlockNumbered, s.Insights))
	case workflow.ChatDraft:
		if narrative != "" {
			out = append(out, summarySection(narrativeItems(narrative)))
		}
		out = append(out, section{
			title: "Email Draft",
			items: []item{{kind: BlockEmailDraft, subject: strings.TrimSpace(s.EmailDraft.Subject), text: strings.TrimSpace(s.EmailDraft.Body)}},
		})
	case nil:
		out = append(out, bodySection(narrative))
	}
	return compact(out)
}

func summarySection(items []item) section {
	return section{title: "Executive Summary", items: items}
}

func bodySection(narrative string) section {
	return section{title: "Detailed Analysis", items: narrativeItems(narrative)}
}

func preferNarrative(narrative, summary string) []item {
	if strings.TrimSpace(narrative) != "" {
		return narrativeItems(narrative)
	}
	return paragraphs(summary)
}

func listSection(title string, kind BlockKind, values []string) section {
	sec := section{title: title}
	n := 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		n++
		it := item{kind: kind, text: v}
		if kind == BlockNumbered {
			it.marker = strconv.Itoa(n) + "."
		}
		sec.items = append(sec.items, it)
	}
	return sec
}

// compact drops sections that have neither a title-only role nor content.
func compact(sections []section) []section {
	out := sections[:0]
	for i, s := range sections {
		if len(s.items) > 0 {
			out = append(out, s)
			continue
		}
		// A bare heading survives only when untitled content follows it.
		if s.title != "" && i+1 < len(sections) && sections[i+1].title == "" && len(sections[i+1].items) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func paragraphs(text string) []item {
	var out []item
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, item{kind: BlockParagraph, text: p})
		}
	}
	return out
}

// narrativeItems turns markdown-ish model prose into headings, list items
// and paragraphs.
func narrativeItems(text string) []item {
	var (
		out     []item
		pending []string
	)
	flush := func() {
		if len(pending) > 0 {
			out = append(out, item{kind: BlockParagraph, text: strings.Join(pending, " ")})
			pending = nil
		}
	}
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || line == "---" || line == "***":
			flush()
		case strings.HasPrefix(line, "#"):
			flush()
			if heading := clean(strings.TrimLeft(line, "# ")); heading != "" {
				out = append(out, item{kind: BlockSubsection, text: heading})
			}
		case boldLine.MatchString(line):
			flush()
			out = append(out, item{kind: BlockSubsection, text: clean(boldLine.FindStringSubmatch(line)[1])})
		case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "• "):
			flush()
			_, rest, _ := strings.Cut(line, " ")
			if rest = clean(rest); rest != "" {
				out = append(out, item{kind: BlockBullet, text: rest})
			}
		case numberedLine.MatchString(line):
			flush()
			m := numberedLine.FindStringSubmatch(line)
			out = append(out, item{kind: BlockNumbered, marker: m[1] + ".", text: clean(m[2])})
		default:
			pending = append(pending, clean(line))
		}
	}
	flush()
	return out
}

func clean(s string) string {
	return strings.TrimSpace(emphasis.Replace(s))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
