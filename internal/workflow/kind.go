package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects the prompt templates, output schema and report layout of a run.
type Kind string

const (
	KindDocumentSummary Kind = "doc-summary"
	KindURLExtract      Kind = "url-extract"
	KindDataInsights    Kind = "data-insights"
	KindChatDraft       Kind = "chat-draft"
)

var ErrUnknownKind = errors.New("unknown workflow")

// Descriptor is the public catalog entry for a workflow.
type Descriptor struct {
	ID          Kind   `json:"id"`
	Label       string `json:"label"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

var catalog = []Descriptor{
	{
		ID:          KindDocumentSummary,
		Label:       "Document → Summary → PDF",
		Title:       "Document Summary",
		Description: "Summarize a document into key points and prioritized tasks.",
	},
	{
		ID:          KindURLExtract,
		Label:       "URL → Key Facts → Email",
		Title:       "URL Extract",
		Description: "Pull key facts, opportunities and risks out of web content.",
	},
	{
		ID:          KindDataInsights,
		Label:       "Data → Insights → Chart",
		Title:       "Data Insights",
		Description: "Turn tabular data into insights, recommendations and a chart.",
	},
	{
		ID:          KindChatDraft,
		Label:       "Chat → Draft Email → Store",
		Title:       "Chat Draft",
		Description: "Convert a conversation into a ready-to-send email draft.",
	},
}

// Catalog lists every workflow in display order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Kinds lists every workflow kind in display order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d.ID)
	}
	return out
}

// ParseKind accepts the canonical ids and loose spellings such as
// "DataInsights", "data_insights" or "Document Summary".
func ParseKind(value string) (Kind, error) {
	compact := strings.ToLower(strings.TrimSpace(value))
	if compact == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownKind)
	}
	compact = strings.NewReplacer("-", "", "_", "", " ", "").Replace(compact)
	switch compact {
	case "docsummary", "documentsummary":
		return KindDocumentSummary, nil
	case "urlextract":
		return KindURLExtract, nil
	case "datainsights":
		return KindDataInsights, nil
	case "chatdraft":
		return KindChatDraft, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
}

// Valid reports whether k is one of the four workflows.
func (k Kind) Valid() bool {
	_, ok := k.descriptor()
	return ok
}

// Label is the catalog label, e.g. "Data → Insights → Chart".
func (k Kind) Label() string {
	if d, ok := k.descriptor(); ok {
		return d.Label
	}
	return string(k)
}

// Title is a plain-ASCII name used in report headers.
func (k Kind) Title() string {
	if d, ok := k.descriptor(); ok {
		return d.Title
	}
	return string(k)
}

func (k Kind) descriptor() (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == k {
			return d, true
		}
	}
	return Descriptor{}, false
}
