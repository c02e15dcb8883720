package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// StructuredResult is the output of the extraction call. Exactly one of
// DocumentSummary, URLExtract, DataInsights, ChatDraft or RawFallback.
type StructuredResult interface {
	// ExecutiveSummary is the short summary text the variant carries.
	ExecutiveSummary() string
	isStructured()
}

// Task is an action item pulled out of a document.
type Task struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type DocumentSummary struct {
	Summary   string   `json:"summary"`
	Tasks     []Task   `json:"tasks"`
	KeyPoints []string `json:"keyPoints"`
}

// Insights groups URL findings by category.
type Insights struct {
	Opportunities []string `json:"opportunities"`
	Risks         []string `json:"risks"`
	Entities      []string `json:"entities"`
	Actions       []string `json:"actions"`
}

// InsightCategory is one named, non-empty insight group.
type InsightCategory struct {
	Name  string
	Items []string
}

// Categories returns the non-empty groups in the order opportunities,
// risks, entities, actions.
func (i Insights) Categories() []InsightCategory {
	all := []InsightCategory{
		{Name: "opportunities", Items: i.Opportunities},
		{Name: "risks", Items: i.Risks},
		{Name: "entities", Items: i.Entities},
		{Name: "actions", Items: i.Actions},
	}
	out := all[:0]
	for _, c := range all {
		if len(nonEmpty(c.Items)) > 0 {
			c.Items = nonEmpty(c.Items)
			out = append(out, c)
		}
	}
	return out
}

type URLExtract struct {
	Summary  string   `json:"summary"`
	KeyFacts []string `json:"keyFacts"`
	Insights Insights `json:"insights"`
}

type DataInsights struct {
	Summary         string   `json:"summary"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

type EmailDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tone    string `json:"tone"`
}

type ChatDraft struct {
	EmailDraft EmailDraft `json:"emailDraft"`
}

// RawFallback carries the verbatim model text when no usable JSON object
// could be parsed from it.
type RawFallback struct {
	Summary string `json:"summary"`
}

func (d DocumentSummary) ExecutiveSummary() string { return d.Summary }
func (u URLExtract) ExecutiveSummary() string      { return u.Summary }
func (d DataInsights) ExecutiveSummary() string    { return d.Summary }
func (c ChatDraft) ExecutiveSummary() string       { return "" }
func (r RawFallback) ExecutiveSummary() string     { return r.Summary }

func (DocumentSummary) isStructured() {}
func (URLExtract) isStructured()      {}
func (DataInsights) isStructured()    {}
func (ChatDraft) isStructured()       {}
func (RawFallback) isStructured()     {}

func (r RawFallback) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Summary string `json:"summary"`
		Raw     bool   `json:"raw"`
	}{Summary: r.Summary, Raw: true})
}

// IsRaw reports whether s is the degraded raw-text variant.
func IsRaw(s StructuredResult) bool {
	_, ok := s.(RawFallback)
	return ok
}

// DecodeStructured parses data into the schema of kind. Payloads flagged
// with "raw": true decode to RawFallback whatever the kind.
func DecodeStructured(kind Kind, data []byte) (StructuredResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var probe struct {
		Raw     bool   `json:"raw"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode structured result: %w", err)
	}
	if probe.Raw {
		return RawFallback{Summary: probe.Summary}, nil
	}

	switch kind {
	case KindDocumentSummary:
		var out DocumentSummary
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return out.normalize(), nil
	case KindURLExtract:
		var out URLExtract
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return out.normalize(), nil
	case KindDataInsights:
		var out DataInsights
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return out.normalize(), nil
	case KindChatDraft:
		var out ChatDraft
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return out.normalize(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// hasContent reports whether a decoded variant carries anything worth
// showing. A schema-valid but empty object is treated like unparseable text.
func hasContent(s StructuredResult) bool {
	switch v := s.(type) {
	case DocumentSummary:
		return v.Summary != "" || len(v.Tasks) > 0 || len(v.KeyPoints) > 0
	case URLExtract:
		return v.Summary != "" || len(v.KeyFacts) > 0 || len(v.Insights.Categories()) > 0
	case DataInsights:
		return v.Summary != "" || len(v.Insights) > 0 || len(v.Recommendations) > 0
	case ChatDraft:
		return v.EmailDraft.Subject != "" || v.EmailDraft.Body != ""
	case RawFallback:
		return true
	}
	return false
}

func (d DocumentSummary) normalize() DocumentSummary {
	d.Summary = strings.TrimSpace(d.Summary)
	d.KeyPoints = nonEmpty(d.KeyPoints)
	tasks := make([]Task, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		t.Title = strings.TrimSpace(t.Title)
		t.Description = strings.TrimSpace(t.Description)
		if t.Title == "" && t.Description == "" {
			continue
		}
		t.Priority = normalizeEnum(t.Priority, "medium", "high", "medium", "low")
		tasks = append(tasks, t)
	}
	d.Tasks = tasks
	return d
}

func (u URLExtract) normalize() URLExtract {
	u.Summary = strings.TrimSpace(u.Summary)
	u.KeyFacts = nonEmpty(u.KeyFacts)
	u.Insights.Opportunities = nonEmpty(u.Insights.Opportunities)
	u.Insights.Risks = nonEmpty(u.Insights.Risks)
	u.Insights.Entities = nonEmpty(u.Insights.Entities)
	u.Insights.Actions = nonEmpty(u.Insights.Actions)
	return u
}

func (d DataInsights) normalize() DataInsights {
	d.Summary = strings.TrimSpace(d.Summary)
	d.Insights = nonEmpty(d.Insights)
	d.Recommendations = nonEmpty(d.Recommendations)
	return d
}

func (c ChatDraft) normalize() ChatDraft {
	c.EmailDraft.Subject = strings.TrimSpace(c.EmailDraft.Subject)
	c.EmailDraft.Body = strings.TrimSpace(c.EmailDraft.Body)
	c.EmailDraft.Tone = normalizeEnum(c.EmailDraft.Tone, "professional", "professional", "friendly", "formal")
	return c
}

func normalizeEnum(value, fallback string, allowed ...string) string {
	clean := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if clean == a {
			return clean
		}
	}
	return fallback
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
