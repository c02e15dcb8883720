package workflow

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	placeholderInput      = "{{.Input}}"
	placeholderStructured = "{{.Structured}}"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// StagePrompts holds the templates and sampling settings of one model call.
type StagePrompts struct {
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float32         `yaml:"temperature"`
	Templates   map[Kind]string `yaml:"templates"`
}

// Prompts holds the extraction and narration templates of every workflow.
type Prompts struct {
	Extraction StagePrompts `yaml:"extraction"`
	Narration  StagePrompts `yaml:"narration"`
}

// DefaultPrompts returns the embedded templates.
func DefaultPrompts() (Prompts, error) {
	return parsePrompts(defaultPrompts)
}

// LoadPrompts reads templates from path, or the embedded defaults when
// path is empty. Workflows missing from the file keep their defaults.
func LoadPrompts(path string) (Prompts, error) {
	defaults, err := DefaultPrompts()
	if err != nil {
		return Prompts{}, err
	}
	if strings.TrimSpace(path) == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts file: %w", err)
	}
	override, err := parsePrompts(data)
	if err != nil {
		return Prompts{}, fmt.Errorf("prompts file %s: %w", path, err)
	}
	return mergePrompts(defaults, override), nil
}

func parsePrompts(data []byte) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts: %w", err)
	}
	if err := p.validate(); err != nil {
		return Prompts{}, err
	}
	return p, nil
}

func (p Prompts) validate() error {
	for kind, tpl := range p.Extraction.Templates {
		if !kind.Valid() {
			return fmt.Errorf("extraction template: %w: %q", ErrUnknownKind, kind)
		}
		if !strings.Contains(tpl, placeholderInput) {
			return fmt.Errorf("extraction template %s must contain %s", kind, placeholderInput)
		}
	}
	for kind, tpl := range p.Narration.Templates {
		if !kind.Valid() {
			return fmt.Errorf("narration template: %w: %q", ErrUnknownKind, kind)
		}
		if !strings.Contains(tpl, placeholderInput) || !strings.Contains(tpl, placeholderStructured) {
			return fmt.Errorf("narration template %s must contain %s and %s", kind, placeholderInput, placeholderStructured)
		}
	}
	return nil
}

func mergePrompts(base, override Prompts) Prompts {
	out := Prompts{
		Extraction: mergeStage(base.Extraction, override.Extraction),
		Narration:  mergeStage(base.Narration, override.Narration),
	}
	return out
}

func mergeStage(base, override StagePrompts) StagePrompts {
	out := StagePrompts{
		MaxTokens:   base.MaxTokens,
		Temperature: base.Temperature,
		Templates:   make(map[Kind]string, len(base.Templates)),
	}
	if override.MaxTokens > 0 {
		out.MaxTokens = override.MaxTokens
	}
	if override.Temperature > 0 {
		out.Temperature = override.Temperature
	}
	for k, v := range base.Templates {
		out.Templates[k] = v
	}
	for k, v := range override.Templates {
		out.Templates[k] = v
	}
	return out
}

func (s StagePrompts) render(kind Kind, input, structured string) (string, error) {
	tpl, ok := s.Templates[kind]
	if !ok {
		return "", fmt.Errorf("no template for %w: %q", ErrUnknownKind, kind)
	}
	return strings.NewReplacer(placeholderInput, input, placeholderStructured, structured).Replace(tpl), nil
}
