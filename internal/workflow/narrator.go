package workflow

import (
	"context"
	"encoding/json"

	"hawkkeyed-backend/internal/llm"
)

// Narrator runs the narrative-generation call.
type Narrator struct {
	Client  llm.Client
	Prompts StagePrompts
	// SkipChatDraft marks the narrative of a parsed email draft as not
	// applicable instead of calling the provider.
	SkipChatDraft bool
}

// Narrate returns the provider text verbatim.
func (n *Narrator) Narrate(ctx context.Context, in RunInput, structured StructuredResult, kind Kind) (Narrative, error) {
	if n == nil {
		return Narrative{}, newServiceError(StageNarration, llm.ErrNotConfigured)
	}
	if n.SkipChatDraft && kind == KindChatDraft {
		if _, ok := structured.(ChatDraft); ok {
			return Narrative{NotApplicable: true}, nil
		}
	}
	if n.Client == nil {
		return Narrative{}, newServiceError(StageNarration, llm.ErrNotConfigured)
	}

	grounding, err := json.MarshalIndent(structured, "", "  ")
	if err != nil {
		return Narrative{}, err
	}
	prompt, err := n.Prompts.render(kind, in.NarrationText(), string(grounding))
	if err != nil {
		return Narrative{}, err
	}
	req := llm.Request{
		Prompt:    prompt,
		MaxTokens: n.Prompts.MaxTokens,
	}
	if n.Prompts.Temperature > 0 {
		t := n.Prompts.Temperature
		req.Temperature = &t
	}

	resp, err := n.Client.Generate(ctx, req)
	if err != nil {
		return Narrative{}, newServiceError(StageNarration, err)
	}
	return Narrative{Text: resp.Text}, nil
}
