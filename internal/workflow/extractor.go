package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"hawkkeyed-backend/internal/llm"
	"hawkkeyed-backend/internal/shared/telemetry"
)

// ErrExtractionParse marks a model answer that held no usable JSON object.
// It is logged, never returned: the run continues with RawFallback.
var ErrExtractionParse = errors.New("extraction parse error")

// Extractor runs the structured-extraction call.
type Extractor struct {
	Client  llm.Client
	Prompts StagePrompts
}

// Extract sends the workflow's template and the attachment in one call and
// parses the first JSON object of the answer. Clients that cannot read the
// attachment get its extracted text in the prompt instead. Only transport
// failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, in RunInput, kind Kind) (StructuredResult, error) {
	if e == nil || e.Client == nil {
		return nil, newServiceError(StageExtraction, llm.ErrNotConfigured)
	}
	native := in.Attachment != nil && llm.SupportsAttachment(e.Client, in.Attachment.MimeType)
	input := in.Text
	if in.Attachment != nil && !native {
		input = in.NarrationText()
	}
	prompt, err := e.Prompts.render(kind, input, "")
	if err != nil {
		return nil, err
	}
	req := llm.Request{
		Prompt:    prompt,
		MaxTokens: e.Prompts.MaxTokens,
		JSON:      true,
	}
	if e.Prompts.Temperature > 0 {
		t := e.Prompts.Temperature
		req.Temperature = &t
	}
	if native {
		req.Attachment = &llm.Attachment{
			FileName: in.Attachment.FileName,
			MimeType: in.Attachment.MimeType,
			Data:     in.Attachment.Payload,
		}
	}

	resp, err := e.Client.Generate(ctx, req)
	if err != nil {
		return nil, newServiceError(StageExtraction, err)
	}

	result, parseErr := parseStructured(kind, resp.Text)
	if parseErr != nil {
		telemetry.Warn("workflow.extraction_parse", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"workflow":   string(kind),
			"provider":   resp.Provider,
			"error":      sanitizeError(parseErr),
		})
		return RawFallback{Summary: resp.Text}, nil
	}
	return result, nil
}

func parseStructured(kind Kind, text string) (StructuredResult, error) {
	object, ok := firstJSONObject(text)
	if !ok {
		return nil, ErrExtractionParse
	}
	if !json.Valid([]byte(object)) {
		return nil, errors.Join(ErrExtractionParse, errors.New("invalid json object"))
	}
	result, err := DecodeStructured(kind, []byte(object))
	if err != nil {
		return nil, errors.Join(ErrExtractionParse, err)
	}
	if result == nil || !hasContent(result) {
		return nil, errors.Join(ErrExtractionParse, errors.New("object does not match schema"))
	}
	return result, nil
}
