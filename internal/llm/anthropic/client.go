package anthropic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"hawkkeyed-backend/internal/llm"
	"hawkkeyed-backend/internal/shared/telemetry"
)

const (
	defaultModel     = "claude-opus-4-1-20250805"
	defaultMaxTokens = 2000
)

type promptFunc func(systemPrompt, userPrompt, apiKey string, settings types.RequestSettings, files ...types.File) (string, error)
type uploadFunc func(path, apiKey string) (string, error)

// Client implements llm.Client on the Anthropic Messages API via llmkit.
type Client struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	prompt      promptFunc
	upload      uploadFunc
}

// NewClient constructs an Anthropic client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		maxTokens:   defaultMaxTokens,
		temperature: 0.4,
		prompt:      promptWithSettings,
		upload:      uploadFile,
	}, nil
}

func promptWithSettings(systemPrompt, userPrompt, apiKey string, settings types.RequestSettings, files ...types.File) (string, error) {
	response, err := anthropic.PromptWithSettings(systemPrompt, userPrompt, "", apiKey, settings, files...)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", errors.New("no content in response")
	}
	return response.Content[0].Text, nil
}

func uploadFile(path, apiKey string) (string, error) {
	file, err := anthropic.UploadFile(path, apiKey)
	if err != nil {
		return "", err
	}
	return file.ID, nil
}

// Generate sends one message. llmkit calls are not context-aware, so the call
// runs in its own goroutine and is abandoned when ctx ends.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	settings := types.RequestSettings{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if req.MaxTokens > 0 {
		settings.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		settings.Temperature = float64(*req.Temperature)
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		files, err := c.attach(req.Attachment)
		if err != nil {
			done <- result{err: err}
			return
		}
		text, err := c.prompt(req.System, req.Prompt, c.apiKey, settings, files...)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return llm.Response{}, fmt.Errorf("anthropic request: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return llm.Response{}, fmt.Errorf("anthropic request: %w", r.err)
		}
		if strings.TrimSpace(r.text) == "" {
			telemetry.Warn("llm.empty_response", map[string]any{"provider": "anthropic", "model": c.model})
		}
		return llm.Response{Text: r.text, Provider: "anthropic", Model: c.model}, nil
	}
}

// SupportsAttachment reports the file types uploaded through the Files API.
func (c *Client) SupportsAttachment(mimeType string) bool {
	return mimeType == "application/pdf"
}

// attach uploads PDF attachments through the Files API. Other binary types
// are not accepted by the Messages API and are left to the prompt text.
func (c *Client) attach(att *llm.Attachment) ([]types.File, error) {
	if att == nil || len(att.Data) == 0 || att.MimeType != "application/pdf" {
		return nil, nil
	}
	tmp, err := os.CreateTemp("", "hawkkeyed-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(att.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("writing attachment: %w", err)
	}
	id, err := c.upload(tmp.Name(), c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("uploading attachment: %w", err)
	}
	return []types.File{{ID: id}}, nil
}

var _ llm.Client = (*Client)(nil)
