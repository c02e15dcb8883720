package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"hawkkeyed-backend/internal/llm"
	"hawkkeyed-backend/internal/shared/telemetry"
)

const (
	defaultModel     = "gemini-2.0-flash-001"
	defaultMaxTokens = 8192
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// Client implements llm.Client on the Gemini API.
type Client struct {
	model       string
	maxTokens   int32
	temperature float32
	generate    generateFunc
}

// NewClient constructs a Gemini client. It does not contact the API.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{
		model:       model,
		maxTokens:   defaultMaxTokens,
		temperature: 0.2,
		generate:    gc.Models.GenerateContent,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// SupportsAttachment reports the file types sent as inline data.
func (c *Client) SupportsAttachment(mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "image/")
}

// Generate sends the prompt and optional inline attachment in a single user turn.
// A blank answer is returned as empty text; callers decide how to degrade.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	temp := c.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	config.Temperature = &temp
	config.MaxOutputTokens = c.maxTokens
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Attachment.MimeType,
				Data:     req.Attachment.Data,
			},
		})
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := c.generate(ctx, c.model, contents, config)
	if err != nil {
		return llm.Response{}, wrapError(err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.Response{}, errors.New("gemini: no response candidates generated")
	}

	candidate := result.Candidates[0]
	var text strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				text.WriteString(part.Text)
			}
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		telemetry.Warn("llm.empty_response", map[string]any{
			"provider":      "gemini",
			"model":         c.model,
			"finish_reason": string(candidate.FinishReason),
		})
	}
	return llm.Response{Text: text.String(), Provider: "gemini", Model: c.model}, nil
}

var apiErrorCode = regexp.MustCompile(`Error (\d{3}),`)

// wrapError lifts the HTTP status out of genai API errors so callers can
// classify overloads and server errors.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("gemini request: %w", err)
	}
	if m := apiErrorCode.FindStringSubmatch(err.Error()); len(m) == 2 {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return fmt.Errorf("gemini request: %w", &llm.StatusError{Provider: "gemini", StatusCode: code, Message: err.Error()})
		}
	}
	return fmt.Errorf("gemini request: %w", err)
}

var _ llm.Client = (*Client)(nil)
