package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts a text-generation provider. One call is one request and
// one response; implementations do not retry.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// AttachmentReader is implemented by clients that can read some file types
// natively. Clients without it only see the prompt text.
type AttachmentReader interface {
	SupportsAttachment(mimeType string) bool
}

// SupportsAttachment reports whether c reads files of mimeType natively.
func SupportsAttachment(c Client, mimeType string) bool {
	r, ok := c.(AttachmentReader)
	return ok && r.SupportsAttachment(mimeType)
}

// Request is a single prompt sent to a provider.
type Request struct {
	System      string
	Prompt      string
	Attachment  *Attachment
	MaxTokens   int
	Temperature *float32
	// JSON asks providers that support it to constrain output to a JSON object.
	JSON bool
}

// Attachment is an opaque file passed alongside the prompt.
type Attachment struct {
	FileName string
	MimeType string
	Data     []byte
}

// Response is the provider's free-text answer.
type Response struct {
	Text     string
	Provider string
	Model    string
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm provider not configured")

// PlaceholderClient stands in for a provider whose credentials are missing.
type PlaceholderClient struct {
	Provider string
}

// Generate returns ErrNotConfigured.
func (p PlaceholderClient) Generate(ctx context.Context, req Request) (Response, error) {
	_ = ctx
	_ = req
	if p.Provider == "" {
		return Response{}, ErrNotConfigured
	}
	return Response{}, fmt.Errorf("%s: %w", p.Provider, ErrNotConfigured)
}

// DemoClient answers without calling any provider. It lets a local
// environment without API keys run every workflow end to end.
type DemoClient struct {
	Provider string
}

// Generate echoes a fixed banner and the start of the prompt.
func (d DemoClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	prompt := req.Prompt
	if len(prompt) > 400 {
		prompt = prompt[:400]
	}
	return Response{
		Text:     fmt.Sprintf("[Demo Mode - configure %s credentials to enable live output]\n\n%s", d.Provider, prompt),
		Provider: "demo",
		Model:    "demo",
	}, nil
}
