// Package fetch downloads a web page and turns it into text suitable for
// a prompt.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"hawkkeyed-backend/internal/extract"
)

const (
	DefaultMaxBytes = 5 << 20
	defaultTimeout  = 20 * time.Second
	userAgent       = "hawkkeyed-fetcher/1.0"
)

var ErrTooLarge = errors.New("response body too large")

// HTTPError reports a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// handler converts one kind of response body into text.
type handler interface {
	canHandle(contentType string) bool
	handle(ctx context.Context, body []byte) (string, error)
}

// Fetcher downloads URLs and converts the body by content type. It
// implements workflow.Fetcher.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	handlers []handler
}

// New builds a Fetcher. A nil client gets a default with a timeout.
func New(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client:   client,
		maxBytes: maxBytes,
		handlers: []handler{
			pdfHandler{},
			textHandler{},
			htmlHandler{converter: md.NewConverter("", true, nil)}, // fallback
		},
	}
}

// Fetch returns the page content as markdown or plain text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,application/pdf;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return "", ErrTooLarge
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	for _, h := range f.handlers {
		if h.canHandle(contentType) {
			text, err := h.handle(ctx, body)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(text), nil
		}
	}
	return "", fmt.Errorf("no handler for %s", contentType)
}

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

type htmlHandler struct {
	converter *md.Converter
}

func (htmlHandler) canHandle(string) bool { return true }

func (h htmlHandler) handle(_ context.Context, body []byte) (string, error) {
	markdown, err := h.converter.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return markdown, nil
}

type textHandler struct{}

func (textHandler) canHandle(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") && contentType != "text/html"
}

func (textHandler) handle(_ context.Context, body []byte) (string, error) {
	return extract.DecodeText(body), nil
}

type pdfHandler struct{}

func (pdfHandler) canHandle(contentType string) bool {
	return contentType == extract.MimePDF
}

func (pdfHandler) handle(ctx context.Context, body []byte) (string, error) {
	return extract.Text(ctx, body, extract.MimePDF, "page.pdf")
}
