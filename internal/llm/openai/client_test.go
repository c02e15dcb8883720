package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"hawkkeyed-backend/internal/llm"
	"hawkkeyed-backend/internal/shared/telemetry"
)

func withServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	oldURL := apiURL
	apiURL = server.URL
	telemetry.SetOutput(io.Discard)
	t.Cleanup(func() {
		apiURL = oldURL
		server.Close()
		telemetry.SetOutput(os.Stdout)
	})
}

func TestGenerateRequestShape(t *testing.T) {
	var body map[string]any
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"summary\":\"ok\"} "}}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	})

	client, err := NewClient("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	temp := float32(0.1)
	resp, err := client.Generate(context.Background(), llm.Request{System: "be brief", Prompt: "extract", JSON: true, Temperature: &temp})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != `{"summary":"ok"}` {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if rf, ok := body["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", body["response_format"])
	}
	if msgs, ok := body["messages"].([]any); !ok || len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", body["messages"])
	}
	if _, ok := body["temperature"]; !ok {
		t.Fatalf("expected temperature for gpt-4o-mini")
	}
}

func TestGenerateOmitsTemperatureForReasoningModels(t *testing.T) {
	var body map[string]any
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi"}}]}`))
	})
	client, _ := NewClient("sk-test", "gpt-5-mini")
	temp := float32(0.3)
	if _, err := client.Generate(context.Background(), llm.Request{Prompt: "x", Temperature: &temp}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, ok := body["temperature"]; ok {
		t.Fatalf("temperature must be omitted for gpt-5 models")
	}
}

func TestGenerateStatusError(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})
	client, _ := NewClient("sk-test", "gpt-4o")
	_, err := client.Generate(context.Background(), llm.Request{Prompt: "x"})
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 status error, got %v", err)
	}
	if !llm.IsTransient(err) {
		t.Fatalf("expected transient classification")
	}
}

func TestSupportsTemperature(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{model: "gpt-5", want: false},
		{model: " GPT-5o ", want: false},
		{model: "o3-mini", want: false},
		{model: "gpt-4o", want: true},
	}
	for _, tt := range tests {
		if got := supportsTemperature(tt.model); got != tt.want {
			t.Fatalf("supportsTemperature(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
