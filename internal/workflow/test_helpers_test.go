package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"hawkkeyed-backend/internal/llm"
)

type fakeReply struct {
	text string
	err  error
}

type fakeLLM struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   []llm.Request
	block   bool
}

func replyWith(replies ...fakeReply) *fakeLLM {
	return &fakeLLM{replies: replies}
}

func (f *fakeLLM) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	block := f.block
	var next fakeReply
	if len(f.replies) > 0 {
		next = f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if next.err != nil {
		return llm.Response{}, next.err
	}
	return llm.Response{Text: next.text, Provider: "fake", Model: "fake-1"}, nil
}

// readingLLM is a fakeLLM that reads the listed file types natively.
type readingLLM struct {
	*fakeLLM
	mimeTypes []string
}

func (r readingLLM) SupportsAttachment(mimeType string) bool {
	for _, m := range r.mimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeLLM) lastCall() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return llm.Request{}
	}
	return f.calls[len(f.calls)-1]
}

func mustPrompts(t *testing.T) Prompts {
	t.Helper()
	p, err := DefaultPrompts()
	if err != nil {
		t.Fatalf("default prompts: %v", err)
	}
	return p
}

func newTestOrchestrator(t *testing.T, extraction, narration llm.Client) *Orchestrator {
	t.Helper()
	p := mustPrompts(t)
	clock := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	return &Orchestrator{
		Extractor:   &Extractor{Client: extraction, Prompts: p.Extraction},
		Narrator:    &Narrator{Client: narration, Prompts: p.Narration},
		CallTimeout: time.Second,
		Now:         func() time.Time { return clock },
		NewID:       func() string { return "run-1" },
	}
}

type recordedCall struct {
	op    string
	id    string
	patch RunPatch
}

type fakeRecorder struct {
	mu        sync.Mutex
	calls     []recordedCall
	createErr error
	updateErr error
}

func (f *fakeRecorder) CreateRun(ctx context.Context, id string, kind Kind, inputPreview string, status RunState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: "create", id: id, patch: RunPatch{Status: status}})
	return f.createErr
}

func (f *fakeRecorder) UpdateRun(ctx context.Context, id string, patch RunPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: "update", id: id, patch: patch})
	return f.updateErr
}

func (f *fakeRecorder) snapshot() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedCall, len(f.calls))
	copy(out, f.calls)
	return out
}
