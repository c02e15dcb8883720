package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hawkkeyed-backend/internal/llm"
)

func TestRunRejectsMissingInputBeforeAnyCall(t *testing.T) {
	extraction := replyWith()
	narration := replyWith()
	rec := &fakeRecorder{}
	o := newTestOrchestrator(t, extraction, narration)
	o.Recorder = rec

	res := o.Run(context.Background(), KindDocumentSummary, RawInput{})
	if res.OK {
		t.Fatalf("expected failure")
	}
	if res.ErrorCode != ErrorCodeValidation {
		t.Fatalf("expected validation code, got %q", res.ErrorCode)
	}
	if len(res.Steps) != 0 {
		t.Fatalf("expected no steps, got %+v", res.Steps)
	}
	if extraction.callCount() != 0 || narration.callCount() != 0 {
		t.Fatalf("no provider call expected")
	}
	if len(rec.snapshot()) != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestRunStopsAtFailedExtraction(t *testing.T) {
	narration := replyWith(fakeReply{text: "unused"})
	o := newTestOrchestrator(t, replyWith(fakeReply{err: errors.New("auth failed")}), narration)

	res := o.Run(context.Background(), KindURLExtract, RawInput{Text: "Some article"})
	if res.OK {
		t.Fatalf("expected failure")
	}
	failed := 0
	for _, s := range res.Steps {
		if s.Name == StepNarrating {
			t.Fatalf("narrating must not be reached")
		}
		if s.Status == StepFailed {
			failed++
			if s.Name != StepExtracting {
				t.Fatalf("unexpected failed step %q", s.Name)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one failed step, got %d", failed)
	}
	if narration.callCount() != 0 {
		t.Fatalf("narration must not be called")
	}
	if res.Structured != nil {
		t.Fatalf("no structured result expected")
	}
	if res.Error == "" || res.Details == "" {
		t.Fatalf("expected error and details, got %+v", res)
	}
}

func TestRunKeepsStructuredWhenNarrationFails(t *testing.T) {
	o := newTestOrchestrator(t,
		replyWith(fakeReply{text: `{"summary":"Growth","insights":["Q4"],"recommendations":["Hire"]}`}),
		replyWith(fakeReply{err: errors.New("http status 500: boom")}),
	)

	res := o.Run(context.Background(), KindDataInsights, RawInput{Text: "Month,Value\nJan,1"})
	if res.OK {
		t.Fatalf("expected failure")
	}
	di, ok := res.Structured.(DataInsights)
	if !ok || di.Summary != "Growth" {
		t.Fatalf("structured result should be preserved, got %#v", res.Structured)
	}
	var narrating *StepRecord
	for i := range res.Steps {
		if res.Steps[i].Status == StepFailed && res.Steps[i].Name != StepNarrating {
			t.Fatalf("only narrating may fail, got %+v", res.Steps[i])
		}
		if res.Steps[i].Name == StepNarrating {
			narrating = &res.Steps[i]
		}
	}
	if narrating == nil || narrating.Status != StepFailed {
		t.Fatalf("expected failed narrating step, got %+v", res.Steps)
	}
	if res.ErrorCode != ErrorCodeLLMError {
		t.Fatalf("unexpected code %q", res.ErrorCode)
	}
}

func TestRunChatDraftScenario(t *testing.T) {
	body := `{"emailDraft":{"subject":"Follow-up","body":"Thanks for joining...","tone":"professional"}}`
	o := newTestOrchestrator(t, replyWith(fakeReply{text: "Here you go:\n" + body}), replyWith(fakeReply{text: "A warm, professional follow-up."}))

	res := o.Run(context.Background(), KindChatDraft, RawInput{Text: "Client Follow-up Email..."})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	draft, ok := res.Structured.(ChatDraft)
	if !ok || draft.EmailDraft.Subject != "Follow-up" {
		t.Fatalf("unexpected structured %#v", res.Structured)
	}
	wantSteps := []string{StepNormalizing, StepExtracting, StepNarrating, StepAssembling}
	if len(res.Steps) != len(wantSteps) {
		t.Fatalf("unexpected steps %+v", res.Steps)
	}
	for i, name := range wantSteps {
		if res.Steps[i].Name != name || res.Steps[i].Status != StepCompleted {
			t.Fatalf("step %d: %+v", i, res.Steps[i])
		}
	}
	if res.ID != "run-1" || res.Input != "Client Follow-up Email..." {
		t.Fatalf("unexpected result header %+v", res)
	}
}

func TestRunMapsTimeoutToServiceError(t *testing.T) {
	slow := &fakeLLM{block: true}
	o := newTestOrchestrator(t, slow, replyWith())
	o.CallTimeout = 20 * time.Millisecond

	res := o.Run(context.Background(), KindDocumentSummary, RawInput{Text: "doc"})
	if res.OK || res.ErrorCode != ErrorCodeLLMTimeout {
		t.Fatalf("expected timeout failure, got %+v", res)
	}
}

func TestRunStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	extraction := &cancelingLLM{cancel: cancel, text: `{"summary":"ok"}`}
	narration := replyWith(fakeReply{text: "unused"})
	o := newTestOrchestrator(t, extraction, narration)

	res := o.Run(ctx, KindDocumentSummary, RawInput{Text: "doc"})
	if res.OK || res.ErrorCode != ErrorCodeCanceled {
		t.Fatalf("expected canceled run, got %+v", res)
	}
	if narration.callCount() != 0 {
		t.Fatalf("narration must not run after cancel")
	}
}

func TestRunPersistenceIsBestEffort(t *testing.T) {
	rec := &fakeRecorder{updateErr: errors.New("db down")}
	o := newTestOrchestrator(t, replyWith(fakeReply{text: `{"summary":"s"}`}), replyWith(fakeReply{text: "n"}))
	o.Recorder = rec

	res := o.Run(context.Background(), KindDocumentSummary, RawInput{Text: "doc"})
	if !res.OK {
		t.Fatalf("persistence errors must not fail the run: %+v", res)
	}
	calls := rec.snapshot()
	if len(calls) < 2 || calls[0].op != "create" {
		t.Fatalf("expected create then updates, got %+v", calls)
	}
	last := calls[len(calls)-1]
	if last.patch.Status != StateCompleted || last.patch.CompletedAt == nil {
		t.Fatalf("expected final completed patch, got %+v", last.patch)
	}
}

func TestRunFetchesLoneURLForURLExtract(t *testing.T) {
	extraction := replyWith(fakeReply{text: `{"summary":"page"}`})
	o := newTestOrchestrator(t, extraction, replyWith(fakeReply{text: "n"}))
	o.Fetcher = fetcherFunc(func(ctx context.Context, rawURL string) (string, error) {
		return "# Launch\n\nWe ship in May.", nil
	})

	res := o.Run(context.Background(), KindURLExtract, RawInput{Text: "https://example.com/post"})
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	prompt := extraction.lastCall().Prompt
	if !containsAll(prompt, "Source: https://example.com/post", "We ship in May.") {
		t.Fatalf("fetched content missing from prompt: %q", prompt)
	}
}

func TestRunNotifiesObservers(t *testing.T) {
	obs := &captureObserver{}
	o := newTestOrchestrator(t, replyWith(fakeReply{text: `{"summary":"s"}`}), replyWith(fakeReply{text: "n"}))
	o.Observers = []RunObserver{obs}

	ctx := WithSessionID(context.Background(), "sess-1")
	o.Run(ctx, KindDocumentSummary, RawInput{Text: "doc"})
	if len(obs.results) != 1 || obs.sessions[0] != "sess-1" {
		t.Fatalf("expected one notification with session, got %+v", obs)
	}
}

type cancelingLLM struct {
	cancel context.CancelFunc
	text   string
}

func (c *cancelingLLM) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	c.cancel()
	return llm.Response{Text: c.text}, nil
}

type fetcherFunc func(ctx context.Context, rawURL string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, rawURL string) (string, error) { return f(ctx, rawURL) }

type captureObserver struct {
	results  []RunResult
	sessions []string
}

func (c *captureObserver) RunFinished(ctx context.Context, res RunResult) {
	c.results = append(c.results, res)
	c.sessions = append(c.sessions, SessionIDFromContext(ctx))
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
