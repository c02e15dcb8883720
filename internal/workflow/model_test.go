package workflow

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	forward := []RunState{StateCreated, StateNormalizing, StateExtracting, StateNarrating, StateAssembling, StateCompleted}
	for i := 0; i+1 < len(forward); i++ {
		if !canTransition(forward[i], forward[i+1]) {
			t.Fatalf("%s->%s should be allowed", forward[i], forward[i+1])
		}
	}
	if canTransition(StateExtracting, StateNormalizing) {
		t.Fatalf("backward transition allowed")
	}
	if canTransition(StateNormalizing, StateNarrating) {
		t.Fatalf("skipping a state allowed")
	}
	if !canTransition(StateNarrating, StateFailed) {
		t.Fatalf("failure from a running state must be allowed")
	}
	if canTransition(StateCompleted, StateFailed) || canTransition(StateFailed, StateCompleted) {
		t.Fatalf("terminal states must absorb")
	}
}

func TestStepLogMonotonic(t *testing.T) {
	log := newStepLog(func() time.Time { return time.Unix(0, 0).UTC() })
	idx := log.Start(StepExtracting, "Extracting structured data...")
	if err := log.Complete(idx, "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := log.Fail(idx, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := log.Complete(5, "missing"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for unknown step, got %v", err)
	}
	recs := log.Records()
	if len(recs) != 1 || recs[0].Status != StepCompleted || recs[0].Title != "HawkVision Analysis" {
		t.Fatalf("unexpected records %+v", recs)
	}
	recs[0].Status = StepFailed
	if log.Records()[0].Status != StepCompleted {
		t.Fatalf("Records must return a copy")
	}
}

func TestRunResultJSONRoundTrip(t *testing.T) {
	res := RunResult{
		ID:         "run-9",
		OK:         true,
		Workflow:   KindChatDraft,
		Input:      "chat",
		Structured: ChatDraft{EmailDraft: EmailDraft{Subject: "Follow-up", Body: "Thanks", Tone: "formal"}},
		Narrative:  &Narrative{NotApplicable: true},
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"narrative":null`) {
		t.Fatalf("expected null narrative in %s", data)
	}

	var got RunResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	draft, ok := got.Structured.(ChatDraft)
	if !ok || draft.EmailDraft.Subject != "Follow-up" {
		t.Fatalf("unexpected structured %#v", got.Structured)
	}
	if got.Narrative.Present() {
		t.Fatalf("narrative should not be present")
	}
}

func TestRunResultDecodesRawFallbackForAnyKind(t *testing.T) {
	var got RunResult
	payload := `{"ok":true,"workflow":"url-extract","structured":{"summary":"free text","raw":true},"narrative":"story"}`
	if err := json.Unmarshal([]byte(payload), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	raw, ok := got.Structured.(RawFallback)
	if !ok || raw.Summary != "free text" {
		t.Fatalf("unexpected structured %#v", got.Structured)
	}
	if !got.Narrative.Present() || got.Narrative.Text != "story" {
		t.Fatalf("unexpected narrative %#v", got.Narrative)
	}
}

func TestRunResultRejectsUnknownWorkflow(t *testing.T) {
	var got RunResult
	err := json.Unmarshal([]byte(`{"workflow":"poem","structured":{"summary":"x"}}`), &got)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
