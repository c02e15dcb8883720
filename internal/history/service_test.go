package history

import (
	"context"
	"testing"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

func TestRecordSkipsFailedRuns(t *testing.T) {
	svc := NewService(NewMemoryStore(10))
	ctx := context.Background()

	_, recorded, err := svc.Record(ctx, "s1", workflow.RunResult{ID: "bad", OK: false, Workflow: workflow.KindURLExtract})
	if err != nil || recorded {
		t.Fatalf("failed run must not be recorded: recorded=%v err=%v", recorded, err)
	}

	long := ""
	for i := 0; i < 30; i++ {
		long += "abcdefgh "
	}
	e, recorded, err := svc.Record(ctx, "s1", workflow.RunResult{
		ID:        "good",
		OK:        true,
		Workflow:  workflow.KindURLExtract,
		Input:     long,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil || !recorded {
		t.Fatalf("expected run recorded, err=%v", err)
	}
	if len([]rune(e.TruncatedInput)) != truncatedInputChars {
		t.Fatalf("expected truncated input of %d runes, got %d", truncatedInputChars, len([]rune(e.TruncatedInput)))
	}

	got, _ := svc.List(ctx, "s1", 10)
	if len(got) != 1 || got[0].ID != "good" {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func TestRunFinishedUsesSessionFromContext(t *testing.T) {
	store := NewMemoryStore(10)
	svc := NewService(store)
	ctx := workflow.WithSessionID(context.Background(), "sess-9")

	svc.RunFinished(ctx, workflow.RunResult{ID: "r1", OK: true, Workflow: workflow.KindChatDraft})

	res, err := svc.Restore(context.Background(), "sess-9", "r1")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if res.Workflow != workflow.KindChatDraft {
		t.Fatalf("unexpected restored workflow %s", res.Workflow)
	}
}

func TestStats(t *testing.T) {
	svc := NewService(NewMemoryStore(10))
	ctx := context.Background()

	empty, err := svc.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.TotalRuns != 0 || empty.MostUsed != "None" || empty.SuccessRate != "N/A" {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}

	for i, kind := range []workflow.Kind{workflow.KindDataInsights, workflow.KindDocumentSummary, workflow.KindDataInsights} {
		res := workflow.RunResult{ID: string(rune('a' + i)), OK: true, Workflow: kind}
		if _, _, err := svc.Record(ctx, "s1", res); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	stats, err := svc.Stats(ctx, "s1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRuns != 3 {
		t.Fatalf("expected 3 runs, got %d", stats.TotalRuns)
	}
	if stats.ByWorkflow[workflow.KindDataInsights] != 2 || stats.ByWorkflow[workflow.KindDocumentSummary] != 1 {
		t.Fatalf("unexpected counts: %+v", stats.ByWorkflow)
	}
	if stats.MostUsed != workflow.KindDataInsights.Title() {
		t.Fatalf("expected most used %q, got %q", workflow.KindDataInsights.Title(), stats.MostUsed)
	}
	if stats.SuccessRate != "100%" {
		t.Fatalf("expected 100%%, got %s", stats.SuccessRate)
	}
}

func TestStatsTieBreaksByCatalogOrder(t *testing.T) {
	stats := computeStats([]Entry{
		{ID: "1", Workflow: workflow.KindChatDraft, Result: workflow.RunResult{OK: true}},
		{ID: "2", Workflow: workflow.KindDocumentSummary, Result: workflow.RunResult{OK: true}},
	})
	if stats.MostUsed != workflow.KindDocumentSummary.Title() {
		t.Fatalf("expected tie to resolve to %q, got %q", workflow.KindDocumentSummary.Title(), stats.MostUsed)
	}
}
