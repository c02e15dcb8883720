package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

func TestMemoryRepoMergesPatches(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, Run{ID: "r1", Workflow: workflow.KindDataInsights, Status: workflow.StateNormalizing}); err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []workflow.StepRecord{{Name: workflow.StepExtracting, Status: workflow.StepCompleted}}
	structured := workflow.DataInsights{Summary: "s"}
	patch := workflow.RunPatch{Status: workflow.StateNarrating, Steps: steps, Structured: structured}
	for i := 0; i < 2; i++ {
		if err := repo.Update(ctx, "r1", patch); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	completed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.Update(ctx, "r1", workflow.RunPatch{
		Status:      workflow.StateCompleted,
		Narrative:   &workflow.Narrative{Text: "story"},
		CompletedAt: &completed,
	}); err != nil {
		t.Fatalf("final update: %v", err)
	}
	if err := repo.Update(ctx, "r1", workflow.RunPatch{Status: workflow.StateFailed}); err != nil {
		t.Fatalf("late update: %v", err)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != workflow.StateCompleted {
		t.Fatalf("terminal status must stick, got %q", got.Status)
	}
	if len(got.Steps) != 1 || got.Structured == nil || got.Narrative == nil || got.Narrative.Text != "story" {
		t.Fatalf("unexpected merged run %+v", got)
	}
	res := got.Result()
	if !res.OK || !res.Timestamp.Equal(completed) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestMemoryRepoNotFound(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.Update(context.Background(), "missing", workflow.RunPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecorderStoresSession(t *testing.T) {
	repo := NewMemoryRepo()
	rec := Recorder{Repo: repo}
	ctx := workflow.WithSessionID(context.Background(), "sess-9")
	if err := rec.CreateRun(ctx, "r2", workflow.KindChatDraft, "hello", workflow.StateNormalizing); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := GetForSession(context.Background(), repo, "r2", "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other sessions must not see the run, got %v", err)
	}
	run, err := GetForSession(context.Background(), repo, "r2", "sess-9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if run.InputPreview != "hello" || run.Workflow != workflow.KindChatDraft {
		t.Fatalf("unexpected run %+v", run)
	}
}
