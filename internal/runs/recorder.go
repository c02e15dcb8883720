package runs

import (
	"context"

	"hawkkeyed-backend/internal/workflow"
)

// Recorder adapts a Repo to the orchestrator's RunRecorder.
type Recorder struct {
	Repo Repo
}

func (r Recorder) CreateRun(ctx context.Context, id string, kind workflow.Kind, inputPreview string, status workflow.RunState) error {
	return r.Repo.Create(ctx, Run{
		ID:           id,
		SessionID:    workflow.SessionIDFromContext(ctx),
		Workflow:     kind,
		Status:       status,
		InputPreview: inputPreview,
	})
}

func (r Recorder) UpdateRun(ctx context.Context, id string, patch workflow.RunPatch) error {
	return r.Repo.Update(ctx, id, patch)
}

var _ workflow.RunRecorder = Recorder{}
