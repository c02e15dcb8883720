package runs

import (
	"context"

	"hawkkeyed-backend/internal/workflow"
)

// Repo stores workflow runs. Updates are idempotent merges per run id.
type Repo interface {
	Create(ctx context.Context, run Run) error
	Update(ctx context.Context, id string, patch workflow.RunPatch) error
	Get(ctx context.Context, id string) (Run, error)
}
