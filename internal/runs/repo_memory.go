package runs

import (
	"context"
	"sync"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

// MemoryRepo stores runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Run
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID: make(map[string]Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	r.byID[run.ID] = run
	return nil
}

// Update merges patch into the stored run.
func (r *MemoryRepo) Update(ctx context.Context, id string, patch workflow.RunPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.byID[id] = run.apply(patch, r.now())
	return nil
}

// Get returns a run by its ID.
func (r *MemoryRepo) Get(ctx context.Context, id string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	run.Steps = append([]workflow.StepRecord(nil), run.Steps...)
	return run, nil
}

var _ Repo = (*MemoryRepo)(nil)
