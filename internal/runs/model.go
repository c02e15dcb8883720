package runs

import (
	"errors"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

var ErrNotFound = errors.New("not found")

// Run is the stored form of a workflow run.
type Run struct {
	ID           string
	SessionID    string
	Workflow     workflow.Kind
	Status       workflow.RunState
	InputPreview string
	Steps        []workflow.StepRecord
	Structured   workflow.StructuredResult
	Narrative    *workflow.Narrative
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Result rebuilds the RunResult a client received for this run.
func (r Run) Result() workflow.RunResult {
	ts := r.UpdatedAt
	if r.CompletedAt != nil {
		ts = *r.CompletedAt
	}
	res := workflow.RunResult{
		ID:         r.ID,
		OK:         r.Status == workflow.StateCompleted,
		Workflow:   r.Workflow,
		Input:      r.InputPreview,
		Steps:      r.Steps,
		Structured: r.Structured,
		Narrative:  r.Narrative,
		Timestamp:  ts,
		ErrorCode:  r.ErrorCode,
		Details:    r.ErrorMessage,
	}
	if res.Steps == nil {
		res.Steps = []workflow.StepRecord{}
	}
	if r.Status == workflow.StateFailed {
		res.Error = "Workflow failed"
	}
	return res
}

// apply merges a patch into the run. Applying the same patch twice gives
// the same run, and a terminal status is never overwritten.
func (r Run) apply(patch workflow.RunPatch, now time.Time) Run {
	if patch.Status != "" && !r.Status.Terminal() {
		r.Status = patch.Status
	}
	if patch.Steps != nil {
		r.Steps = append([]workflow.StepRecord(nil), patch.Steps...)
	}
	if patch.Structured != nil {
		r.Structured = patch.Structured
	}
	if patch.Narrative != nil && !patch.Narrative.NotApplicable {
		n := *patch.Narrative
		r.Narrative = &n
	}
	if patch.ErrorCode != "" {
		r.ErrorCode = patch.ErrorCode
	}
	if patch.ErrorMessage != "" {
		r.ErrorMessage = patch.ErrorMessage
	}
	if patch.CompletedAt != nil && r.CompletedAt == nil {
		t := *patch.CompletedAt
		r.CompletedAt = &t
	}
	r.UpdatedAt = now
	return r
}
