package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hawkkeyed-backend/internal/workflow"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new run.
func (r *PGRepo) Create(ctx context.Context, run Run) error {
	const query = `
INSERT INTO workflow_runs (id, session_id, workflow, status, input_preview, steps, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	steps, err := marshalSteps(run.Steps)
	if err != nil {
		return err
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.DB.ExecContext(ctx, query,
		run.ID,
		run.SessionID,
		string(run.Workflow),
		string(run.Status),
		run.InputPreview,
		steps,
		createdAt,
	)
	return err
}

// Update merges patch into the stored run. Empty patch fields keep the
// stored values, and a terminal status is never overwritten.
func (r *PGRepo) Update(ctx context.Context, id string, patch workflow.RunPatch) error {
	const query = `
UPDATE workflow_runs SET
	status = CASE WHEN status IN ('completed', 'failed') THEN status ELSE COALESCE(NULLIF($2, ''), status) END,
	steps = COALESCE($3::jsonb, steps),
	structured = COALESCE($4::jsonb, structured),
	narrative = COALESCE($5, narrative),
	error_code = COALESCE(NULLIF($6, ''), error_code),
	error_message = COALESCE(NULLIF($7, ''), error_message),
	completed_at = COALESCE(completed_at, $8),
	updated_at = $9
WHERE id = $1`

	var steps any
	if patch.Steps != nil {
		payload, err := marshalSteps(patch.Steps)
		if err != nil {
			return err
		}
		steps = payload
	}
	var structured any
	if patch.Structured != nil {
		payload, err := json.Marshal(patch.Structured)
		if err != nil {
			return fmt.Errorf("marshal structured: %w", err)
		}
		structured = payload
	}
	var narrative any
	if patch.Narrative != nil && !patch.Narrative.NotApplicable {
		narrative = patch.Narrative.Text
	}
	var completedAt any
	if patch.CompletedAt != nil {
		completedAt = *patch.CompletedAt
	}

	res, err := r.DB.ExecContext(ctx, query,
		id,
		string(patch.Status),
		steps,
		structured,
		narrative,
		patch.ErrorCode,
		patch.ErrorMessage,
		completedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a run by its ID.
func (r *PGRepo) Get(ctx context.Context, id string) (Run, error) {
	const query = `
SELECT id, session_id, workflow, status, input_preview, steps, structured, narrative,
	error_code, error_message, created_at, updated_at, completed_at
FROM workflow_runs
WHERE id = $1`

	var (
		run          Run
		workflowName string
		status       string
		steps        []byte
		structured   []byte
		narrative    sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.SessionID,
		&workflowName,
		&status,
		&run.InputPreview,
		&steps,
		&structured,
		&narrative,
		&errorCode,
		&errorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}

	run.Workflow = workflow.Kind(workflowName)
	run.Status = workflow.RunState(status)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &run.Steps); err != nil {
			return Run{}, fmt.Errorf("decode steps: %w", err)
		}
	}
	if len(structured) > 0 {
		decoded, err := workflow.DecodeStructured(run.Workflow, structured)
		if err != nil {
			return Run{}, err
		}
		run.Structured = decoded
	}
	if narrative.Valid {
		run.Narrative = &workflow.Narrative{Text: narrative.String}
	}
	run.ErrorCode = errorCode.String
	run.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

func marshalSteps(steps []workflow.StepRecord) ([]byte, error) {
	if steps == nil {
		steps = []workflow.StepRecord{}
	}
	payload, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	return payload, nil
}

var _ Repo = (*PGRepo)(nil)
