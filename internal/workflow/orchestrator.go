package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"hawkkeyed-backend/internal/shared/metrics"
	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/shared/util"
)

const (
	defaultCallTimeout  = 60 * time.Second
	persistTimeout      = 5 * time.Second
	stepPreviewChars    = 200
	fetchedContentChars = 40000
)

// RunPatch is a partial update of a stored run. Zero fields leave the
// stored value unchanged.
type RunPatch struct {
	Status       RunState
	Steps        []StepRecord
	Structured   StructuredResult
	Narrative    *Narrative
	ErrorCode    string
	ErrorMessage string
	CompletedAt  *time.Time
}

// RunRecorder persists run state. Writes are best-effort: failures are
// logged and never change the run.
type RunRecorder interface {
	CreateRun(ctx context.Context, id string, kind Kind, inputPreview string, status RunState) error
	UpdateRun(ctx context.Context, id string, patch RunPatch) error
}

// Fetcher loads the readable content of a web page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// RunObserver is told about every finished run.
type RunObserver interface {
	RunFinished(ctx context.Context, result RunResult)
}

// Orchestrator sequences a run through its states. It holds no per-run
// state, so one value can serve concurrent runs.
type Orchestrator struct {
	Extractor   *Extractor
	Narrator    *Narrator
	Recorder    RunRecorder
	Fetcher     Fetcher
	Observers   []RunObserver
	CallTimeout time.Duration
	Now         func() time.Time
	NewID       func() string
}

type run struct {
	o          *Orchestrator
	ctx        context.Context
	id         string
	kind       Kind
	state      RunState
	stateAt    time.Time
	startedAt  time.Time
	input      RunInput
	steps      *StepLog
	structured StructuredResult
	narrative  *Narrative
	recorded   bool
}

// Run executes one workflow end to end. The returned RunResult is owned by
// the caller; failures are reported in it rather than as an error.
func (o *Orchestrator) Run(ctx context.Context, kind Kind, raw RawInput) RunResult {
	if ctx == nil {
		ctx = context.Background()
	}
	now := o.now()
	r := &run{
		o:         o,
		ctx:       ctx,
		id:        o.newID(),
		kind:      kind,
		state:     StateCreated,
		stateAt:   now,
		startedAt: now,
		steps:     newStepLog(o.Now),
	}
	res := r.execute(raw)
	o.notify(ctx, res)
	return res
}

func (r *run) execute(raw RawInput) RunResult {
	metrics.IncRunStarted(string(r.kind))
	if !r.kind.Valid() {
		return r.fail(fmt.Errorf("%w: %q", ErrUnknownKind, r.kind))
	}

	if err := r.transition(StateNormalizing); err != nil {
		return r.fail(err)
	}
	input, err := Normalize(r.ctx, raw)
	if err != nil {
		return r.fail(err)
	}
	r.input = r.maybeFetch(input)
	r.create()
	idx := r.steps.Start(StepNormalizing, "Processing input...")
	r.completeStep(idx, normalizeSummary(r.input))

	if err := r.checkCanceled(); err != nil {
		return r.fail(err)
	}
	if err := r.transition(StateExtracting); err != nil {
		return r.fail(err)
	}
	idx = r.steps.Start(StepExtracting, "Extracting structured data...")
	r.update(RunPatch{Status: StateExtracting, Steps: r.steps.Records()})
	structured, err := r.extract()
	if err != nil {
		r.failStep(idx, err)
		return r.fail(err)
	}
	r.structured = structured
	r.completeStep(idx, previewStructured(structured))

	if err := r.checkCanceled(); err != nil {
		return r.fail(err)
	}
	if err := r.transition(StateNarrating); err != nil {
		return r.fail(err)
	}
	idx = r.steps.Start(StepNarrating, "Generating narrative...")
	r.update(RunPatch{Status: StateNarrating, Steps: r.steps.Records(), Structured: r.structured})
	narrative, err := r.narrate()
	if err != nil {
		r.failStep(idx, err)
		return r.fail(err)
	}
	r.narrative = &narrative
	if narrative.NotApplicable {
		r.completeStep(idx, "Not applicable for this workflow")
	} else {
		r.completeStep(idx, util.Truncate(narrative.Text, stepPreviewChars))
	}

	if err := r.transition(StateAssembling); err != nil {
		return r.fail(err)
	}
	idx = r.steps.Start(StepAssembling, "Building output...")
	r.completeStep(idx, "Workflow completed successfully")
	return r.complete()
}

func (r *run) extract() (StructuredResult, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.o.callTimeout())
	defer cancel()
	structured, err := r.o.Extractor.Extract(ctx, r.input, r.kind)
	metrics.IncLLMCall(string(StageExtraction), callStatus(err))
	return structured, err
}

func (r *run) narrate() (Narrative, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.o.callTimeout())
	defer cancel()
	narrative, err := r.o.Narrator.Narrate(ctx, r.input, r.structured, r.kind)
	if !narrative.NotApplicable {
		metrics.IncLLMCall(string(StageNarration), callStatus(err))
	}
	return narrative, err
}

// maybeFetch replaces a lone URL with the page content for url-extract runs.
func (r *run) maybeFetch(in RunInput) RunInput {
	if r.kind != KindURLExtract || r.o.Fetcher == nil || in.Attachment != nil {
		return in
	}
	target, ok := singleURL(in.Text)
	if !ok {
		return in
	}
	ctx, cancel := context.WithTimeout(r.ctx, r.o.callTimeout())
	defer cancel()
	content, err := r.o.Fetcher.Fetch(ctx, target)
	if err != nil || strings.TrimSpace(content) == "" {
		fields := r.logFields()
		fields["url"] = target
		if err != nil {
			fields["error"] = sanitizeError(err)
		}
		telemetry.Warn("workflow.fetch_failed", fields)
		return in
	}
	in.Text = "Source: " + target + "\n\n" + util.Truncate(strings.TrimSpace(content), fetchedContentChars)
	return in
}

func singleURL(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\n") {
		return "", false
	}
	u, err := url.Parse(text)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

func (r *run) transition(to RunState) error {
	from := r.state
	if !canTransition(from, to) {
		return fmt.Errorf("run %s %s->%s: %w", r.id, from, to, ErrInvalidTransition)
	}
	now := r.o.now()
	r.state = to
	fields := r.logFields()
	fields["status"] = string(to)
	fields["status_transition"] = string(from) + "->" + string(to)
	fields["duration_ms"] = durationMs(r.stateAt, now)
	r.stateAt = now
	telemetry.Info("workflow.status", fields)
	return nil
}

func (r *run) checkCanceled() error {
	if err := r.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRunCanceled, err)
	}
	return nil
}

func (r *run) completeStep(idx int, result string) {
	if err := r.steps.Complete(idx, result); err != nil {
		telemetry.Error("workflow.step_transition", r.withError(err))
	}
	r.update(RunPatch{Steps: r.steps.Records()})
}

func (r *run) failStep(idx int, cause error) {
	if err := r.steps.Fail(idx, sanitizeError(cause)); err != nil {
		telemetry.Error("workflow.step_transition", r.withError(err))
	}
}

func (r *run) complete() RunResult {
	_ = r.transition(StateCompleted)
	finishedAt := r.o.now()
	r.update(RunPatch{
		Status:      StateCompleted,
		Steps:       r.steps.Records(),
		Structured:  r.structured,
		Narrative:   r.narrative,
		CompletedAt: &finishedAt,
	})
	metrics.IncRunCompleted(string(r.kind))
	metrics.ObserveRunDuration(string(r.kind), finishedAt.Sub(r.startedAt))
	return RunResult{
		ID:         r.id,
		OK:         true,
		Workflow:   r.kind,
		Input:      r.input.Preview(),
		Steps:      r.steps.Records(),
		Structured: r.structured,
		Narrative:  r.narrative,
		Timestamp:  finishedAt,
	}
}

func (r *run) fail(err error) RunResult {
	if r.state != StateFailed {
		_ = r.transition(StateFailed)
	}
	code, retryable := classifyFailure(err)
	details := sanitizeError(err)
	finishedAt := r.o.now()

	r.update(RunPatch{
		Status:       StateFailed,
		Steps:        r.steps.Records(),
		Structured:   r.structured,
		ErrorCode:    code,
		ErrorMessage: details,
		CompletedAt:  &finishedAt,
	})
	metrics.IncRunFailed(string(r.kind), code)
	metrics.ObserveRunDuration(string(r.kind), finishedAt.Sub(r.startedAt))
	fields := r.logFields()
	fields["error_code"] = code
	fields["retryable"] = retryable
	fields["error"] = details
	telemetry.Warn("workflow.failed", fields)

	return RunResult{
		ID:         r.id,
		OK:         false,
		Workflow:   r.kind,
		Input:      r.input.Preview(),
		Steps:      r.steps.Records(),
		Structured: r.structured,
		Timestamp:  finishedAt,
		Error:      failureMessage(err),
		ErrorCode:  code,
		Details:    details,
	}
}

func (r *run) create() {
	if r.o.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(detachedContext(r.ctx), persistTimeout)
	defer cancel()
	if err := r.o.Recorder.CreateRun(ctx, r.id, r.kind, r.input.Preview(), r.state); err != nil {
		telemetry.Error("workflow.persist_failed", r.withError(err))
		return
	}
	r.recorded = true
}

func (r *run) update(patch RunPatch) {
	if r.o.Recorder == nil || !r.recorded {
		return
	}
	ctx, cancel := context.WithTimeout(detachedContext(r.ctx), persistTimeout)
	defer cancel()
	if err := r.o.Recorder.UpdateRun(ctx, r.id, patch); err != nil {
		telemetry.Error("workflow.persist_failed", r.withError(err))
	}
}

func (r *run) logFields() map[string]any {
	return map[string]any{
		"request_id": requestIDFromContext(r.ctx),
		"session_id": SessionIDFromContext(r.ctx),
		"run_id":     r.id,
		"workflow":   string(r.kind),
	}
}

func (r *run) withError(err error) map[string]any {
	fields := r.logFields()
	fields["error"] = sanitizeError(err)
	return fields
}

func (o *Orchestrator) notify(ctx context.Context, res RunResult) {
	if len(o.Observers) == 0 {
		return
	}
	detached := detachedContext(ctx)
	for _, obs := range o.Observers {
		if obs != nil {
			obs.RunFinished(detached, res)
		}
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.CallTimeout > 0 {
		return o.CallTimeout
	}
	return defaultCallTimeout
}

func failureMessage(err error) string {
	var svcErr *ServiceError
	switch {
	case errors.As(err, &svcErr):
		return svcErr.Message()
	case errors.Is(err, ErrInputMissing):
		return "Missing workflow or input"
	case errors.Is(err, ErrUnknownKind):
		return "Unknown workflow"
	case errors.Is(err, ErrRunCanceled):
		return "Run canceled"
	}
	return "Workflow failed"
}

func normalizeSummary(in RunInput) string {
	if in.Attachment == nil {
		return "Input processed successfully"
	}
	return fmt.Sprintf("Input processed with attachment %s (%s)", in.Attachment.FileName, in.Attachment.MimeType)
}

func previewStructured(s StructuredResult) string {
	data, err := json.Marshal(s)
	if err != nil {
		return "Structured data extracted successfully"
	}
	return util.Truncate(string(data), stepPreviewChars)
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func durationMs(from, to time.Time) float64 {
	return float64(to.Sub(from).Microseconds()) / 1000.0
}
