package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RunState is the orchestrator's position in a run.
type RunState string

const (
	StateCreated     RunState = "created"
	StateNormalizing RunState = "normalizing"
	StateExtracting  RunState = "extracting"
	StateNarrating   RunState = "narrating"
	StateAssembling  RunState = "assembling"
	StateCompleted   RunState = "completed"
	StateFailed      RunState = "failed"
)

var runStateOrder = map[RunState]int{
	StateCreated:     0,
	StateNormalizing: 1,
	StateExtracting:  2,
	StateNarrating:   3,
	StateAssembling:  4,
	StateCompleted:   5,
}

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var ErrInvalidTransition = errors.New("invalid transition")

// canTransition allows exactly one step forward, or failure from any
// non-terminal state.
func canTransition(from, to RunState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	fromIdx, ok := runStateOrder[from]
	if !ok {
		return false
	}
	toIdx, ok := runStateOrder[to]
	return ok && toIdx == fromIdx+1
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Step names.
const (
	StepNormalizing = "Normalizing"
	StepExtracting  = "Extracting"
	StepNarrating   = "Narrating"
	StepAssembling  = "Assembling"
)

var stepTitles = map[string]string{
	StepNormalizing: "Extracting & Cleaning",
	StepExtracting:  "HawkVision Analysis",
	StepNarrating:   "Deep Intelligence Processing",
	StepAssembling:  "Building Output",
}

// StepRecord is one audit-log entry of a run.
type StepRecord struct {
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	Status    StepStatus `json:"status"`
	Result    string     `json:"result"`
	Timestamp time.Time  `json:"timestamp"`
}

func canAdvanceStep(from, to StepStatus) bool {
	switch from {
	case StepPending:
		return to == StepRunning || to == StepFailed
	case StepRunning:
		return to == StepCompleted || to == StepFailed
	}
	return false
}

// StepLog is the append-only step list of a single run.
type StepLog struct {
	records []StepRecord
	now     func() time.Time
}

func newStepLog(now func() time.Time) *StepLog {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &StepLog{now: now}
}

// Start appends a running record and returns its index.
func (l *StepLog) Start(name, result string) int {
	l.records = append(l.records, StepRecord{
		Name:      name,
		Title:     stepTitles[name],
		Status:    StepRunning,
		Result:    result,
		Timestamp: l.now(),
	})
	return len(l.records) - 1
}

// Complete moves a running record to completed.
func (l *StepLog) Complete(idx int, result string) error {
	return l.advance(idx, StepCompleted, result)
}

// Fail moves a running record to failed.
func (l *StepLog) Fail(idx int, result string) error {
	return l.advance(idx, StepFailed, result)
}

func (l *StepLog) advance(idx int, to StepStatus, result string) error {
	if idx < 0 || idx >= len(l.records) {
		return fmt.Errorf("step %d: %w", idx, ErrInvalidTransition)
	}
	rec := &l.records[idx]
	if !canAdvanceStep(rec.Status, to) {
		return fmt.Errorf("step %s %s->%s: %w", rec.Name, rec.Status, to, ErrInvalidTransition)
	}
	rec.Status = to
	rec.Result = result
	rec.Timestamp = l.now()
	return nil
}

// Records returns a copy of the log.
func (l *StepLog) Records() []StepRecord {
	out := make([]StepRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Narrative is the free-text output of the second model call. When the
// workflow gains nothing from a second pass it is marked NotApplicable and
// encodes as JSON null.
type Narrative struct {
	Text          string
	NotApplicable bool
}

// Present reports whether there is narrative text to show.
func (n *Narrative) Present() bool {
	return n != nil && !n.NotApplicable && n.Text != ""
}

func (n Narrative) MarshalJSON() ([]byte, error) {
	if n.NotApplicable {
		return []byte("null"), nil
	}
	return json.Marshal(n.Text)
}

func (n *Narrative) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Narrative{NotApplicable: true}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*n = Narrative{Text: text}
	return nil
}

// RunResult is the single artifact of a run. It is not mutated after the
// orchestrator returns it.
type RunResult struct {
	ID         string           `json:"id"`
	OK         bool             `json:"ok"`
	Workflow   Kind             `json:"workflow"`
	Input      string           `json:"input"`
	Steps      []StepRecord     `json:"steps"`
	Structured StructuredResult `json:"structured,omitempty"`
	Narrative  *Narrative       `json:"narrative,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Error      string           `json:"error,omitempty"`
	ErrorCode  string           `json:"errorCode,omitempty"`
	Details    string           `json:"details,omitempty"`
}

// UnmarshalJSON decodes the structured field according to the workflow.
func (r *RunResult) UnmarshalJSON(data []byte) error {
	type alias RunResult
	var wire struct {
		alias
		Structured json.RawMessage `json:"structured"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = RunResult(wire.alias)
	if len(wire.Structured) == 0 || string(wire.Structured) == "null" {
		r.Structured = nil
		return nil
	}
	if !r.Workflow.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, r.Workflow)
	}
	structured, err := DecodeStructured(r.Workflow, wire.Structured)
	if err != nil {
		return err
	}
	r.Structured = structured
	return nil
}
