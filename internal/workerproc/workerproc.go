// Package workerproc consumes run.finished events and archives a PDF
// report for every completed run.
package workerproc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"hawkkeyed-backend/internal/queue"
	"hawkkeyed-backend/internal/report"
	"hawkkeyed-backend/internal/runs"
	"hawkkeyed-backend/internal/shared/metrics"
	"hawkkeyed-backend/internal/shared/storage/object"
	"hawkkeyed-backend/internal/shared/telemetry"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingRunID indicates a run event without a run id.
type ErrMissingRunID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingRunID) Error() string { return "missing run id" }

// ErrProcess indicates archiving failed after successful parsing.
type ErrProcess struct {
	RunID     string
	RequestID string
	Err       error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "archive report"
	}
	return "archive report: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// Outcome is what happened to one event.
type Outcome string

const (
	OutcomeArchived Outcome = "archived"
	OutcomeSkipped  Outcome = "skipped"
)

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}
	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if msg.Type == queue.EventRunFinished && strings.TrimSpace(msg.RunID) == "" {
		return msg, meta, ErrMissingRunID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Unrecoverable reports whether retrying the message can never succeed, so
// the consumer should drop it.
func Unrecoverable(err error) bool {
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingRunID
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &decode), errors.As(err, &missing):
		return true
	case errors.Is(err, runs.ErrNotFound), errors.Is(err, report.ErrNotReportable):
		return true
	}
	return false
}

// Archiver renders and stores the report of each completed run.
type Archiver struct {
	Runs  runs.Repo
	Store object.Store
}

// HandleMessage parses body and archives the run's report. Events for
// failed runs and unknown event types are skipped.
func (a *Archiver) HandleMessage(ctx context.Context, body string) (Outcome, error) {
	msg, meta, err := ParseMessage(body)
	if err != nil {
		fields := map[string]any{"body_len": meta.BodyLen, "error": err.Error()}
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		telemetry.Error("worker.run_event.invalid", fields)
		metrics.IncRunEvent("dropped")
		return "", err
	}
	outcome, err := a.Process(ctx, msg)
	if err != nil {
		if Unrecoverable(err) {
			metrics.IncRunEvent("dropped")
		} else {
			metrics.IncRunEvent("failed")
		}
		return "", err
	}
	metrics.IncRunEvent(string(outcome))
	return outcome, nil
}

// Process archives the report for one decoded event.
func (a *Archiver) Process(ctx context.Context, msg queue.Message) (Outcome, error) {
	if a == nil || a.Runs == nil || a.Store == nil {
		return "", errors.New("report archiver not configured")
	}
	fields := map[string]any{
		"run_id":     msg.RunID,
		"request_id": msg.RequestID,
		"workflow":   msg.Workflow,
	}
	if msg.Type != queue.EventRunFinished || !msg.OK {
		fields["type"] = msg.Type
		fields["ok"] = msg.OK
		telemetry.Info("worker.run_event.skipped", fields)
		return OutcomeSkipped, nil
	}

	run, err := a.Runs.Get(ctx, msg.RunID)
	if err != nil {
		return "", ErrProcess{RunID: msg.RunID, RequestID: msg.RequestID, Err: err}
	}
	res := run.Result()
	if err := report.Reportable(res); err != nil {
		return "", ErrProcess{RunID: msg.RunID, RequestID: msg.RequestID, Err: err}
	}

	doc := report.Render(res)
	data, err := report.PDFBytes(doc)
	if err != nil {
		return "", ErrProcess{RunID: msg.RunID, RequestID: msg.RequestID, Err: err}
	}
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = run.SessionID
	}
	key, err := object.ReportKey(sessionID, doc.Filename())
	if err != nil {
		return "", ErrProcess{RunID: msg.RunID, RequestID: msg.RequestID, Err: err}
	}
	size, err := a.Store.Put(ctx, key, "application/pdf", bytes.NewReader(data))
	if err != nil {
		return "", ErrProcess{RunID: msg.RunID, RequestID: msg.RequestID, Err: fmt.Errorf("put %s: %w", key, err)}
	}
	metrics.IncReportRendered(string(res.Workflow), "pdf")

	fields["key"] = key
	fields["size_bytes"] = size
	fields["pages"] = len(doc.Pages)
	telemetry.Info("worker.run_event.archived", fields)
	return OutcomeArchived, nil
}
