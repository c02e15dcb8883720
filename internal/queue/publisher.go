package queue

import (
	"context"
	"time"

	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/workflow"
)

const publishTimeout = 5 * time.Second

// RunPublisher emits a run.finished event for every finished run.
type RunPublisher struct {
	Client Client
}

// RunFinished implements workflow.RunObserver. Send failures are logged.
func (p *RunPublisher) RunFinished(ctx context.Context, res workflow.RunResult) {
	if p == nil || p.Client == nil {
		return
	}
	msg := Message{
		Type:       EventRunFinished,
		RunID:      res.ID,
		SessionID:  workflow.SessionIDFromContext(ctx),
		Workflow:   string(res.Workflow),
		OK:         res.OK,
		ErrorCode:  res.ErrorCode,
		RequestID:  workflow.RequestIDFromContext(ctx),
		FinishedAt: formatTime(res.Timestamp),
		Version:    messageVersion,
	}
	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.Client.Send(sendCtx, msg); err != nil {
		telemetry.Error("queue.publish_failed", map[string]any{
			"request_id": msg.RequestID,
			"run_id":     msg.RunID,
			"workflow":   msg.Workflow,
			"error":      err.Error(),
		})
	}
}

var _ workflow.RunObserver = (*RunPublisher)(nil)
