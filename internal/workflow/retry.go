package workflow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"hawkkeyed-backend/internal/llm"
	"hawkkeyed-backend/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base       llm.Client
	maxRetries uint
	baseDelay  time.Duration
	stage      Stage
}

// NewRetryingClient retries transient provider failures with jittered
// exponential backoff. Malformed output is not a transport failure and is
// never retried here.
func NewRetryingClient(base llm.Client, stage Stage, maxRetries int) llm.Client {
	if base == nil || maxRetries <= 0 {
		return base
	}
	return retryingClient{
		base:       base,
		maxRetries: uint(maxRetries),
		baseDelay:  llmRetryBaseDelay,
		stage:      stage,
	}
}

func (r retryingClient) SupportsAttachment(mimeType string) bool {
	return llm.SupportsAttachment(r.base, mimeType)
}

func (r retryingClient) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.baseDelay
	policy.RandomizationFactor = 0.5
	policy.Multiplier = 2
	policy.MaxInterval = 5 * time.Second

	attempt := 0
	op := func() (llm.Response, error) {
		attempt++
		resp, err := r.base.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !llm.IsTransient(err) || ctx.Err() != nil {
			return llm.Response{}, backoff.Permanent(err)
		}
		return llm.Response{}, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.maxRetries+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			telemetry.Warn("llm.retry", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"stage":      string(r.stage),
				"attempt":    attempt,
				"delay_ms":   delay.Milliseconds(),
				"error":      sanitizeError(err),
			})
		}),
	)
}
