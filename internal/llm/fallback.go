package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"hawkkeyed-backend/internal/shared/telemetry"
)

// FallbackClient sends requests to a primary model and switches to a
// secondary one when the primary reports overload. A circuit breaker on the
// primary stops sending traffic to it for a cool-down period after repeated
// overloads.
type FallbackClient struct {
	primary  Client
	fallback Client
	breaker  *gobreaker.CircuitBreaker
}

// BreakerSettings tunes the primary's circuit breaker.
type BreakerSettings struct {
	Name string
	// ConsecutiveOverloads trips the breaker.
	ConsecutiveOverloads uint32
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// NewFallbackClient wraps primary with a fallback. A nil fallback returns primary unchanged.
func NewFallbackClient(primary, fallback Client, settings BreakerSettings) Client {
	if fallback == nil {
		return primary
	}
	if settings.Name == "" {
		settings.Name = "llm-primary"
	}
	if settings.ConsecutiveOverloads == 0 {
		settings.ConsecutiveOverloads = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	trips := settings.ConsecutiveOverloads
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Warn("llm.breaker", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return &FallbackClient{primary: primary, fallback: fallback, breaker: cb}
}

// SupportsAttachment holds only when both models read the file type, since
// either may answer.
func (f *FallbackClient) SupportsAttachment(mimeType string) bool {
	return SupportsAttachment(f.primary, mimeType) && SupportsAttachment(f.fallback, mimeType)
}

// Generate implements Client.
func (f *FallbackClient) Generate(ctx context.Context, req Request) (Response, error) {
	// Only overloads count against the breaker; other primary errors are
	// returned to the caller untouched.
	var passthrough error
	out, err := f.breaker.Execute(func() (interface{}, error) {
		resp, err := f.primary.Generate(ctx, req)
		if err != nil {
			if IsOverloaded(err) {
				return nil, err
			}
			passthrough = err
			return Response{}, nil
		}
		return resp, nil
	})
	if err == nil {
		if passthrough != nil {
			return Response{}, passthrough
		}
		return out.(Response), nil
	}
	if !IsOverloaded(err) && !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Response{}, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Response{}, ctxErr
	}
	telemetry.Warn("llm.fallback", map[string]any{
		"breaker": f.breaker.Name(),
		"state":   f.breaker.State().String(),
		"reason":  err.Error(),
	})
	return f.fallback.Generate(ctx, req)
}
