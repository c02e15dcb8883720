package workflow

import "context"

type requestIDKey struct{}
type sessionIDKey struct{}

// WithRequestID attaches a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// WithSessionID attaches the caller's session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil || sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestIDFromContext returns the request ID attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	return requestIDFromContext(ctx)
}

// SessionIDFromContext returns the session ID attached by WithSessionID.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return id
	}
	return ""
}

// detachedContext keeps the request and session IDs but drops
// cancellation, for best-effort writes that must outlive the request.
func detachedContext(ctx context.Context) context.Context {
	out := context.Background()
	out = WithRequestID(out, requestIDFromContext(ctx))
	out = WithSessionID(out, SessionIDFromContext(ctx))
	return out
}
