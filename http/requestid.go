package http

import (
	"context"

	"github.com/google/uuid"
)

// HeaderXRequestID is the header carrying the logical request ID on every attempt
const HeaderXRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "ratefetch_request_id"

// WithRequestID stores the ID sent with every attempt of requests made with ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID from ctx if present
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// ensureRequestID pins a single ID for the whole logical request so that
// retries are sent with the same headers as the first attempt.
func ensureRequestID(ctx context.Context) (context.Context, string) {
	if id, ok := RequestIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}
