package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// executionIDKey is the context key for the current execution ID.
var executionIDKey = contextKey{}

// WithExecutionID returns a new context carrying the given execution ID
// for log correlation across the harness and orchestrator.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// ExecutionID extracts the execution ID from the context.
// Returns an empty string if none is set.
func ExecutionID(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey).(string)
	return id
}

// ctxHandler copies the execution ID from the logging context onto each
// record. It must sit outside any AsyncHandler: the async drain runs with
// a background context, so the attribute has to be attached before the
// record is queued.
type ctxHandler struct {
	inner slog.Handler
}

func (h ctxHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h ctxHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if id := ExecutionID(ctx); id != "" {
		rec.AddAttrs(slog.String("execution_id", id))
	}
	return h.inner.Handle(ctx, rec)
}

func (h ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ctxHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{inner: h.inner.WithGroup(name)}
}
