package logger

import (
	"context"
	"log/slog"
	"time"
)

// ContextKey is the type for context keys used in logging
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	OperationKey ContextKey = "operation"

	// Business keys follow OTel attribute naming.
	SyncRunIDKey  ContextKey = "search.sync.run_id"
	SyncSourceKey ContextKey = "search.sync.source"
	PostIDKey     ContextKey = "search.post.id"
	QueryClassKey ContextKey = "search.query.class"
)

var contextKeys = []ContextKey{
	RequestIDKey,
	OperationKey,
	SyncRunIDKey,
	SyncSourceKey,
	PostIDKey,
	QueryClassKey,
}

// GlobalContext is the global ContextLogger instance
var GlobalContext = NewContextLogger(Logger)

// ContextLogger wraps a slog.Logger to add context-aware logging
type ContextLogger struct {
	logger *slog.Logger
}

func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying every known key present on ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	args := make([]any, 0, len(contextKeys)*2)
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			args = append(args, string(key), v)
		}
	}
	return cl.logger.With(args...)
}

// LogDuration logs an operation completion with duration in milliseconds
func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, durationMs int64) {
	cl.WithContext(ctx).Info("operation completed",
		"operation", operation,
		"duration_ms", durationMs,
	)
}

// LogError logs an operation failure with error details
func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).Error("operation failed",
		"operation", operation,
		"error", err,
	)
}

// LogDurationTime is a convenience function that takes time.Duration
func (cl *ContextLogger) LogDurationTime(ctx context.Context, operation string, duration time.Duration) {
	cl.LogDuration(ctx, operation, duration.Milliseconds())
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, OperationKey, op)
}

func WithSyncRun(ctx context.Context, runID, source string) context.Context {
	ctx = context.WithValue(ctx, SyncRunIDKey, runID)
	return context.WithValue(ctx, SyncSourceKey, source)
}

func WithPostID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, PostIDKey, id)
}

func WithQueryClass(ctx context.Context, class string) context.Context {
	return context.WithValue(ctx, QueryClassKey, class)
}

// FromContext is shorthand for GlobalContext.WithContext.
func FromContext(ctx context.Context) *slog.Logger {
	return NewContextLogger(Logger).WithContext(ctx)
}
