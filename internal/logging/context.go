package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem emitting the line.
	FieldComponent = "component"
	// FieldPath is the subtitle file being processed.
	FieldPath = "path"
	// FieldEncoding is the detected source charset.
	FieldEncoding = "encoding"
	// FieldStage is the repair stage that failed (read, detect, decode).
	FieldStage = "stage"
	// FieldRunID identifies a batch run in the history journal.
	FieldRunID = "run_id"
	// FieldRequestID correlates HTTP requests.
	FieldRequestID = "request_id"
	FieldError     = "error"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
)

type contextKey int

const (
	runIDKey contextKey = iota
	requestIDKey
)

// WithRunID stores a batch run identifier on ctx.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithRequestID stores an HTTP request identifier on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextFields extracts standardized attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldRequestID, id))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
