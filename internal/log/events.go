package log

import (
	"context"
	"log/slog"
	"net/http"
)

// EventLogger writes the recurring log lines of the application with a fixed
// set of fields, so they can be searched the same way everywhere.
type EventLogger struct {
	logger *Logger
}

func NewEventLogger(logger *Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

func (e *EventLogger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	e.logger.DebugContext(ctx, "HTTP request started", NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithClientIP(clientIP).
		ToSlice()...)
}

// RequestCompleted logs at info, warn for 4xx and error for 5xx.
func (e *EventLogger) RequestCompleted(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	e.logger.Log(ctx, level, "HTTP request completed", NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(status, durationMs, status < 400).
		WithClientIP(clientIP).
		ToSlice()...)
}

func (e *EventLogger) TransactionAdded(ctx context.Context, id int64, txType string, amountCents int64, category string, revision uint64) {
	fields := NewFields().
		WithTransaction(id, txType, amountCents, category).
		WithOperation(OpCreate)
	fields[FieldRevision] = revision
	e.logger.InfoContext(ctx, "Transaction added", fields.ToSlice()...)
}

func (e *EventLogger) TransactionRemoved(ctx context.Context, id int64, revision uint64) {
	e.logger.InfoContext(ctx, "Transaction removed",
		FieldTxID, id,
		FieldRevision, revision,
		FieldOperation, OpDelete)
}

// Failure logs err with its operation and error type.
func (e *EventLogger) Failure(ctx context.Context, msg string, err error, operation, errType string) {
	e.logger.ErrorContext(ctx, msg, NewFields().
		WithError(err).
		WithErrorType(errType).
		WithOperation(operation).
		ToSlice()...)
}
