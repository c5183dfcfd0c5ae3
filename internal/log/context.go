package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by NewContext, or the slog default
// reporting as "unknown".
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return Default("unknown")
}

// Recorder writes the fixed-shape lines shared by the access log and the ledger
// audit trail.
type Recorder struct {
	logger *Logger
}

func NewRecorder(logger *Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) RequestStarted(ctx context.Context, req *http.Request, clientIP string) {
	fields := NewFields().
		WithRequest(req.Method, req.URL.Path, req.URL.RawQuery).
		WithClientIP(clientIP)
	r.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// RequestFinished logs 4xx at warn and 5xx at error.
func (r *Recorder) RequestFinished(ctx context.Context, req *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithRequest(req.Method, req.URL.Path, req.URL.RawQuery).
		WithResponse(status, durationMs).
		WithClientIP(clientIP)
	r.logger.LogLevel(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// RecordCommitted is the audit line of one ledger mutation.
func (r *Recorder) RecordCommitted(ctx context.Context, op, businessID, kind, id, amount, method string) {
	fields := NewFields().
		WithRecord(kind, id, amount, method).
		WithBusiness(businessID).
		WithOperation(op)
	r.logger.InfoContext(ctx, "Ledger record committed", fields.ToSlice()...)
}
