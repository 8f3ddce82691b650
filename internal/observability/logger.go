package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyConnID    ctxKey = "conn_id"
)

// basic global logger, JSON to stdout.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// Init replaces the global logger with one writing JSON to w at level.
func Init(w io.Writer, level string) {
	logger.Store(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Logger() *slog.Logger {
	return logger.Load()
}

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return Logger().With(kv...)
}

// NewID returns a fresh random identifier for requests and connections.
func NewID() string {
	return uuid.NewString()
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext returns the request_id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// WithConnID stores a WebSocket connection id in the context.
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ctxKeyConnID, connID)
}

// LoggerFromContext adds request_id and conn_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := Logger()
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With("request_id", reqID)
	}
	if connID, _ := ctx.Value(ctxKeyConnID).(string); connID != "" {
		l = l.With("conn_id", connID)
	}
	return l
}
