// Package observability provides the structured logger and metrics
// registry threaded through every Treliq component, generalized from the
// per-call request/response/error logger used by the host and provider
// adapters into a single slog-backed logger shared by the whole scan.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the structured logging port every component depends on.
// Implementations must be safe for concurrent use, since the
// orchestrator logs from multiple provider/host goroutines at once.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warn(ctx context.Context, msg string, fields ...any)
	Error(ctx context.Context, msg string, err error, fields ...any)
	With(fields ...any) Logger
}

// SlogLogger wraps log/slog behind the Logger port.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger writing to stdout in the given level and
// format ("json" or "text").
func NewSlogLogger(level, format string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return &SlogLogger{l: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, fields ...any) {
	s.l.DebugContext(ctx, msg, fields...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, fields ...any) {
	s.l.InfoContext(ctx, msg, fields...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, fields ...any) {
	s.l.WarnContext(ctx, msg, fields...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, err error, fields ...any) {
	fields = append(fields, "error", err)
	s.l.ErrorContext(ctx, msg, fields...)
}

func (s *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{l: s.l.With(fields...)}
}

// RedactAPIKey shows only the last 4 characters of a secret value, for
// use in any log field that might otherwise leak a token.
func RedactAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return "[REDACTED-" + key[len(key)-4:] + "]"
}
