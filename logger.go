package corestore

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/corestore/model"
)

// Logger wraps slog.Logger with corestore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithDiscoveryKey adds a discovery_key field to the logger.
func (l *Logger) WithDiscoveryKey(dk model.DiscoveryKey) *Logger {
	return &Logger{
		Logger: l.Logger.With("discovery_key", dk.String()),
	}
}

// WithPointer adds the core and data pointers to the logger.
func (l *Logger) WithPointer(ptr model.CorePointer) *Logger {
	return &Logger{
		Logger: l.Logger.With("core_ptr", ptr.Core, "data_ptr", ptr.Data),
	}
}

// LogCreate logs a core creation attempt.
func (l *Logger) LogCreate(ctx context.Context, dk model.DiscoveryKey, ptr model.CorePointer, created bool, err error) {
	l = l.WithDiscoveryKey(dk)
	switch {
	case err != nil:
		l.ErrorContext(ctx, "create failed", "error", err)
	case created:
		l.WithPointer(ptr).InfoContext(ctx, "core created")
	default:
		l.WithPointer(ptr).DebugContext(ctx, "core already exists")
	}
}

// LogFlush logs an explicit batch flush.
func (l *Logger) LogFlush(ctx context.Context, kind string, ops int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"batch", kind,
			"ops", ops,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "flush completed",
			"batch", kind,
			"ops", ops,
		)
	}
}

// LogBestEffortFailure logs an error swallowed by a TryFlush.
// The batch contents may be lost.
func (l *Logger) LogBestEffortFailure(ctx context.Context, kind string, ops int, err error) {
	l.WarnContext(ctx, "best-effort flush failed, batch dropped",
		"batch", kind,
		"ops", ops,
		"error", err,
	)
}

// LogClear logs a full storage reset.
func (l *Logger) LogClear(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clear failed",
			"error", err,
		)
	} else {
		l.WarnContext(ctx, "storage cleared")
	}
}

// LogBackup logs a finished export or restore.
func (l *Logger) LogBackup(ctx context.Context, kind, name string, entries, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup "+kind+" failed",
			"backup", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "backup "+kind+" completed",
		"backup", name,
		"entries", entries,
		"bytes", bytes,
	)
}
