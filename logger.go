package vecache

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vecache-specific helpers.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// LogInsert logs an insert operation. Failures are caller errors and are
// logged at debug.
func (l *Logger) LogInsert(ctx context.Context, key uint64, dimension int, replaced bool, err error) {
	if err != nil {
		l.DebugContext(ctx, "insert rejected",
			"key", key,
			"dimension", dimension,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "insert completed",
		"key", key,
		"dimension", dimension,
		"replaced", replaced,
	)
}

// LogDelete logs a delete operation.
func (l *Logger) LogDelete(ctx context.Context, key uint64, err error) {
	if err != nil {
		l.DebugContext(ctx, "delete rejected",
			"key", key,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "delete completed",
		"key", key,
	)
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.DebugContext(ctx, "search rejected",
			"k", k,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "search completed",
		"k", k,
		"results", resultsFound,
	)
}

// LogSave logs a save to target.
func (l *Logger) LogSave(ctx context.Context, target string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"target", target,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "snapshot saved",
		"target", target,
		"vectors", vectors,
	)
}

// LogLoad logs a load from source.
func (l *Logger) LogLoad(ctx context.Context, source string, vectors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "snapshot loaded",
		"source", source,
		"vectors", vectors,
	)
}
