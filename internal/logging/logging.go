// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// RunIDKey is the context key for pipeline run IDs.
	RunIDKey ContextKey = "run_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if runID := GetRunID(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// InfoContext logs an info message, attaching the context's run ID
// when one is present.
func InfoContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Info(msg, args...)
}

// FormatImport logs a score import with common fields.
func FormatImport(format, path string, parts, notes int, duration time.Duration, args ...any) {
	allArgs := []any{
		"format", format,
		"path", path,
		"parts", parts,
		"notes", notes,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("format_import", allArgs...)
}

// FormatExport logs a score export with common fields.
func FormatExport(format, path string, bytes int, duration time.Duration, args ...any) {
	allArgs := []any{
		"format", format,
		"path", path,
		"bytes", bytes,
		"duration_ms", duration.Milliseconds(),
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("format_export", allArgs...)
}

// SpannerViolations logs the outcome of spanner resolution.
func SpannerViolations(partID string, completed, violations int, args ...any) {
	allArgs := []any{
		"part_id", partID,
		"completed", completed,
		"violations", violations,
	}
	allArgs = append(allArgs, args...)
	if violations > 0 {
		defaultLogger.Warn("spanner_resolution", allArgs...)
		return
	}
	defaultLogger.Debug("spanner_resolution", allArgs...)
}

// ValidationSummary logs a validation pass over a score.
func ValidationSummary(violations int, args ...any) {
	allArgs := []any{
		"violations", violations,
	}
	allArgs = append(allArgs, args...)
	if violations > 0 {
		defaultLogger.Warn("validation_summary", allArgs...)
		return
	}
	defaultLogger.Info("validation_summary", allArgs...)
}

// RoundTrip logs the outcome of a round-trip verification.
func RoundTrip(format string, differences int, pass bool, args ...any) {
	allArgs := []any{
		"format", format,
		"differences", differences,
		"pass", pass,
	}
	allArgs = append(allArgs, args...)
	if pass {
		defaultLogger.Info("round_trip", allArgs...)
		return
	}
	defaultLogger.Warn("round_trip", allArgs...)
}
