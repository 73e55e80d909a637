package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger

	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger

	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{
			name:   "Debug level JSON format",
			level:  LevelDebug,
			format: FormatJSON,
		},
		{
			name:   "Info level JSON format",
			level:  LevelInfo,
			format: FormatJSON,
		},
		{
			name:   "Warn level JSON format",
			level:  LevelWarn,
			format: FormatJSON,
		},
		{
			name:   "Error level JSON format",
			level:  LevelError,
			format: FormatJSON,
		},
		{
			name:   "Info level Text format",
			level:  LevelInfo,
			format: FormatText,
		},
		{
			name:   "Default level (invalid value)",
			level:  Level(999),
			format: FormatJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if defaultLogger == nil {
				t.Error("Expected logger to be initialized, got nil")
			}
		})
	}
}

func TestWithRunID(t *testing.T) {
	ctx := context.Background()
	runID := "test-run-id-123"

	newCtx := WithRunID(ctx, runID)

	retrievedID := GetRunID(newCtx)
	if retrievedID != runID {
		t.Errorf("Expected run ID %s, got %s", runID, retrievedID)
	}
}

func TestGetRunID(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "Context with run ID",
			ctx:      context.WithValue(context.Background(), RunIDKey, "test-id"),
			expected: "test-id",
		},
		{
			name:     "Context without run ID",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "Context with wrong type value",
			ctx:      context.WithValue(context.Background(), RunIDKey, 12345),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetRunID(tt.ctx)
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestInfoContext(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)

	ctx := WithRunID(context.Background(), "test-run-id")
	output := captureLogOutput(func() {
		InfoContext(ctx, "pipeline started", "source", "melody.musicxml")
	})
	if output == "" {
		t.Fatal("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test-run-id") {
		t.Error("Expected output to contain run ID")
	}

	output = captureLogOutput(func() {
		InfoContext(context.Background(), "pipeline started")
	})
	if strings.Contains(output, "run_id") {
		t.Error("Expected no run_id attribute without one in context")
	}
}

func TestFormatImport(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		FormatImport("MusicXML", "score.musicxml", 2, 480, 100*time.Millisecond)
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "MusicXML") {
		t.Error("Expected output to contain format")
	}
	if !strings.Contains(output, "score.musicxml") {
		t.Error("Expected output to contain path")
	}
	if !strings.Contains(output, "format_import") {
		t.Error("Expected output to contain format_import")
	}
}

func TestFormatExport(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		FormatExport("SMF", "out.mid", 2048, 50*time.Millisecond, "tracks", 3)
	})

	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "format_export") {
		t.Error("Expected output to contain format_export")
	}
	if !strings.Contains(output, "tracks") {
		t.Error("Expected output to contain custom args")
	}
}

func TestSpannerViolations(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)

	output := captureLogOutput(func() {
		SpannerViolations("P1", 4, 2)
	})
	if !strings.Contains(output, "WARN") {
		t.Error("Expected violations to log at warn level")
	}
	if !strings.Contains(output, "spanner_resolution") {
		t.Error("Expected output to contain spanner_resolution")
	}

	output = captureLogOutput(func() {
		SpannerViolations("P1", 4, 0)
	})
	if !strings.Contains(output, "DEBUG") {
		t.Error("Expected clean resolution to log at debug level")
	}
}

func TestValidationSummary(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		ValidationSummary(3, "score", "etude.musicxml")
	})
	if !strings.Contains(output, "validation_summary") {
		t.Error("Expected output to contain validation_summary")
	}
	if !strings.Contains(output, "WARN") {
		t.Error("Expected violations to log at warn level")
	}

	output = captureLogOutput(func() {
		ValidationSummary(0)
	})
	if !strings.Contains(output, "INFO") {
		t.Error("Expected clean validation to log at info level")
	}
}

func TestRoundTrip(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)

	output := captureLogOutput(func() {
		RoundTrip("MusicXML", 0, true)
	})
	if !strings.Contains(output, "round_trip") {
		t.Error("Expected output to contain round_trip")
	}
	if !strings.Contains(output, "INFO") {
		t.Error("Expected passing round trip to log at info level")
	}

	output = captureLogOutput(func() {
		RoundTrip("SMF", 5, false)
	})
	if !strings.Contains(output, "WARN") {
		t.Error("Expected failing round trip to log at warn level")
	}
}

func TestInit(t *testing.T) {
	if defaultLogger == nil {
		t.Error("Expected defaultLogger to be initialized by init()")
	}
}

func TestContextKeyType(t *testing.T) {
	var key ContextKey = "test"
	if string(key) != "test" {
		t.Errorf("Expected key to be 'test', got '%s'", string(key))
	}

	if RunIDKey != "run_id" {
		t.Errorf("Expected RunIDKey to be 'run_id', got '%s'", RunIDKey)
	}
}

func TestLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("Expected LevelDebug < LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("Expected LevelInfo < LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("Expected LevelWarn < LevelError")
	}
}
