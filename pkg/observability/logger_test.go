package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := decodeEntry(t, &buf)
		if entry["level"] != "info" {
			t.Errorf("Expected level info, got %v", entry["level"])
		}
		if entry["msg"] != "info message" {
			t.Errorf("Expected message 'info message', got %v", entry["msg"])
		}
	})

	t.Run("warn logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Warn("warn message")
		if buf.Len() == 0 {
			t.Error("Warn message should be logged at Info level")
		}
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if buf.Len() == 0 {
			t.Error("Error message should be logged at Info level")
		}
	})
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("date", "2026-10-18").WithFields(map[string]interface{}{
		"rows": 42,
	}).Info("aggregated")

	entry := decodeEntry(t, &buf)
	if entry["date"] != "2026-10-18" {
		t.Errorf("Expected field 'date', got %v", entry["date"])
	}
	if entry["rows"] != float64(42) {
		t.Errorf("Expected field 'rows' to be 42, got %v", entry["rows"])
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("disk full")).Error("something went wrong")

	entry := decodeEntry(t, &buf)
	if entry["error"] != "disk full" {
		t.Errorf("Expected error field, got %v", entry["error"])
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestLogger_Formatters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Debugf("processed %d events", 3)
	entry := decodeEntry(t, &buf)
	if entry["msg"] != "processed 3 events" {
		t.Errorf("unexpected message %v", entry["msg"])
	}

	buf.Reset()
	logger.Errorf("failed for %s", "2026-10-18")
	entry = decodeEntry(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("unexpected level %v", entry["level"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for input, want := range tests {
		if got := ParseLogLevel(input); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLogger_Context(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithSessionID(ctx, "sess-1")

	if GetRequestID(ctx) != "req-1" {
		t.Errorf("unexpected request id %q", GetRequestID(ctx))
	}
	if GetSessionID(ctx) != "sess-1" {
		t.Errorf("unexpected session id %q", GetSessionID(ctx))
	}

	FromContext(ctx).Info("tracked")
	entry := decodeEntry(t, &buf)
	if entry["request_id"] != "req-1" || entry["session_id"] != "sess-1" {
		t.Errorf("context fields missing: %v", entry)
	}

	if GetLogger(context.Background()) == nil {
		t.Error("GetLogger should return a default logger")
	}
}
