package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func newTestDispatcherLogger(buf *bytes.Buffer) *DispatcherLogger {
	return NewDispatcherLogger(zerolog.New(buf).Level(zerolog.DebugLevel))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestDispatcherLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	dl := newTestDispatcherLogger(&buf)

	dl.Debug("command registered", "command", ":REPLAY:LOAD:", "buffered", 42)

	entry := parseEntry(t, &buf)
	if entry["level"] != "debug" {
		t.Errorf("expected level 'debug', got %v", entry["level"])
	}
	if entry["message"] != "command registered" {
		t.Errorf("expected message 'command registered', got %v", entry["message"])
	}
	if entry["command"] != ":REPLAY:LOAD:" {
		t.Errorf("expected command ':REPLAY:LOAD:', got %v", entry["command"])
	}
	if entry["buffered"] != float64(42) { // JSON numbers are float64
		t.Errorf("expected buffered=42, got %v", entry["buffered"])
	}
}

func TestDispatcherLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	dl := newTestDispatcherLogger(&buf)

	dl.Info("command handled", "status", "ok")

	entry := parseEntry(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("expected level 'info', got %v", entry["level"])
	}
	if entry["message"] != "command handled" {
		t.Errorf("expected message 'command handled', got %v", entry["message"])
	}
	if entry["status"] != "ok" {
		t.Errorf("expected status='ok', got %v", entry["status"])
	}
}

func TestDispatcherLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	dl := newTestDispatcherLogger(&buf)

	dl.Error("handler failed", "code", 500, "reason", "no episode loaded")

	entry := parseEntry(t, &buf)
	if entry["level"] != "error" {
		t.Errorf("expected level 'error', got %v", entry["level"])
	}
	if entry["code"] != float64(500) {
		t.Errorf("expected code=500, got %v", entry["code"])
	}
	if entry["reason"] != "no episode loaded" {
		t.Errorf("expected reason='no episode loaded', got %v", entry["reason"])
	}
}

func TestDispatcherLogger_NoKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := newTestDispatcherLogger(&buf)

	dl.Debug("simple message")

	entry := parseEntry(t, &buf)
	if entry["message"] != "simple message" {
		t.Errorf("expected message 'simple message', got %v", entry["message"])
	}
}

func TestDispatcherLogger_DropsMalformedPairs(t *testing.T) {
	var buf bytes.Buffer
	dl := newTestDispatcherLogger(&buf)

	// Non-string key and a dangling value must not end up in the output.
	dl.Info("odd pairs", 7, "ignored", "kept", "yes", "dangling")

	entry := parseEntry(t, &buf)
	if entry["kept"] != "yes" {
		t.Errorf("expected kept='yes', got %v", entry["kept"])
	}
	if _, ok := entry["dangling"]; ok {
		t.Error("dangling value should have been dropped")
	}
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var buf bytes.Buffer
	dl := newTestDispatcherLogger(&buf)

	// Compile-time check against the dispatcher's Logger contract.
	var _ interface {
		Debug(msg string, keysAndValues ...any)
		Info(msg string, keysAndValues ...any)
		Error(msg string, keysAndValues ...any)
	} = dl
}
