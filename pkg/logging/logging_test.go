package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewTextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, Output: &buf})

	logger.Debug("hidden")
	logger.Info("visible", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line emitted at info level")
	}
	if !strings.Contains(out, "visible") || !strings.Contains(out, "key=value") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: slog.LevelInfo, JSON: true, Output: &buf})

	logger.Info("hello", "rows", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "hello" {
		t.Errorf("msg = %v, want hello", record["msg"])
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CARDSCOPE_LOG_LEVEL", "debug")
	t.Setenv("CARDSCOPE_LOG_JSON", "true")

	opts := FromEnv()
	if opts.Level != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", opts.Level)
	}
	if !opts.JSON {
		t.Error("JSON = false, want true")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf})

	Component(logger, "loader").Info("ready")
	if !strings.Contains(buf.String(), "component=loader") {
		t.Errorf("missing component attr: %q", buf.String())
	}
}
