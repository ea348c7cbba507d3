package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"ERROR":   ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
	}

	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, false)
	logger.SetOutput(&buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN should be suppressed, got: %s", out)
	}
	if !strings.Contains(out, "warn message") {
		t.Errorf("expected warn message in output, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	logger.Info("scheduler restarted", map[string]interface{}{"service": "beat"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Message != "scheduler restarted" {
		t.Errorf("unexpected message: %s", entry.Message)
	}
	if entry.Fields["service"] != "beat" {
		t.Errorf("expected service field, got %v", entry.Fields)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	child := logger.WithField("component", "watcher")
	child.Info("started")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Fields["component"] != "watcher" {
		t.Errorf("expected component field from WithField, got %v", entry.Fields)
	}

	// Parent must not inherit the child's field
	buf.Reset()
	entry = LogEntry{}
	logger.Info("parent")
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := entry.Fields["component"]; ok {
		t.Error("parent logger mutated by WithField")
	}
}
