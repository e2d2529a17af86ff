package redline

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("messages below the level must be suppressed:\n%s", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Errorf("messages at or above the level must be written:\n%s", output)
	}
	if !strings.Contains(output, "[WARN]") {
		t.Errorf("log lines must carry the level tag:\n%s", output)
	}
}

func TestLoggerFieldOrdering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogInfo).WithJob("abc123")

	logger.WithEdit(2, OpDelete).Info("applied")

	line := buf.String()
	jobIdx := strings.Index(line, "job=abc123")
	editIdx := strings.Index(line, "edit=2")
	opIdx := strings.Index(line, "op=DELETE")
	if jobIdx < 0 || editIdx < 0 || opIdx < 0 {
		t.Fatalf("missing fields in log line:\n%s", line)
	}
	// The job tag comes first, then the per-edit context in the order it
	// was attached.
	if !(jobIdx < editIdx && editIdx < opIdx) {
		t.Errorf("fields out of order:\n%s", line)
	}
}

func TestLoggerWithFieldsSortsKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogInfo)

	logger.WithFields(Fields{"skipped": 1, "applied": 3}).Info("job done")

	line := buf.String()
	appliedIdx := strings.Index(line, "applied=3")
	skippedIdx := strings.Index(line, "skipped=1")
	if appliedIdx < 0 || skippedIdx < 0 {
		t.Fatalf("missing fields in log line:\n%s", line)
	}
	if appliedIdx > skippedIdx {
		t.Errorf("WithFields must append in sorted key order:\n%s", line)
	}
}

func TestLoggerDerivationIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&buf, LogInfo).WithJob("abc123")

	base.WithEdit(0, OpInsert).Info("first")
	buf.Reset()
	base.Info("second")

	if strings.Contains(buf.String(), "edit=") {
		t.Errorf("derived fields must not leak back into the parent:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "job=abc123") {
		t.Errorf("parent fields must survive derivation:\n%s", buf.String())
	}
}

func TestLoggerNilWriter(t *testing.T) {
	logger := NewLogger(nil, LogDebug)
	// Must not panic.
	logger.Info("into the void")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogDebug},
		{"info", LogInfo},
		{"WARN", LogWarn},
		{"error", LogError},
		{"off", LogOff},
		{"bogus", LogInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
