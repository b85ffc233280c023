package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn")
	defer InitWithWriter(&buf, "info")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("levels below warn should be filtered, got: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn and error should be logged, got: %s", out)
	}
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info")

	Info("login attempt", "principal", "alice", "outcome", "success")

	out := buf.String()
	if !strings.Contains(out, "principal=alice") {
		t.Errorf("expected structured field in output, got: %s", out)
	}
}
