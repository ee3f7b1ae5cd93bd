package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := Init(Config{Level: LevelDebug, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	l.Debug("hello", "item", "crate::A")
	if !strings.Contains(buf.String(), `"item":"crate::A"`) {
		t.Errorf("expected JSON attribute in %q", buf.String())
	}
	if Get() != l {
		t.Error("Get should return the initialized logger")
	}
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Init(Config{Level: LevelError, Output: &buf}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	LogPhase("collect")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered at error level, got %q", buf.String())
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		verbose, quiet bool
		want           Level
	}{
		{false, false, LevelWarn},
		{true, false, LevelDebug},
		{false, true, LevelError},
		{true, true, LevelError},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.verbose, tt.quiet); got != tt.want {
			t.Errorf("LevelFor(%v, %v) = %d, want %d", tt.verbose, tt.quiet, got, tt.want)
		}
	}
}
