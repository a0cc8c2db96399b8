package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelForVerbosity(t *testing.T) {
	tests := []struct {
		verbose, quiet int
		want           Level
	}{
		{0, 0, NotifyLevel},
		{1, 0, InfoLevel},
		{2, 0, DebugLevel},
		{5, 0, DebugLevel},
		{0, 1, WarnLevel},
		{0, 9, FatalLevel},
		{1, 1, NotifyLevel},
	}
	for _, tt := range tests {
		if got := LevelForVerbosity(tt.verbose, tt.quiet); got != tt.want {
			t.Errorf("LevelForVerbosity(%d, %d) = %s, want %s", tt.verbose, tt.quiet, got, tt.want)
		}
	}
}

func TestConsoleFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, NotifyLevel)

	l.Debug("debug line")
	l.Info("info line")
	l.Notify("notify line")
	l.Warn("warn %s", "line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("messages below notify leaked:\n%s", out)
	}
	if !strings.Contains(out, "notify line") {
		t.Errorf("missing notify line:\n%s", out)
	}
	if !strings.Contains(out, "warn line") {
		t.Errorf("missing formatted warn line:\n%s", out)
	}
}

func TestConsoleIndent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DebugLevel)

	l.Indent()
	l.Info("nested")
	l.Dedent()
	l.Dedent()
	l.Info("flat")

	out := buf.String()
	if !strings.Contains(out, "  nested") {
		t.Errorf("expected indented message:\n%s", out)
	}
	if strings.Contains(out, "  flat") {
		t.Errorf("dedent below zero should clamp:\n%s", out)
	}
}

func TestConsoleProgressDots(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, NotifyLevel)

	l.StartProgress("Installing pip...")
	l.ShowProgress()
	l.ShowProgress()
	l.EndProgress("...done")

	out := buf.String()
	if !strings.Contains(out, "..") {
		t.Errorf("expected progress dots:\n%s", out)
	}
	if !strings.Contains(out, "...done") {
		t.Errorf("expected end message:\n%s", out)
	}
}

func TestNopSatisfiesLogger(t *testing.T) {
	var l Logger = Nop()
	l.Debug("x")
	l.Fatal("x")
	l.Log(WarnLevel, "x")
	l.Indent()
	l.Dedent()
	l.StartProgress("x")
	l.ShowProgress()
	l.EndProgress("x")
}
