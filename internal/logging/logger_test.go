package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(component string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(component).SetOutput(&buf)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return l, &buf
}

func TestTextFormat(t *testing.T) {
	l, buf := newBufferLogger("cv")

	l.ErrorWithContext("capture failed", errors.New("no display"), map[string]interface{}{
		"template": "ok",
		"attempt":  2,
	})

	want := "[2024-05-01 09:30:00.000] ERROR [cv] capture failed | error=no display | attempt=2 template=ok\n"
	if got := buf.String(); got != want {
		t.Errorf("Unexpected output\n got: %q\nwant: %q", got, want)
	}
}

func TestMinLevel(t *testing.T) {
	l, buf := newBufferLogger("cv")

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected debug to be filtered at INFO, got %q", buf.String())
	}
	if l.Enabled(LogLevelDebug) || !l.Enabled(LogLevelWarn) {
		t.Error("Unexpected Enabled result at INFO")
	}

	l.SetMinLevel(LogLevelDebug)
	l.Debug("shown")
	if !strings.Contains(buf.String(), "DEBUG [cv] shown") {
		t.Errorf("Expected debug line, got %q", buf.String())
	}

	buf.Reset()
	l.SetMinLevel(LogLevelError)
	l.Warn("quiet")
	l.Error("loud", nil)
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("Expected only the error line, got %q", buf.String())
	}
}

func TestNamedSharesOutputs(t *testing.T) {
	l, buf := newBufferLogger("root")
	l.SetMinLevel(LogLevelWarn)

	child := l.Named("remote")
	child.Info("skipped")
	child.Warn("slow server")

	if strings.Contains(buf.String(), "skipped") {
		t.Error("Expected child to inherit the WARN level")
	}
	if !strings.Contains(buf.String(), "WARN [remote] slow server") {
		t.Errorf("Expected child line under its own component, got %q", buf.String())
	}
}

func TestAddOutput(t *testing.T) {
	l, first := newBufferLogger("db")
	var second bytes.Buffer
	l.AddOutput(&second)

	l.Info("migrated")
	if first.String() != second.String() || first.Len() == 0 {
		t.Errorf("Expected identical lines in both outputs, got %q and %q", first.String(), second.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{" Info ", LogLevelInfo, false},
		{"WARNING", LogLevelWarn, false},
		{"warn", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
