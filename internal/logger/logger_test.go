package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONEnabled(t *testing.T) {
	l := New(false)
	if l.JSONEnabled() {
		t.Fatal("expected false")
	}
	l = New(true)
	if !l.JSONEnabled() {
		t.Fatal("expected true")
	}
}

func TestJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, true)
	l.Info("migrate.success", map[string]any{"version": "20210109192515", "duration_ms": 3})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got["level"] != "INFO" || got["msg"] != "migrate.success" || got["version"] != "20210109192515" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if _, ok := got["ts"]; !ok {
		t.Fatal("missing ts")
	}
}

func TestTextLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, false)
	l.Warn("no pending migrations", nil)
	if !strings.HasPrefix(buf.String(), "[WARN] no pending migrations") {
		t.Fatalf("unexpected line %q", buf.String())
	}
}

func TestDebugNeedsVerbose(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, true)
	l.Debug("plan.ddl", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug leaked: %q", buf.String())
	}
	l.Verbose(true).Debug("plan.ddl", nil)
	if !strings.Contains(buf.String(), `"level":"DEBUG"`) {
		t.Fatalf("debug missing: %q", buf.String())
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var l *Logger
	l.Info("ignored", map[string]any{"k": "v"})
	if l.JSONEnabled() {
		t.Fatal("nil logger cannot be JSON")
	}
}
