package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(buf, &Config{Level: level, Format: "json"}, "graphflow")
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", line, err)
	}
	return m
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, "info")
	log.Info("graph created", map[string]interface{}{FieldGraphID: "g1", "nodes": 2})

	m := decodeLine(t, &buf)
	if m["message"] != "graph created" {
		t.Fatalf("unexpected message %v", m["message"])
	}
	if m[FieldGraphID] != "g1" || m["service"] != "graphflow" {
		t.Fatalf("unexpected fields %v", m)
	}
	if m["nodes"] != float64(2) {
		t.Fatalf("expected nodes=2, got %v", m["nodes"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, "warn")
	log.Info("hidden")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warn to be written, got %q", buf.String())
	}
}

func TestNewWithWriter_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, "verbose")
	log.Debug("hidden")
	log.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestWithComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := newJSONLogger(&buf, "info").WithComponent("engine").WithFields(map[string]interface{}{FieldRunID: "r1"})
	log.Info("run started")

	m := decodeLine(t, &buf)
	if m[FieldComponent] != "engine" || m[FieldRunID] != "r1" {
		t.Fatalf("unexpected fields %v", m)
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf, "info").WithError(errors.New("boom")).Error("failed")
	if m := decodeLine(t, &buf); m["error"] != "boom" {
		t.Fatalf("expected error field, got %v", m)
	}
}

func TestWithContext_IDs(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithRunID(ctx, "run-1")
	ctx = ContextWithTraceID(ctx, "trace-1")

	var buf bytes.Buffer
	newJSONLogger(&buf, "info").WithContext(ctx).Info("hello")
	m := decodeLine(t, &buf)
	if m[FieldRequestID] != "req-1" || m[FieldRunID] != "run-1" || m[FieldTraceID] != "trace-1" {
		t.Fatalf("unexpected fields %v", m)
	}
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, &Config{Level: "info", Format: FormatConsole, NoColor: true}, "graphflow")
	log.Info("console line", map[string]interface{}{"k": "v"})
	out := buf.String()
	if !strings.Contains(out, "[INF]") || !strings.Contains(out, "console line") || !strings.Contains(out, "k:") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestNop(t *testing.T) {
	Nop().Info("discarded", map[string]interface{}{"k": 1})
}

func TestGlobalLogger(t *testing.T) {
	prev := globalLogger
	defer SetGlobalLogger(prev)

	var buf bytes.Buffer
	SetGlobalLogger(newJSONLogger(&buf, "debug"))
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	WithComponent("x").Info("c")
	WithContext(ContextWithRunID(context.Background(), "r")).Info("ctx")
	if got := strings.Count(buf.String(), "\n"); got != 6 {
		t.Fatalf("expected 6 lines, got %d: %q", got, buf.String())
	}

	SetGlobalLogger(nil)
	if GetGlobalLogger() == nil {
		t.Fatal("expected a default global logger")
	}
}

func TestInit(t *testing.T) {
	prev := globalLogger
	defer SetGlobalLogger(prev)

	Init(Config{Level: "debug", Format: "json", Output: "stderr"}, "svc")
	if GetGlobalLogger().service != "svc" {
		t.Fatalf("expected service svc, got %q", GetGlobalLogger().service)
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stdout" || !cfg.Timestamp {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid json", Config{Level: "debug", Format: "json", Output: "stderr"}, false},
		{"bad level", Config{Level: "loud", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "skipped", "dangling")
	if len(m) != 2 || m["a"] != 1 || m["b"] != "two" {
		t.Fatalf("unexpected fields %v", m)
	}
	if e := ErrorFields("run", errors.New("x")); e[FieldOperation] != "run" || e[FieldError] != "x" {
		t.Fatalf("unexpected error fields %v", e)
	}
	if d := DurationFields("run", 2*time.Second); d[FieldDuration] != int64(2000) {
		t.Fatalf("unexpected duration fields %v", d)
	}
}
