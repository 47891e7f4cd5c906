package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, lvl, false, false))

	NewComponentLogger(logger, "dispatch").Info("transition applied",
		String(FieldIdentity, "alice"),
		Int64(FieldItemID, 42),
		String("note", "two words"),
	)
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "INFO dispatch: transition applied") {
		t.Fatalf("missing level/component prefix: %q", out)
	}
	if !strings.Contains(out, "identity=alice") || !strings.Contains(out, "item_id=42") {
		t.Fatalf("missing fields: %q", out)
	}
	if !strings.Contains(out, `note="two words"`) {
		t.Fatalf("expected quoted value: %q", out)
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be lifted into the prefix: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record should be filtered: %q", out)
	}
}

func TestConsoleHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false, true))
	logger.Error("boom")
	if !strings.Contains(buf.String(), ansiRed+"ERROR"+ansiReset) {
		t.Fatalf("expected coloured level, got %q", buf.String())
	}
}

func TestNewWritesJSONFileCopy(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "app.log")
	outPath := filepath.Join(dir, "console.log")

	logger, err := New(Options{Level: "debug", Format: "console", OutputPaths: []string{outPath}, FilePath: logPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", Error(errors.New("bad")))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode json line: %v (%s)", err, data)
	}
	if entry["msg"] != "hello" || entry["level"] != "info" || entry["error"] != "bad" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", entry)
	}

	console, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read console output: %v", err)
	}
	if !strings.Contains(string(console), "INFO hello") {
		t.Fatalf("unexpected console output %q", console)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithItemID(context.Background(), 9)
	ctx = WithIdentity(ctx, "bob")
	ctx = WithRequestID(ctx, "req-1")

	WithContext(ctx, base).Info("ctx")

	out := buf.String()
	for _, want := range []string{`"item_id":9`, `"identity":"bob"`, `"correlation_id":"req-1"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "delivery failed", "realtime_send_failed", String(FieldErrorHint, "reconnect"))

	out := buf.String()
	if !strings.Contains(out, `"event_type":"realtime_send_failed"`) {
		t.Fatalf("missing event type: %s", out)
	}
	if !strings.Contains(out, `"error_hint":"reconnect"`) || strings.Contains(out, "check logs for details") {
		t.Fatalf("caller hint should win: %s", out)
	}
	if !strings.Contains(out, `"impact"`) {
		t.Fatalf("missing impact: %s", out)
	}
}
