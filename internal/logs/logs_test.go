package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"templateflow/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templateflow.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 {
		t.Fatalf("Last(10) = %#v, %v", lines, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestReadFromLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntw")
	lines, offset, err := logs.ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(lines) != 1 || lines[0] != "one" || offset != 4 {
		t.Fatalf("unexpected read: %#v offset %d", lines, offset)
	}

	lines, offset, err = logs.ReadFrom(path, 100)
	if err != nil {
		t.Fatalf("ReadFrom past end: %v", err)
	}
	if len(lines) != 1 || offset != 4 {
		t.Fatalf("truncated file should restart from zero, got %#v offset %d", lines, offset)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected follow lines: %#v", got)
	}
}

func TestParseFilterFormat(t *testing.T) {
	line := `{"ts":"2026-05-01T10:00:00Z","level":"warn","msg":"delivery failed","component":"realtime","item_id":7,"identity":"fred","conn_id":"abc","error":"queue full"}`
	entry, ok := logs.Parse(line)
	if !ok {
		t.Fatal("expected JSON entry")
	}
	if entry.Level != "warn" || entry.Component != "realtime" || entry.ItemID != 7 || entry.Identity != "fred" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	tests := []struct {
		name   string
		filter logs.Filter
		want   bool
	}{
		{"empty", logs.Filter{}, true},
		{"item", logs.Filter{ItemID: 7}, true},
		{"other item", logs.Filter{ItemID: 8}, false},
		{"identity", logs.Filter{Identity: "FRED"}, true},
		{"component", logs.Filter{Component: "dispatch"}, false},
		{"level below", logs.Filter{MinLevel: "info"}, true},
		{"level above", logs.Filter{MinLevel: "error"}, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(entry); got != tt.want {
			t.Fatalf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}

	formatted := entry.Format()
	for _, want := range []string{"WARN realtime: delivery failed", "conn_id=abc", `error="queue full"`, "item_id=7"} {
		if !strings.Contains(formatted, want) {
			t.Fatalf("formatted line %q missing %q", formatted, want)
		}
	}

	plain, ok := logs.Parse("not json")
	if ok || plain.Format() != "not json" {
		t.Fatalf("plain line mishandled: %+v", plain)
	}
}
