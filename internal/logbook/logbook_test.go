package logbook

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "board.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("select T%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"select T2", "select T3", "select T4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestAppendFlattensMessageAndParses(t *testing.T) {
	book, err := Open(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("open logbook: %v", err)
	}
	if !strings.HasSuffix(book.Path(), FileName) {
		t.Fatalf("unexpected path %s", book.Path())
	}
	book.clock = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	book.Warn("agent %s failed:\n  %s", "A2", "timeout")

	lines, total := book.Tail(10)
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	want := "2026-03-04T05:06:07Z WARN  agent A2 failed: timeout"
	if lines[0] != want {
		t.Fatalf("line = %q, want %q", lines[0], want)
	}
	entry, ok := ParseLine(lines[0])
	if !ok {
		t.Fatalf("ParseLine rejected %q", lines[0])
	}
	if entry.Level != LevelWarn || entry.Message != "agent A2 failed: timeout" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestParseLineRejectsGarbage(t *testing.T) {
	for _, line := range []string{"", "nope", "2026-03-04T05:06:07Z DEBUG x", "yesterday INFO x"} {
		if _, ok := ParseLine(line); ok {
			t.Fatalf("ParseLine(%q) should fail", line)
		}
	}
}

func TestNilLogbookIsSilent(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("nil logbook returned data")
	}
}
