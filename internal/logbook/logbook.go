// Package logbook keeps the board journal: an append-only leveled text file
// recording selections, KPI changes, trigger hits and agent failures.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// FileName is the journal file inside the project log directory.
const FileName = "board.log"

// Entry is a parsed journal line.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Logbook persists board activity to a simple text file. A nil *Logbook
// drops everything.
type Logbook struct {
	path  string
	clock func() time.Time
	mu    sync.Mutex
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path, clock: time.Now}, nil
}

// Open creates the journal under logDir.
func Open(logDir string) (*Logbook, error) {
	return New(filepath.Join(logDir, FileName))
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now
	if l.clock != nil {
		now = l.clock
	}
	line := fmt.Sprintf("%s %-5s %s\n",
		now().UTC().Format(time.RFC3339),
		string(level),
		strings.Join(strings.Fields(message), " "),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries and the total line
// count.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// ParseLine splits a journal line back into its parts.
func ParseLine(line string) (Entry, bool) {
	stamp, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return Entry{}, false
	}
	rest = strings.TrimLeft(rest, " ")
	level, msg, _ := strings.Cut(rest, " ")
	switch Level(level) {
	case LevelInfo, LevelWarn, LevelError:
	default:
		return Entry{}, false
	}
	return Entry{Time: ts, Level: Level(level), Message: strings.TrimSpace(msg)}, true
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
