package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kingrea/planboard/internal/config"
)

// FileName is the diagnostic log inside .planboard/logs.
const FileName = "planboard.log"

// Logger appends timestamped lines to .planboard/logs/planboard.log so
// transport failures stay inspectable while the TUI owns the terminal.
type Logger struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// New creates (or reuses) the log file for the current project directory.
func New(projectDir string) (*Logger, error) {
	logDir := filepath.Join(projectDir, config.Dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{out: f}, nil
}

// Stderr logs to standard error, for headless commands.
func Stderr() *Logger {
	return &Logger{out: nopCloser{os.Stderr}}
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.Close()
}

// Printf writes a single timestamped line to the log file.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.out == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := time.Now().Format(time.RFC3339)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "[%s] %s\n", timestamp, line)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
