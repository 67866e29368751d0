package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/planboard/internal/config"
)

func TestLoggerWritesUnderProjectDir(t *testing.T) {
	projectDir := t.TempDir()
	logger, err := New(projectDir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Printf("bridge: listening on %s\n", "127.0.0.1:8765")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(projectDir, config.Dir, "logs", FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "] bridge: listening on 127.0.0.1:8765\n") {
		t.Fatalf("unexpected log line %q", text)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	var logger *Logger
	logger.Printf("ignored")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
