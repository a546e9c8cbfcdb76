package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event kinds written to the speech event log.
const (
	EventSpoken = "spoken"
	EventHeard  = "heard"
)

const maxEventText = 200

var (
	eventMu   sync.Mutex
	eventFile *os.File
)

// SetEventLogPath opens path for appending speech events, closing any
// previous file. An empty path disables the file; events are still captured.
func SetEventLogPath(path string) error {
	eventMu.Lock()
	defer eventMu.Unlock()

	if eventFile != nil {
		eventFile.Close()
		eventFile = nil
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create event log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	eventFile = f
	return nil
}

// LogEvent records spoken or recognized text as
// "[2006-01-02 15:04:05] [kind] text" with whitespace collapsed.
func LogEvent(kind, text string) {
	line := fmt.Sprintf("[%s] [%s] %s", time.Now().Format("2006-01-02 15:04:05"), kind, collapse(text))
	_, _ = EventCapture.Write([]byte(line))

	eventMu.Lock()
	defer eventMu.Unlock()
	if eventFile == nil {
		return
	}
	if _, err := eventFile.WriteString(line + "\n"); err != nil {
		slog.Error("Failed to write event log", "error", err)
	}
}

func collapse(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxEventText {
		return string(r[:maxEventText]) + "..."
	}
	return s
}
