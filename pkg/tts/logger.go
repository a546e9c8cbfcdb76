package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	historyMu      sync.Mutex
	historyPath    = "logs/tts.log"
	historyEnabled bool
)

// SetLogPath configures the path for the TTS history file.
func SetLogPath(path string) {
	historyMu.Lock()
	defer historyMu.Unlock()
	historyPath = path
}

// SetLogEnabled turns the TTS history file on or off.
func SetLogEnabled(enabled bool) {
	historyMu.Lock()
	defer historyMu.Unlock()
	historyEnabled = enabled
}

// Log appends one synthesis call to the history file. Every provider calls
// it with the SSML or text it sent, so engines can be compared line by line.
//
//	[2006-01-02 15:04:05] [EDGETTS] 200 | <speak ...>
//	[2006-01-02 15:04:05] [AZURE] ERROR(read: timeout) | <speak ...>
func Log(provider, prompt string, status int, err error) {
	historyMu.Lock()
	defer historyMu.Unlock()

	if !historyEnabled || historyPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
		return
	}
	f, fileErr := os.OpenFile(historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		return
	}
	defer f.Close()

	outcome := fmt.Sprint(status)
	if err != nil {
		outcome = fmt.Sprintf("ERROR(%v)", err)
	}
	_, _ = fmt.Fprintf(f, "[%s] [%s] %s | %s\n",
		time.Now().Format("2006-01-02 15:04:05"), provider, outcome, strings.Join(strings.Fields(prompt), " "))
}
