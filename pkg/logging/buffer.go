package logging

import (
	"strings"
	"sync"
)

// captureSize is how many lines each Capture keeps.
const captureSize = 50

// Capture is an io.Writer that keeps the most recent lines written to it.
type Capture struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// ServerCapture holds recent server log lines for /api/log/latest.
var ServerCapture = NewCapture(captureSize)

// EventCapture holds recent spoken and heard lines.
var EventCapture = NewCapture(captureSize)

// NewCapture creates a Capture keeping up to size lines.
func NewCapture(size int) *Capture {
	if size < 1 {
		size = 1
	}
	return &Capture{lines: make([]string, size)}
}

// Write implements io.Writer. Each call is stored as one line.
func (c *Capture) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[c.next] = line
	c.next = (c.next + 1) % len(c.lines)
	if c.next == 0 {
		c.full = true
	}
	return len(p), nil
}

// Last returns the most recent line, or "" when nothing was written.
func (c *Capture) Last() string {
	r := c.Recent(1)
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// Recent returns up to n lines, oldest first.
func (c *Capture) Recent(n int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := c.next
	if c.full {
		count = len(c.lines)
	}
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		idx := (c.next - n + i + len(c.lines)) % len(c.lines)
		out[i] = c.lines[idx]
	}
	return out
}
