package logging

import (
	"log/slog"
	"sync/atomic"
)

var traceEnabled atomic.Bool

// SetTrace turns per-frame audio tracing on or off. Off by default.
func SetTrace(on bool) { traceEnabled.Store(on) }

// Trace logs at DEBUG level when tracing is enabled.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if traceEnabled.Load() {
		logger.Debug(msg, args...)
	}
}
