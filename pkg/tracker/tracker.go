package tracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker counts calls made to each speech engine.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*EngineStats
}

// EngineStats holds counters for one engine.
// Fields are accessed atomically.
type EngineStats struct {
	Success   int64 `json:"success"`
	Failures  int64 `json:"failures"`
	Empty     int64 `json:"empty"`
	LatencyMs int64 `json:"latencyMs"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*EngineStats),
	}
}

func (t *Tracker) getStats(engine string) *EngineStats {
	t.mu.RLock()
	s, ok := t.stats[engine]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[engine]; ok {
		return s
	}
	s = &EngineStats{}
	t.stats[engine] = s
	return s
}

// TrackSuccess records a completed call and its duration.
func (t *Tracker) TrackSuccess(engine string, d time.Duration) {
	if t == nil {
		return
	}
	s := t.getStats(engine)
	atomic.AddInt64(&s.Success, 1)
	atomic.AddInt64(&s.LatencyMs, d.Milliseconds())
}

// TrackFailure records a failed call.
func (t *Tracker) TrackFailure(engine string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(engine).Failures, 1)
}

// TrackEmpty records a call that succeeded without producing anything,
// such as a transcription of silence.
func (t *Tracker) TrackEmpty(engine string) {
	if t == nil {
		return
	}
	atomic.AddInt64(&t.getStats(engine).Empty, 1)
}

// Snapshot returns a copy of the current stats. LatencyMs is the average
// over successful calls.
func (t *Tracker) Snapshot() map[string]EngineStats {
	result := make(map[string]EngineStats)
	if t == nil {
		return result
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	for k, v := range t.stats {
		s := EngineStats{
			Success:  atomic.LoadInt64(&v.Success),
			Failures: atomic.LoadInt64(&v.Failures),
			Empty:    atomic.LoadInt64(&v.Empty),
		}
		if s.Success > 0 {
			s.LatencyMs = atomic.LoadInt64(&v.LatencyMs) / s.Success
		}
		result[k] = s
	}
	return result
}
