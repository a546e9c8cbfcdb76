package tracker

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff spaces out calls to an engine that keeps failing, so a rejected
// key or an exhausted quota is not hammered on every utterance.
type Backoff struct {
	mu        sync.RWMutex
	engines   map[string]*backoffState
	baseDelay time.Duration
	maxDelay  time.Duration
}

type backoffState struct {
	failureCount int
	nextAllowed  time.Time
}

// NewBackoff creates a backoff manager.
func NewBackoff(baseDelay, maxDelay time.Duration) *Backoff {
	return &Backoff{
		engines:   make(map[string]*backoffState),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Wait blocks until the engine may be called again or ctx ends.
func (b *Backoff) Wait(ctx context.Context, engine string) error {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	state, exists := b.engines[engine]
	var next time.Time
	if exists {
		next = state.nextAllowed
	}
	b.mu.RUnlock()

	d := time.Until(next)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure increases the delay for an engine.
func (b *Backoff) RecordFailure(engine string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.engines[engine]
	if !exists {
		state = &backoffState{}
		b.engines[engine] = state
	}

	state.failureCount++
	state.nextAllowed = time.Now().Add(b.calculateDelay(state.failureCount))
}

// RecordSuccess steps the delay back down one failure at a time.
func (b *Backoff) RecordSuccess(engine string) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	state, exists := b.engines[engine]
	if !exists {
		return
	}

	if state.failureCount > 0 {
		state.failureCount--
	}
	if state.failureCount == 0 {
		state.nextAllowed = time.Time{}
	}
}

// calculateDelay returns baseDelay * 2^(failures-1), capped, plus up to 10% jitter.
func (b *Backoff) calculateDelay(failures int) time.Duration {
	multiplier := math.Pow(2, float64(failures-1))
	delay := time.Duration(float64(b.baseDelay) * multiplier)

	if delay > b.maxDelay {
		delay = b.maxDelay
	}

	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}

// State returns the failure count and next allowed call time for an engine.
func (b *Backoff) State(engine string) (failureCount int, nextAllowed time.Time) {
	if b == nil {
		return 0, time.Time{}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if state, exists := b.engines[engine]; exists {
		return state.failureCount, state.nextAllowed
	}
	return 0, time.Time{}
}
