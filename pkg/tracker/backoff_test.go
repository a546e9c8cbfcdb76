package tracker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff_ExponentialDelay(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		baseDelay time.Duration
		maxDelay  time.Duration
		wantMinMs int64
		wantMaxMs int64
	}{
		{"First failure", 1, 1 * time.Second, 60 * time.Second, 900, 1200},
		{"Second failure", 2, 1 * time.Second, 60 * time.Second, 1900, 2400},
		{"Third failure", 3, 1 * time.Second, 60 * time.Second, 3900, 4800},
		{"Max cap hit", 10, 1 * time.Second, 60 * time.Second, 59900, 66000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(tt.baseDelay, tt.maxDelay)

			for i := 0; i < tt.failures; i++ {
				b.RecordFailure("tts.azure")
			}

			fc, nextAllowed := b.State("tts.azure")
			if fc != tt.failures {
				t.Errorf("failureCount = %d, want %d", fc, tt.failures)
			}

			delayMs := time.Until(nextAllowed).Milliseconds()
			if delayMs < tt.wantMinMs || delayMs > tt.wantMaxMs {
				t.Errorf("delay = %dms, want between %dms and %dms", delayMs, tt.wantMinMs, tt.wantMaxMs)
			}
		})
	}
}

func TestBackoff_GradualRecovery(t *testing.T) {
	b := NewBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("stt.openai")
	b.RecordFailure("stt.openai")
	b.RecordFailure("stt.openai")

	if fc, _ := b.State("stt.openai"); fc != 3 {
		t.Errorf("after 3 failures, count = %d, want 3", fc)
	}

	b.RecordSuccess("stt.openai")
	if fc, _ := b.State("stt.openai"); fc != 2 {
		t.Errorf("after 1 success, count = %d, want 2", fc)
	}

	b.RecordSuccess("stt.openai")
	b.RecordSuccess("stt.openai")
	fc, next := b.State("stt.openai")
	if fc != 0 || !next.IsZero() {
		t.Errorf("after full recovery, count = %d next = %v", fc, next)
	}
}

func TestBackoff_IsolatedEngines(t *testing.T) {
	b := NewBackoff(1*time.Second, 60*time.Second)

	b.RecordFailure("tts.google")
	b.RecordFailure("tts.google")
	b.RecordFailure("stt.gemini")

	if fc, _ := b.State("tts.google"); fc != 2 {
		t.Errorf("tts.google failures = %d, want 2", fc)
	}
	if fc, _ := b.State("stt.gemini"); fc != 1 {
		t.Errorf("stt.gemini failures = %d, want 1", fc)
	}
	if fc, _ := b.State("tts.edge"); fc != 0 {
		t.Errorf("tts.edge failures = %d, want 0", fc)
	}
}

func TestBackoff_Wait(t *testing.T) {
	b := NewBackoff(30*time.Millisecond, time.Second)

	if err := b.Wait(context.Background(), "tts.edge"); err != nil {
		t.Fatalf("Wait without failures: %v", err)
	}

	b.RecordFailure("tts.edge")
	start := time.Now()
	if err := b.Wait(context.Background(), "tts.edge"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, expected to block", waited)
	}

	b.RecordFailure("tts.edge")
	b.RecordFailure("tts.edge")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx, "tts.edge"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on canceled ctx = %v, want context.Canceled", err)
	}
}

func TestBackoff_Nil(t *testing.T) {
	var b *Backoff
	b.RecordFailure("x")
	b.RecordSuccess("x")
	if err := b.Wait(context.Background(), "x"); err != nil {
		t.Errorf("nil Wait = %v", err)
	}
}
