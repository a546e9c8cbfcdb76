package accessibility

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"schemeaccess/pkg/logging"
	"schemeaccess/pkg/speech"
	"schemeaccess/pkg/store"
)

// Store owns the accessibility settings. Mutations persist the preference
// subset and re-apply visual effects before returning. Speaking and
// listening are driven only by the speech adapters.
type Store struct {
	state store.StateStore
	doc   Document
	out   *speech.Output
	in    *speech.Input
	key   string

	mu       sync.RWMutex
	settings Settings
	seq      uint64

	// writeMu orders record writes; written is the last seq stored.
	writeMu sync.Mutex
	written uint64

	subMu   sync.Mutex
	subs    map[int]chan Settings
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithStorageKey overrides the record key used for persistence.
func WithStorageKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// New loads the persisted preferences (defaults when absent or unreadable),
// applies the visual settings to doc and wires the speech adapters. Nil
// adapters behave as unavailable capabilities.
func New(ctx context.Context, st store.StateStore, doc Document, out *speech.Output, in *speech.Input, opts ...Option) *Store {
	if out == nil {
		out = speech.NewOutput(nil, "")
	}
	if in == nil {
		in = speech.NewInput(nil, "")
	}
	s := &Store{
		state: st,
		doc:   doc,
		out:   out,
		in:    in,
		key:   DefaultStorageKey,
		subs:  make(map[int]chan Settings),
	}
	for _, opt := range opts {
		opt(s)
	}

	p := s.load(ctx)
	s.settings = Settings{
		HighContrast: p.HighContrast,
		FontScale:    p.FontScale,
		SpeechRate:   p.SpeechRate,
		SpeechVolume: p.SpeechVolume,
	}
	s.apply(s.settings)

	out.SetStateHandler(s.setSpeaking)
	in.SetStateHandler(s.setListening)

	return s
}

func (s *Store) load(ctx context.Context) Persisted {
	def := DefaultSettings().persisted()
	if s.state == nil {
		return def
	}
	raw, ok := s.state.GetState(ctx, s.key)
	if !ok || raw == "" {
		return def
	}

	// Absent fields keep their defaults.
	p := def
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		slog.Warn("Discarding unreadable accessibility settings", "key", s.key, "error", err)
		return def
	}
	return p.sanitized()
}

func encode(p Persisted) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// persist writes an encoded record unless a newer one is already stored.
func (s *Store) persist(ctx context.Context, seq uint64, record string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if seq <= s.written {
		return
	}
	s.written = seq
	if err := s.state.SetState(ctx, s.key, record); err != nil {
		slog.Error("Failed to persist accessibility settings", "key", s.key, "error", err)
	}
}

func (s *Store) apply(st Settings) {
	if s.doc == nil {
		return
	}
	s.doc.SetHighContrast(st.HighContrast)
	s.doc.SetFontSize(st.FontScale)
}

// update applies fn, re-applies and notifies under the lock so applied and
// published values stay in order. The record is written after unlocking.
func (s *Store) update(ctx context.Context, fn func(*Settings)) Settings {
	s.mu.Lock()
	fn(&s.settings)
	snap := s.settings
	s.seq++
	seq := s.seq
	record, err := encode(snap.persisted())
	s.apply(snap)
	s.broadcast(snap)
	s.mu.Unlock()

	switch {
	case err != nil:
		slog.Error("Failed to encode accessibility settings", "error", err)
	case s.state != nil:
		s.persist(ctx, seq, record)
	}
	return snap
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Active reports whether any accessibility feature is engaged.
func (s *Store) Active() bool {
	return s.Snapshot().Active()
}

// ToggleHighContrast flips high-contrast mode.
func (s *Store) ToggleHighContrast(ctx context.Context) Settings {
	return s.update(ctx, func(st *Settings) {
		st.HighContrast = !st.HighContrast
	})
}

// IncreaseFontSize grows the font scale by one step, up to MaxFontScale.
func (s *Store) IncreaseFontSize(ctx context.Context) Settings {
	return s.update(ctx, func(st *Settings) {
		st.FontScale = min(st.FontScale+FontScaleStep, MaxFontScale)
	})
}

// DecreaseFontSize shrinks the font scale by one step, down to MinFontScale.
func (s *Store) DecreaseFontSize(ctx context.Context) Settings {
	return s.update(ctx, func(st *Settings) {
		st.FontScale = max(st.FontScale-FontScaleStep, MinFontScale)
	})
}

// ResetFontSize restores the default font scale.
func (s *Store) ResetFontSize(ctx context.Context) Settings {
	return s.update(ctx, func(st *Settings) {
		st.FontScale = DefaultFontScale
	})
}

// SetSpeechRate stores rate as given. Callers bound it to
// [MinSpeechRate, MaxSpeechRate].
func (s *Store) SetSpeechRate(ctx context.Context, rate float64) Settings {
	return s.update(ctx, func(st *Settings) {
		st.SpeechRate = rate
	})
}

// SetSpeechVolume stores volume as given. Callers bound it to
// [MinSpeechVolume, MaxSpeechVolume].
func (s *Store) SetSpeechVolume(ctx context.Context, volume float64) Settings {
	return s.update(ctx, func(st *Settings) {
		st.SpeechVolume = volume
	})
}

// Speak reads text aloud with the current rate and volume, replacing any
// utterance in progress. It returns nil when nothing was queued.
func (s *Store) Speak(text string) *speech.Utterance {
	st := s.Snapshot()
	u := s.out.Speak(text, st.SpeechRate, st.SpeechVolume)
	if u != nil {
		logging.LogEvent(logging.EventSpoken, text)
	}
	return u
}

// StopSpeaking cancels all speech.
func (s *Store) StopSpeaking() { s.out.Stop() }

// PauseSpeaking pauses the current utterance.
func (s *Store) PauseSpeaking() { s.out.Pause() }

// ResumeSpeaking resumes a paused utterance.
func (s *Store) ResumeSpeaking() { s.out.Resume() }

// StartListening opens a capture session. onResult receives the latest
// transcript each time the recognizer reports results.
func (s *Store) StartListening(onResult func(transcript string)) (*speech.CaptureSession, error) {
	sess, err := s.in.StartListening(onResult)
	if err != nil {
		return nil, err
	}
	sess.OnResult(func(ev speech.ResultEvent) {
		if r, ok := ev.Latest(); ok && r.IsFinal {
			logging.LogEvent(logging.EventHeard, r.Transcript)
		}
	})
	return sess, nil
}

// StopListening ends the capture session.
func (s *Store) StopListening() { s.in.StopListening() }

// SpeechAvailable reports the host's synthesis and recognition capabilities.
func (s *Store) SpeechAvailable() (output, input bool) {
	return s.out.Available(), s.in.Available()
}

func (s *Store) setSpeaking(v bool) {
	s.setFlag(func(st *Settings) *bool { return &st.Speaking }, v)
}

func (s *Store) setListening(v bool) {
	s.setFlag(func(st *Settings) *bool { return &st.Listening }, v)
}

func (s *Store) setFlag(field func(*Settings) *bool, v bool) {
	s.mu.Lock()
	f := field(&s.settings)
	if *f == v {
		s.mu.Unlock()
		return
	}
	*f = v
	s.broadcast(s.settings)
	s.mu.Unlock()
}

// Subscribe returns a channel receiving the latest settings after every
// change, and a function to cancel the subscription. Slow readers only see
// the most recent value.
func (s *Store) Subscribe() (<-chan Settings, func()) {
	ch := make(chan Settings, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) broadcast(st Settings) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
