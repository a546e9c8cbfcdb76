package speech

import (
	"fmt"
	"log/slog"
	"sync"
)

// Input wraps a Recognizer. At most one capture session is pending or active.
type Input struct {
	host Recognizer
	lang string

	mu      sync.Mutex
	current *CaptureSession
	onState func(listening bool)
}

// NewInput creates a speech input adapter. A nil host is treated as unavailable.
func NewInput(host Recognizer, lang string) *Input {
	if host == nil {
		host = Unavailable{}
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Input{host: host, lang: lang}
}

// SetStateHandler registers the callback that receives listening transitions.
func (in *Input) SetStateHandler(fn func(listening bool)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onState = fn
}

// Available reports whether the host can recognize speech.
func (in *Input) Available() bool {
	return in.host.Available()
}

// StartListening opens a single-shot capture session with interim results.
// onResult receives the transcript of the latest result on every result event.
func (in *Input) StartListening(onResult func(transcript string)) (*CaptureSession, error) {
	if !in.host.Available() {
		slog.Warn("Speech recognition not supported")
		return nil, ErrRecognitionUnavailable
	}

	in.mu.Lock()
	if in.current != nil {
		in.mu.Unlock()
		return nil, ErrAlreadyListening
	}
	s := NewCaptureSession(RecognitionConfig{
		Continuous:     false,
		InterimResults: true,
		Lang:           in.lang,
	})
	in.current = s
	in.mu.Unlock()

	s.OnStart(func() { in.transition(s, true) })
	s.OnResult(func(ev ResultEvent) {
		r, ok := ev.Latest()
		if !ok || onResult == nil {
			return
		}
		onResult(r.Transcript)
	})
	s.OnEnd(func() { in.transition(s, false) })
	s.OnError(func(err error) {
		slog.Error("Speech recognition error", "session", s.ID, "error", err)
		in.transition(s, false)
	})

	if err := in.host.Start(s); err != nil {
		s.Failed(err)
		in.release(s)
		return nil, fmt.Errorf("start recognition: %w", err)
	}
	return s, nil
}

// StopListening stops the host recognizer and forces the listening flag off.
func (in *Input) StopListening() {
	if !in.host.Available() {
		return
	}

	in.mu.Lock()
	s := in.current
	in.current = nil
	fn := in.onState
	in.mu.Unlock()

	in.host.Stop()
	if s != nil {
		s.Ended()
	}
	if fn != nil {
		fn(false)
	}
}

// Current returns the pending or active capture session, or nil.
func (in *Input) Current() *CaptureSession {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current
}

func (in *Input) release(s *CaptureSession) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.current == s {
		in.current = nil
	}
}

func (in *Input) transition(s *CaptureSession, listening bool) {
	in.mu.Lock()
	if in.current != s {
		in.mu.Unlock()
		return
	}
	if !listening {
		in.current = nil
	}
	fn := in.onState
	in.mu.Unlock()

	if fn != nil {
		fn(listening)
	}
}
