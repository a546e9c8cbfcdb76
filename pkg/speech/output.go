package speech

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Output wraps a Synthesizer. At most one utterance is current; lifecycle
// events from superseded utterances never reach the state handler.
type Output struct {
	host Synthesizer
	lang string

	mu      sync.Mutex
	current *Utterance
	onState func(speaking bool)
}

// NewOutput creates a speech output adapter. A nil host is treated as unavailable.
func NewOutput(host Synthesizer, lang string) *Output {
	if host == nil {
		host = Unavailable{}
	}
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Output{host: host, lang: lang}
}

// SetStateHandler registers the callback that receives speaking transitions.
func (o *Output) SetStateHandler(fn func(speaking bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onState = fn
}

// Available reports whether the host can synthesize speech.
func (o *Output) Available() bool {
	return o.host.Available()
}

// Speak cancels any active utterance and enqueues text. It returns nil when
// the host has no synthesis capability or text is empty or whitespace only.
// A nil return leaves the active utterance playing.
func (o *Output) Speak(text string, rate, volume float64) *Utterance {
	if strings.TrimSpace(text) == "" || !o.host.Available() {
		return nil
	}

	u := NewUtterance(text, rate, volume, o.lang)
	u.OnStart(func() { o.transition(u, true) })
	u.OnEnd(func() { o.transition(u, false) })
	u.OnError(func(err error) {
		if !errors.Is(err, ErrCanceled) {
			slog.Warn("Speech synthesis failed", "utterance", u.ID, "error", err)
		}
		o.transition(u, false)
	})

	o.mu.Lock()
	prev := o.current
	o.current = u
	o.mu.Unlock()

	o.host.Cancel()
	if prev != nil {
		prev.Failed(ErrCanceled)
	}

	slog.Debug("Speaking", "utterance", u.ID, "chars", len(text), "rate", rate, "volume", volume)
	o.host.Speak(u)
	return u
}

// Stop cancels current and queued speech and forces the speaking flag off.
func (o *Output) Stop() {
	if !o.host.Available() {
		return
	}

	o.mu.Lock()
	prev := o.current
	o.current = nil
	fn := o.onState
	o.mu.Unlock()

	o.host.Cancel()
	if prev != nil {
		prev.Failed(ErrCanceled)
	}
	if fn != nil {
		fn(false)
	}
}

// Pause suspends the current utterance. The speaking flag is unchanged.
func (o *Output) Pause() {
	if o.host.Available() {
		o.host.Pause()
	}
}

// Resume continues a paused utterance. The speaking flag is unchanged.
func (o *Output) Resume() {
	if o.host.Available() {
		o.host.Resume()
	}
}

// Current returns the utterance that owns the speaking flag, or nil.
func (o *Output) Current() *Utterance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Output) transition(u *Utterance, speaking bool) {
	o.mu.Lock()
	if o.current != u {
		o.mu.Unlock()
		return
	}
	if !speaking {
		o.current = nil
	}
	fn := o.onState
	o.mu.Unlock()

	if fn != nil {
		fn(speaking)
	}
}
