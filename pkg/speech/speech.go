// Package speech adapts host speech capabilities (synthesis and recognition)
// into explicit per-call sessions and drives the speaking/listening flags.
package speech

import (
	"errors"
)

// DefaultLanguage is the language tag used for utterances and capture sessions.
const DefaultLanguage = "en-US"

var (
	// ErrRecognitionUnavailable is returned when the host has no recognition capability.
	ErrRecognitionUnavailable = errors.New("speech recognition not supported")
	// ErrAlreadyListening is returned when a capture session is already pending or active.
	ErrAlreadyListening = errors.New("speech recognition already listening")
	// ErrCanceled is reported to an utterance that was canceled or superseded.
	ErrCanceled = errors.New("utterance canceled")
	// ErrStopped is reported to a capture session aborted by the host.
	ErrStopped = errors.New("capture session stopped")
)

// Synthesizer is the host speech-synthesis capability.
// Speak enqueues an utterance and reports its lifecycle through the
// utterance's Started/Ended/Failed methods. Speak must not block on playback.
type Synthesizer interface {
	Available() bool
	Speak(u *Utterance)
	Cancel()
	Pause()
	Resume()
}

// Recognizer is the host speech-recognition capability.
// Start begins capture for the session and reports its lifecycle through the
// session's Started/Result/Ended/Failed methods. Start must not block on capture.
type Recognizer interface {
	Available() bool
	Start(s *CaptureSession) error
	Stop()
}

// Unavailable is a host without speech capabilities.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }
func (Unavailable) Speak(*Utterance) {}
func (Unavailable) Cancel() {}
func (Unavailable) Pause() {}
func (Unavailable) Resume() {}
func (Unavailable) Start(*CaptureSession) error { return ErrRecognitionUnavailable }
func (Unavailable) Stop() {}
