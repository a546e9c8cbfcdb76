package tts

import (
	"context"
	"errors"
	"fmt"
)

// MinAudioSize is the smallest clip accepted from a provider. Anything
// shorter is an error page or an empty stream, not speech.
const MinAudioSize = 1024

// Request describes one synthesis call.
type Request struct {
	Text     string
	Voice    string  // Provider voice ID; empty selects the provider default
	Language string  // BCP-47 tag, e.g. "en-IN"
	Rate     float64 // 1.0 is normal speed
	Volume   float64 // 0.0 to 1.0
}

// Provider is a text-to-speech engine.
type Provider interface {
	// Synthesize writes audio for req to outputPath plus the provider's
	// extension and returns that extension ("mp3", "wav").
	Synthesize(ctx context.Context, req Request, outputPath string) (string, error)

	// Voices lists the voices the engine offers.
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice is one voice offered by a Provider.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	IsNeural bool   `json:"neural"`
}

// FatalError is a provider rejection that retrying the same request will
// not fix: bad credentials, exhausted quota, refused handshake.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// NewFatalError creates a FatalError.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatalError reports whether err wraps a FatalError.
func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// StatusCode returns the HTTP status carried by a wrapped FatalError, or 0.
func StatusCode(err error) int {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
