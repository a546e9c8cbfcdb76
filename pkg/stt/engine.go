// Package stt turns microphone audio into transcripts for speech input.
//
// Audio is 16 kHz mono signed 16-bit little-endian PCM throughout.
package stt

import (
	"context"
	"errors"
	"time"
)

const (
	// SampleRate is the PCM sample rate expected from microphones.
	SampleRate = 16000
	// bytesPerSample for 16-bit mono audio.
	bytesPerSample = 2
	// maxCapture bounds a single capture session by audio length.
	maxCapture = 30 * time.Second
)

var (
	// ErrNoMicrophone is returned when no audio source is connected.
	ErrNoMicrophone = errors.New("stt: no microphone connected")
	// ErrMicrophoneBusy is returned when a second client tries to connect.
	ErrMicrophoneBusy = errors.New("stt: microphone already connected")
	// ErrBusy is returned when a capture session is already running.
	ErrBusy = errors.New("stt: recognizer busy")
)

// Transcriber converts a complete PCM recording into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, pcm []byte, lang string) (string, error)
}

// Microphone supplies PCM frames to a recognizer.
type Microphone interface {
	Available() bool
	// Open returns the frame stream. The channel is closed when the source goes away.
	Open() (<-chan []byte, error)
}

// audioDuration returns the playback length of n bytes of PCM.
func audioDuration(n int) time.Duration {
	return time.Duration(n/bytesPerSample) * time.Second / SampleRate
}
