package stt

import (
	"log/slog"
	"sync"

	"schemeaccess/pkg/logging"
)

// relayBuffer holds roughly eight seconds of 30 ms frames.
const relayBuffer = 256

// Relay is a Microphone fed by a remote client, one client at a time.
type Relay struct {
	mu   sync.Mutex
	feed *Feed
}

// NewRelay creates a relay with no client connected.
func NewRelay() *Relay {
	return &Relay{}
}

// Feed is the writing end of a connected client.
type Feed struct {
	relay  *Relay
	mu     sync.Mutex
	frames chan []byte
	closed bool
	drops  int
}

// Connect attaches a client. Only one client may be connected.
func (r *Relay) Connect() (*Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feed != nil {
		return nil, ErrMicrophoneBusy
	}
	r.feed = &Feed{relay: r, frames: make(chan []byte, relayBuffer)}
	slog.Debug("STT: microphone client connected")
	return r.feed, nil
}

// Available reports whether a client is connected.
func (r *Relay) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feed != nil
}

// Open returns the connected client's frames.
func (r *Relay) Open() (<-chan []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.feed == nil {
		return nil, ErrNoMicrophone
	}
	return r.feed.frames, nil
}

// Push queues a frame. Frames are dropped when the reader falls behind.
func (f *Feed) Push(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.frames <- frame:
		logging.Trace(slog.Default(), "STT: frame", "bytes", len(frame))
		return true
	default:
		f.drops++
		logging.Trace(slog.Default(), "STT: frame dropped", "drops", f.drops)
		return false
	}
}

// Close detaches the client and closes its frame stream.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.frames)
	drops := f.drops
	f.mu.Unlock()

	f.relay.mu.Lock()
	if f.relay.feed == f {
		f.relay.feed = nil
	}
	f.relay.mu.Unlock()
	slog.Debug("STT: microphone client disconnected", "dropped_frames", drops)
}
