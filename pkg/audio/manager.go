// Package audio plays synthesized speech clips through the default output device.
package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// outputRate is the speaker rate; clips are resampled to it.
const outputRate = beep.SampleRate(48000)

// Service is the playback surface the speech synthesizer drives.
type Service interface {
	// Play stops any current clip and starts path at the given linear volume (0..1).
	// onComplete runs when the clip plays to the end, never after Stop.
	Play(path string, volume float64, onComplete func()) error
	Pause()
	Resume()
	Stop()
	// Shutdown stops playback and deletes the last clip.
	Shutdown()
	IsPaused() bool
}

type decoder func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decoder{
	".mp3": mp3.Decode,
	".wav": func(r io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) { return wav.Decode(r) },
}

// Manager implements Service using gopxl/beep. One clip plays at a time.
type Manager struct {
	mu          sync.Mutex
	ctrl        *beep.Ctrl
	streamer    beep.StreamSeekCloser
	paused      bool
	generation  uint64
	lastFile    string
	removeClips bool
	speakerUp   bool
}

// New creates a Manager. When removeClips is set, each clip file is deleted
// once the next one is loaded or on Shutdown.
func New(removeClips bool) *Manager {
	return &Manager{removeClips: removeClips}
}

// Play starts playback of an .mp3 or .wav clip.
func (m *Manager) Play(path string, volume float64, onComplete func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	streamer, format, err := decodeClip(path)
	if err != nil {
		return err
	}
	if err := m.initSpeaker(); err != nil {
		streamer.Close()
		return err
	}

	volume = clampVolume(volume)
	m.generation++
	gen := m.generation
	m.streamer = streamer
	m.paused = false
	m.ctrl = &beep.Ctrl{Streamer: &effects.Volume{
		Streamer: beep.Resample(3, format.SampleRate, outputRate, streamer),
		Base:     2,
		Volume:   volumeToPower(volume),
		Silent:   volume <= silentThreshold,
	}}

	speaker.Play(beep.Seq(m.ctrl, beep.Callback(func() {
		// Don't block the speaker goroutine
		go m.finished(gen, onComplete)
	})))

	if m.removeClips && m.lastFile != "" && m.lastFile != path {
		removeClip(m.lastFile)
	}
	m.lastFile = path

	slog.Debug("Audio: playing clip", "path", path, "volume", volume, "rate", format.SampleRate)
	return nil
}

func (m *Manager) finished(gen uint64, onComplete func()) {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	m.releaseLocked()
	m.mu.Unlock()

	if onComplete != nil {
		onComplete()
	}
}

// Pause pauses current playback.
func (m *Manager) Pause() { m.setPaused(true) }

// Resume resumes paused playback.
func (m *Manager) Resume() { m.setPaused(false) }

func (m *Manager) setPaused(p bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctrl == nil || m.paused == p {
		return
	}
	speaker.Lock()
	m.ctrl.Paused = p
	speaker.Unlock()
	m.paused = p
}

// Stop stops current playback. The completion callback is not called.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.generation++
	if m.ctrl != nil {
		speaker.Clear()
	}
	m.releaseLocked()
}

func (m *Manager) releaseLocked() {
	if m.streamer != nil {
		m.streamer.Close()
	}
	m.ctrl = nil
	m.streamer = nil
	m.paused = false
}

func (m *Manager) initSpeaker() error {
	if m.speakerUp {
		return nil
	}
	if err := speaker.Init(outputRate, outputRate.N(time.Second/10)); err != nil {
		slog.Error("Audio: failed to initialize speaker", "error", err)
		return fmt.Errorf("init speaker: %w", err)
	}
	m.speakerUp = true
	return nil
}

// Shutdown stops playback and deletes any residual clip.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	if m.removeClips && m.lastFile != "" {
		removeClip(m.lastFile)
	}
	m.lastFile = ""
}

// IsPaused reports whether a clip is loaded and paused.
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *Manager) loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctrl != nil
}

func removeClip(path string) {
	if err := os.Remove(path); err == nil {
		slog.Debug("Audio: removed played clip", "path", path)
	} else if !os.IsNotExist(err) {
		slog.Warn("Audio: failed to remove played clip", "path", path, "error", err)
	}
}

// decodeClip picks the decoder from the file extension.
func decodeClip(path string) (beep.StreamSeekCloser, beep.Format, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, beep.Format{}, fmt.Errorf("unsupported clip format: %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open clip: %w", err)
	}
	streamer, format, err := dec(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return streamer, format, nil
}
