package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"schemeaccess/pkg/audio"
	"schemeaccess/pkg/speech"
)

// synthTimeout bounds a single provider call.
const synthTimeout = 60 * time.Second

type job struct {
	u      *speech.Utterance
	cancel context.CancelFunc
}

// Synthesizer turns a Provider and an audio player into a speech host.
// Each utterance is synthesized to a clip in cacheDir and then played.
// Only the most recent utterance may reach the player.
type Synthesizer struct {
	provider Provider
	player   audio.Service
	voice    string
	cacheDir string

	mu      sync.Mutex
	current *job
	paused  bool
}

// NewSynthesizer creates a speech host. voice may be empty to use the provider default.
func NewSynthesizer(p Provider, player audio.Service, voice, cacheDir string) *Synthesizer {
	return &Synthesizer{
		provider: p,
		player:   player,
		voice:    voice,
		cacheDir: cacheDir,
	}
}

// Available reports whether both an engine and a player are configured.
func (s *Synthesizer) Available() bool {
	return s != nil && s.provider != nil && s.player != nil
}

// Speak synthesizes and plays u in the background.
func (s *Synthesizer) Speak(u *speech.Utterance) {
	ctx, cancel := context.WithTimeout(context.Background(), synthTimeout)
	j := &job{u: u, cancel: cancel}

	s.mu.Lock()
	s.current = j
	s.paused = false
	s.mu.Unlock()

	go s.run(ctx, j)
}

func (s *Synthesizer) run(ctx context.Context, j *job) {
	defer j.cancel()

	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		s.fail(j, fmt.Errorf("create speech cache: %w", err))
		return
	}

	base := filepath.Join(s.cacheDir, "utterance_"+j.u.ID)
	format, err := s.provider.Synthesize(ctx, Request{
		Text:     j.u.Text,
		Voice:    s.voice,
		Language: j.u.Lang,
		Rate:     j.u.Rate,
		Volume:   j.u.Volume,
	}, base)
	if err != nil {
		removeClips(base)
		if !s.isCurrent(j) {
			j.u.Failed(speech.ErrCanceled)
			return
		}
		s.fail(j, fmt.Errorf("synthesize: %w", err))
		return
	}

	clip := base + "." + format
	if err := VerifyAudioFile(clip); err != nil {
		os.Remove(clip)
		s.fail(j, err)
		return
	}

	if !s.isCurrent(j) {
		os.Remove(clip)
		j.u.Failed(speech.ErrCanceled)
		return
	}
	j.u.Started()

	s.mu.Lock()
	if s.current != j {
		s.mu.Unlock()
		os.Remove(clip)
		j.u.Failed(speech.ErrCanceled)
		return
	}
	err = s.player.Play(clip, j.u.Volume, func() {
		s.release(j)
		j.u.Ended()
	})
	if err == nil && s.paused {
		s.player.Pause()
	}
	s.mu.Unlock()

	if err != nil {
		s.fail(j, fmt.Errorf("play: %w", err))
	}
}

// removeClips deletes partial output left by a failed provider call.
func removeClips(base string) {
	matches, _ := filepath.Glob(base + ".*")
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func (s *Synthesizer) isCurrent(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == j
}

func (s *Synthesizer) release(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == j {
		s.current = nil
	}
}

func (s *Synthesizer) fail(j *job, err error) {
	slog.Warn("TTS: utterance failed", "utterance", j.u.ID, "status", StatusCode(err), "error", err)
	s.release(j)
	j.u.Failed(err)
}

// Cancel drops the current utterance and stops playback.
func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	j := s.current
	s.current = nil
	s.paused = false
	s.mu.Unlock()

	s.player.Stop()
	if j != nil {
		j.cancel()
		j.u.Failed(speech.ErrCanceled)
	}
}

// Pause pauses playback. An utterance still being synthesized starts paused.
func (s *Synthesizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.player.Pause()
}

// Resume continues paused playback.
func (s *Synthesizer) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.player.Resume()
}
