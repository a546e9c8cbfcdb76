package stt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/speech"
)

// Recognizer implements speech.Recognizer on top of a Microphone and a Transcriber.
//
// A session is single-shot: it ends when speech is followed by silence,
// on Stop, when the microphone goes away, or on a transcription error.
type Recognizer struct {
	engine  Transcriber
	mic     Microphone
	vad     config.VADConfig
	interim time.Duration

	mu      sync.Mutex
	current *speech.CaptureSession
	cancel  context.CancelFunc
}

// NewRecognizer creates a recognizer. Either dependency may be nil, making it unavailable.
func NewRecognizer(engine Transcriber, mic Microphone, cfg config.VADConfig) *Recognizer {
	interim := time.Duration(cfg.InterimInterval)
	if interim <= 0 {
		interim = time.Duration(config.DefaultConfig().STT.VAD.InterimInterval)
	}
	return &Recognizer{engine: engine, mic: mic, vad: cfg, interim: interim}
}

// Available reports whether an engine is configured and a microphone is connected.
func (r *Recognizer) Available() bool {
	return r != nil && r.engine != nil && r.mic != nil && r.mic.Available()
}

// Start begins capturing for s in the background.
func (r *Recognizer) Start(s *speech.CaptureSession) error {
	if r.engine == nil || r.mic == nil {
		return ErrNoMicrophone
	}

	r.mu.Lock()
	if r.current != nil {
		r.mu.Unlock()
		return ErrBusy
	}
	frames, err := r.mic.Open()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.current = s
	r.cancel = cancel
	r.mu.Unlock()

	slog.Debug("STT: capture started", "session", s.ID, "engine", r.engine.Name(), "lang", s.Config.Lang)
	go r.run(ctx, s, frames)
	return nil
}

// Stop aborts the running session. The caller ends the session.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.current = nil
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (r *Recognizer) run(ctx context.Context, s *speech.CaptureSession, frames <-chan []byte) {
	defer r.release(s)
	s.Started()

	vad := NewVAD(r.vad)
	// Pre-roll keeps the onset of speech that preceded detection.
	preRoll := int(time.Duration(r.vad.MinSpeech)/time.Millisecond) * SampleRate / 1000 * bytesPerSample
	if preRoll <= 0 {
		preRoll = SampleRate / 5 * bytesPerSample
	}
	limit := int(maxCapture/time.Second) * SampleRate * bytesPerSample

	var (
		buf         []byte
		captured    int
		lastInterim time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if vad.Speaking() {
					r.finalize(ctx, s, buf)
					return
				}
				s.Ended()
				return
			}

			captured += len(frame)
			buf = append(buf, frame...)
			ev := vad.Process(frame)

			if !vad.Speaking() && ev != VADSpeechEnd && len(buf) > preRoll {
				buf = append(buf[:0], buf[len(buf)-preRoll:]...)
			}

			switch {
			case ev == VADSpeechEnd:
				r.finalize(ctx, s, buf)
				return
			case captured >= limit:
				if vad.Speaking() {
					r.finalize(ctx, s, buf)
				} else {
					s.Ended()
				}
				return
			case ev == VADSpeechStart:
				lastInterim = time.Now()
			case vad.Speaking() && s.Config.InterimResults && time.Since(lastInterim) >= r.interim:
				lastInterim = time.Now()
				r.interimResult(ctx, s, buf)
			}
		}
	}
}

func (r *Recognizer) interimResult(ctx context.Context, s *speech.CaptureSession, pcm []byte) {
	text, err := r.engine.Transcribe(ctx, pcm, s.Config.Lang)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("STT: interim transcription failed", "session", s.ID, "error", err)
		}
		return
	}
	if text == "" || ctx.Err() != nil {
		return
	}
	s.Result(speech.ResultEvent{Results: []speech.Result{{Transcript: text}}})
}

func (r *Recognizer) finalize(ctx context.Context, s *speech.CaptureSession, pcm []byte) {
	text, err := r.engine.Transcribe(ctx, pcm, s.Config.Lang)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.Failed(fmt.Errorf("transcribe with %s: %w", r.engine.Name(), err))
		return
	}
	if text != "" {
		s.Result(speech.ResultEvent{Results: []speech.Result{{Transcript: text, IsFinal: true}}})
	}
	s.Ended()
}

func (r *Recognizer) release(s *speech.CaptureSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == s {
		r.current = nil
		if r.cancel != nil {
			r.cancel()
		}
		r.cancel = nil
	}
}
