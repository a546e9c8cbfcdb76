package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/stt"
	"schemeaccess/pkg/tracker"
	"schemeaccess/pkg/tts"
	"schemeaccess/pkg/tts/azure"
	"schemeaccess/pkg/tts/edgetts"
	"schemeaccess/pkg/tts/google"
	"schemeaccess/pkg/tts/sapi"
)

// engineError marks a misconfigured engine name, which stops startup.
type engineError struct {
	kind, name string
}

func (e *engineError) Error() string {
	return fmt.Sprintf("unknown %s engine: %s", e.kind, e.name)
}

// newTTSProvider returns a TTS provider based on configuration, or nil for "none".
func newTTSProvider(ctx context.Context, cfg *config.TTSConfig) (tts.Provider, error) {
	switch cfg.Engine {
	case "sapi", "windows-sapi":
		return sapi.NewProvider(cfg.SAPI.VoiceID), nil
	case "edge", "edge-tts":
		return edgetts.NewProvider(cfg.EdgeTTS.VoiceID), nil
	case "google", "google-tts":
		p, err := google.NewProvider(ctx, cfg.Google)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "azure", "azure-speech":
		return azure.NewProvider(cfg.Azure), nil
	case "", "none":
		return nil, nil
	default:
		return nil, &engineError{kind: "tts", name: cfg.Engine}
	}
}

// newTranscriber returns a transcription engine based on configuration, or nil for "none".
func newTranscriber(ctx context.Context, cfg *config.STTConfig) (stt.Transcriber, error) {
	switch cfg.Engine {
	case "openai":
		t, err := stt.NewOpenAI(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "gemini":
		t, err := stt.NewGemini(ctx, cfg.Gemini, "")
		if err != nil {
			return nil, err
		}
		return t, nil
	case "", "none":
		return nil, nil
	default:
		return nil, &engineError{kind: "stt", name: cfg.Engine}
	}
}

// engineGuard counts engine calls and backs off an engine that keeps failing.
type engineGuard struct {
	stats   *tracker.Tracker
	backoff *tracker.Backoff
}

func newEngineGuard(stats *tracker.Tracker) *engineGuard {
	return &engineGuard{stats: stats, backoff: tracker.NewBackoff(2*time.Second, time.Minute)}
}

// trackedProvider wraps a TTS provider with an engineGuard.
type trackedProvider struct {
	tts.Provider
	name  string
	guard *engineGuard
}

func trackProvider(p tts.Provider, engine string, g *engineGuard) tts.Provider {
	if p == nil {
		return nil
	}
	return &trackedProvider{Provider: p, name: "tts." + engine, guard: g}
}

func (t *trackedProvider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (string, error) {
	if err := t.guard.backoff.Wait(ctx, t.name); err != nil {
		return "", err
	}
	start := time.Now()
	format, err := t.Provider.Synthesize(ctx, req, outputPath)
	switch {
	case err == nil:
		t.guard.stats.TrackSuccess(t.name, time.Since(start))
		t.guard.backoff.RecordSuccess(t.name)
	case ctx.Err() == nil:
		t.guard.stats.TrackFailure(t.name)
		if tts.IsFatalError(err) {
			t.guard.backoff.RecordFailure(t.name)
		}
	}
	return format, err
}

// trackedTranscriber wraps a transcription engine with an engineGuard.
type trackedTranscriber struct {
	stt.Transcriber
	guard *engineGuard
}

func trackTranscriber(e stt.Transcriber, g *engineGuard) stt.Transcriber {
	if e == nil {
		return nil
	}
	return &trackedTranscriber{Transcriber: e, guard: g}
}

func (t *trackedTranscriber) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	name := "stt." + t.Name()
	if err := t.guard.backoff.Wait(ctx, name); err != nil {
		return "", err
	}
	start := time.Now()
	text, err := t.Transcriber.Transcribe(ctx, pcm, lang)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			t.guard.stats.TrackFailure(name)
			t.guard.backoff.RecordFailure(name)
		}
	case strings.TrimSpace(text) == "":
		t.guard.stats.TrackEmpty(name)
		t.guard.backoff.RecordSuccess(name)
	default:
		t.guard.stats.TrackSuccess(name, time.Since(start))
		t.guard.backoff.RecordSuccess(name)
	}
	return text, err
}
