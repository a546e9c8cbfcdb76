// Package google implements tts.Provider with Google Cloud Text-to-Speech.
package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/tts"
)

// Provider implements tts.Provider for Google Cloud Text-to-Speech.
type Provider struct {
	svc     *texttospeech.Service
	voiceID string
}

// NewProvider creates a provider authenticated with the configured API key.
// Extra client options (endpoint, HTTP client) are appended after the key.
func NewProvider(ctx context.Context, cfg config.GoogleTTSConfig, opts ...option.ClientOption) (*Provider, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("google tts key is not configured")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.Key)}, opts...)
	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create texttospeech service: %w", err)
	}
	return &Provider{svc: svc, voiceID: cfg.VoiceID}, nil
}

// Synthesize generates an .mp3 file.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (string, error) {
	voice := req.Voice
	if voice == "" {
		voice = p.voiceID
	}
	lang := req.Language
	if lang == "" {
		lang = languageOf(voice)
	}

	call := p.svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  speakingRate(req.Rate),
			VolumeGainDb:  volumeGainDb(req.Volume),
		},
	})

	resp, err := call.Context(ctx).Do()
	if err != nil {
		tts.Log("GOOGLE", req.Text, statusOf(err), err)
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return "", tts.NewFatalError(gerr.Code, fmt.Sprintf("google tts api error (status %d): %s", gerr.Code, gerr.Message))
		}
		return "", fmt.Errorf("google tts request failed: %w", err)
	}
	tts.Log("GOOGLE", req.Text, 200, nil)

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return "", fmt.Errorf("failed to decode audio content: %w", err)
	}

	filename := outputPath
	if !strings.HasSuffix(strings.ToLower(filename), ".mp3") {
		filename += ".mp3"
	}
	if err := os.WriteFile(filename, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio to file: %w", err)
	}
	return "mp3", nil
}

// Voices lists the voices available for the configured voice's language.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	call := p.svc.Voices.List()
	if lang := languageOf(p.voiceID); lang != "" {
		call = call.LanguageCode(lang)
	}
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		lang := ""
		if len(v.LanguageCodes) > 0 {
			lang = v.LanguageCodes[0]
		}
		voices = append(voices, tts.Voice{
			ID:       v.Name,
			Name:     fmt.Sprintf("%s (%s)", v.Name, strings.ToLower(v.SsmlGender)),
			Language: lang,
			IsNeural: strings.Contains(v.Name, "Neural") || strings.Contains(v.Name, "Wavenet"),
		})
	}
	return voices, nil
}

// languageOf extracts "en-US" from a voice name like "en-US-Neural2-F".
func languageOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[0] + "-" + parts[1]
}

// speakingRate clamps to the API's accepted [0.25, 4.0].
func speakingRate(rate float64) float64 {
	if rate <= 0 || math.IsNaN(rate) {
		return 1
	}
	return math.Min(math.Max(rate, 0.25), 4)
}

// volumeGainDb maps a linear 0..1 volume to the API's [-96, 16] dB gain.
func volumeGainDb(volume float64) float64 {
	if math.IsNaN(volume) || volume >= 1 {
		return 0
	}
	if volume <= 0 {
		return -96
	}
	return math.Max(20*math.Log10(volume), -96)
}

func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
