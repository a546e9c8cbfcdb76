package stt

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"schemeaccess/pkg/config"
)

const geminiPrompt = "Transcribe the speech in this recording verbatim in language %s. " +
	"Reply with the transcript only. Reply with nothing if there is no speech."

// Gemini transcribes audio by prompting a Gemini model with an inline WAV part.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a transcriber. baseURL overrides the API endpoint when set.
func NewGemini(ctx context.Context, cfg config.GeminiSTTConfig, baseURL string) (*Gemini, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("gemini stt key is not configured")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.Key,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Transcribe sends pcm as audio/wav and returns the model's transcript.
func (g *Gemini) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(fmt.Sprintf(geminiPrompt, lang)),
			genai.NewPartFromBytes(EncodeWAV(pcm, SampleRate), "audio/wav"),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content error: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
