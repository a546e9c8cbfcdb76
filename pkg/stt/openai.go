package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"schemeaccess/pkg/config"
)

// OpenAI transcribes audio with an OpenAI-compatible /audio/transcriptions endpoint.
type OpenAI struct {
	key     string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAI creates a transcriber. It returns an error when no key is configured.
func NewOpenAI(cfg config.OpenAISTTConfig) (*OpenAI, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("openai stt key is not configured")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	return &OpenAI{
		key:     cfg.Key,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Transcribe uploads pcm as a WAV file and returns the recognized text.
func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, lang string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(EncodeWAV(pcm, SampleRate)); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := w.WriteField("model", o.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	// The API takes ISO-639-1 codes, so "hi-IN" becomes "hi".
	if code, _, _ := strings.Cut(lang, "-"); code != "" {
		if err := w.WriteField("language", strings.ToLower(code)); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("write response_format field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.key)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription api error %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
