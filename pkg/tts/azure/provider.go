package azure

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/tts"
)

const outputFormat = "audio-24khz-160kbitrate-mono-mp3"

// Provider implements tts.Provider for the Azure Speech REST API.
type Provider struct {
	key     string
	voiceID string
	client  *http.Client
	baseURL string // https://{region}.tts.speech.microsoft.com/cognitiveservices
}

// NewProvider creates an Azure Speech provider for cfg.Region.
func NewProvider(cfg config.AzureSpeechConfig) *Provider {
	return &Provider{
		key:     cfg.Key,
		voiceID: cfg.VoiceID,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices", cfg.Region),
	}
}

// Synthesize posts the utterance as SSML and writes the MP3 response.
// Client errors are fatal; server errors may be retried.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (string, error) {
	vid := req.Voice
	if vid == "" {
		vid = p.voiceID
	}
	if vid == "" {
		return "", fmt.Errorf("no voice ID configured for Azure Speech")
	}
	if p.key == "" {
		return "", tts.NewFatalError(http.StatusUnauthorized, "azure speech key is not configured")
	}

	ssml := tts.BuildSSML(req, vid)
	if err := validateSSML(ssml); err != nil {
		return "", fmt.Errorf("invalid ssml: %w", err)
	}

	httpReq, err := p.newRequest(ctx, http.MethodPost, "/v1", strings.NewReader(ssml))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/ssml+xml")
	httpReq.Header.Set("X-Microsoft-OutputFormat", outputFormat)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		tts.Log("AZURE", ssml, 0, err)
		return "", fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tts.Log("AZURE", ssml, resp.StatusCode, nil)
		return "", statusError(resp)
	}
	tts.Log("AZURE", ssml, resp.StatusCode, nil)

	filename := outputPath
	if filepath.Ext(filename) != ".mp3" {
		filename += ".mp3"
	}
	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write audio to file: %w", err)
	}
	return "mp3", nil
}

type voiceEntry struct {
	ShortName   string `json:"ShortName"`
	DisplayName string `json:"DisplayName"`
	Locale      string `json:"Locale"`
	VoiceType   string `json:"VoiceType"`
}

// Voices lists the voices available in the configured region.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	if p.key == "" {
		return nil, tts.NewFatalError(http.StatusUnauthorized, "azure speech key is not configured")
	}
	httpReq, err := p.newRequest(ctx, http.MethodGet, "/voices/list", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voice list request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var entries []voiceEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode voice list: %w", err)
	}
	voices := make([]tts.Voice, 0, len(entries))
	for _, e := range entries {
		voices = append(voices, tts.Voice{
			ID:       e.ShortName,
			Name:     e.DisplayName,
			Language: e.Locale,
			IsNeural: e.VoiceType == "Neural",
		})
	}
	return voices, nil
}

func (p *Provider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("User-Agent", "SchemeAccess")
	return req, nil
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if err != nil {
		msg = fmt.Sprintf("[failed to read body: %v]", err)
	}
	if msg == "" {
		msg = "[empty body]"
	}
	errMsg := fmt.Sprintf("azure speech api error (status %d): %s", resp.StatusCode, msg)
	if resp.StatusCode >= 500 {
		return errors.New(errMsg)
	}
	return tts.NewFatalError(resp.StatusCode, errMsg)
}

// validateSSML checks that ssml is well-formed XML.
func validateSSML(ssml string) error {
	decoder := xml.NewDecoder(strings.NewReader(ssml))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

