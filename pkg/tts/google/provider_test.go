package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/api/option"

	"schemeaccess/pkg/config"
	"schemeaccess/pkg/tts"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewProvider(context.Background(),
		config.GoogleTTSConfig{Key: "test-key", VoiceID: "en-IN-Neural2-A"},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	return p
}

func TestNewProvider_RequiresKey(t *testing.T) {
	if _, err := NewProvider(context.Background(), config.GoogleTTSConfig{}); err == nil {
		t.Error("expected error without key")
	}
}

func TestSynthesize(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("MP3BYTES")),
		})
	})

	out := filepath.Join(t.TempDir(), "clip")
	format, err := p.Synthesize(context.Background(), tts.Request{Text: "Scholarship", Rate: 1.5, Volume: 1}, out)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if format != "mp3" {
		t.Errorf("format = %q", format)
	}
	if data, _ := os.ReadFile(out + ".mp3"); string(data) != "MP3BYTES" {
		t.Errorf("audio = %q", data)
	}

	voice := got["voice"].(map[string]any)
	if voice["name"] != "en-IN-Neural2-A" || voice["languageCode"] != "en-IN" {
		t.Errorf("voice = %v", voice)
	}
	audioCfg := got["audioConfig"].(map[string]any)
	if audioCfg["speakingRate"] != 1.5 {
		t.Errorf("audioConfig = %v", audioCfg)
	}
}

func TestSynthesize_APIError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	})

	_, err := p.Synthesize(context.Background(), tts.Request{Text: "x"}, filepath.Join(t.TempDir(), "clip"))
	if !tts.IsFatalError(err) {
		t.Errorf("expected FatalError, got %v", err)
	}
}

func TestVoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("languageCode") != "en-IN" {
			t.Errorf("languageCode = %q", r.URL.Query().Get("languageCode"))
		}
		_, _ = w.Write([]byte(`{"voices":[{"name":"en-IN-Neural2-A","languageCodes":["en-IN"],"ssmlGender":"FEMALE"}]}`))
	})

	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "en-IN-Neural2-A" || !voices[0].IsNeural {
		t.Errorf("voices = %+v", voices)
	}
}

func TestVolumeGainDb(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1, 0},
		{0, -96},
		{0.5, 20 * math.Log10(0.5)},
		{1.4, 0},
	}
	for _, tt := range tests {
		if got := volumeGainDb(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("volumeGainDb(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLanguageOf(t *testing.T) {
	if got := languageOf("hi-IN-Wavenet-D"); got != "hi-IN" {
		t.Errorf("languageOf = %q", got)
	}
	if got := languageOf("custom"); got != "" {
		t.Errorf("languageOf = %q", got)
	}
}
