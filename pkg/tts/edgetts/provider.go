package edgetts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"schemeaccess/pkg/tts"
)

const (
	dialAttempts = 3
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

var errNoAudio = errors.New("edge tts returned no audio")

// catalog lists the neural voices offered for the portal's languages.
var catalog = []tts.Voice{
	{ID: "en-US-AvaMultilingualNeural", Name: "Ava (Multilingual)", Language: "en-US", IsNeural: true},
	{ID: "en-US-AndrewMultilingualNeural", Name: "Andrew (Multilingual)", Language: "en-US", IsNeural: true},
	{ID: "en-IN-NeerjaNeural", Name: "Neerja (India)", Language: "en-IN", IsNeural: true},
	{ID: "en-IN-PrabhatNeural", Name: "Prabhat (India)", Language: "en-IN", IsNeural: true},
	{ID: "hi-IN-SwaraNeural", Name: "Swara (Hindi)", Language: "hi-IN", IsNeural: true},
	{ID: "hi-IN-MadhurNeural", Name: "Madhur (Hindi)", Language: "hi-IN", IsNeural: true},
	{ID: "ta-IN-PallaviNeural", Name: "Pallavi (Tamil)", Language: "ta-IN", IsNeural: true},
	{ID: "bn-IN-TanishaaNeural", Name: "Tanishaa (Bengali)", Language: "bn-IN", IsNeural: true},
}

// Endpoint holds the connection parameters for the Edge read-aloud service.
type Endpoint struct {
	BaseURL            string
	Origin             string
	UserAgent          string
	TrustedClientToken string
	GECVersion         string
}

// EndpointFromEnv reads the EDGE_TTS_* environment variables.
func EndpointFromEnv() Endpoint {
	return Endpoint{
		BaseURL:            os.Getenv("EDGE_TTS_BASE_URL"),
		Origin:             os.Getenv("EDGE_TTS_ORIGIN"),
		UserAgent:          os.Getenv("EDGE_TTS_USER_AGENT"),
		TrustedClientToken: os.Getenv("EDGE_TTS_TRUSTED_CLIENT_TOKEN"),
		GECVersion:         os.Getenv("EDGE_TTS_SEC_MS_GEC_VERSION"),
	}
}

func (e Endpoint) validate() error {
	for _, f := range []struct{ val, env string }{
		{e.Origin, "EDGE_TTS_ORIGIN"},
		{e.UserAgent, "EDGE_TTS_USER_AGENT"},
		{e.TrustedClientToken, "EDGE_TTS_TRUSTED_CLIENT_TOKEN"},
		{e.GECVersion, "EDGE_TTS_SEC_MS_GEC_VERSION"},
		{e.BaseURL, "EDGE_TTS_BASE_URL"},
	} {
		if f.val == "" {
			return fmt.Errorf("%s environment variable is required", f.env)
		}
	}
	return nil
}

func (e Endpoint) url(now time.Time) string {
	return fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=%s",
		e.BaseURL, e.TrustedClientToken, generateSecMSGec(e.TrustedClientToken, now), e.GECVersion)
}

func (e Endpoint) header() http.Header {
	h := http.Header{}
	h.Set("Origin", e.Origin)
	h.Set("User-Agent", e.UserAgent)
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Cookie", "muid="+newID())
	return h
}

// Provider implements tts.Provider for Microsoft Edge TTS.
// The endpoint is read from the environment on every call, so a .env file
// loaded after construction still applies.
type Provider struct {
	voice  string
	dialer *websocket.Dialer
}

// NewProvider creates an Edge TTS provider. voice is used when a request
// names none and its language matches the request.
func NewProvider(voice string) *Provider {
	return &Provider{voice: voice, dialer: websocket.DefaultDialer}
}

// Synthesize streams the utterance over a fresh websocket and writes the
// audio to outputPath.mp3 once the service reports the turn complete.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outputPath string) (string, error) {
	voice := p.pickVoice(req)
	if voice == "" {
		return "", fmt.Errorf("voice ID is required")
	}
	ep := EndpointFromEnv()
	if err := ep.validate(); err != nil {
		return "", err
	}

	conn, err := p.dial(ctx, ep)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	// Unblock ReadMessage when the utterance is canceled
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	ssml := tts.BuildSSML(req, voice)
	requestID := newID()
	if err := writeFrame(conn, "speech.config", "application/json; charset=utf-8", "", speechConfig()); err != nil {
		return "", err
	}
	if err := writeFrame(conn, "ssml", "application/ssml+xml", requestID, ssml); err != nil {
		return "", err
	}

	audio, err := readAudio(conn)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		tts.Log("EDGETTS", ssml, 0, err)
		return "", err
	}
	tts.Log("EDGETTS", ssml, 200, nil)

	fullPath := outputPath
	if !strings.HasSuffix(strings.ToLower(fullPath), ".mp3") {
		fullPath += ".mp3"
	}
	if err := os.WriteFile(fullPath, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	return "mp3", nil
}

// pickVoice prefers the request's voice, then the configured voice if it
// speaks the request language, then the first catalog voice for that
// language, then the configured voice.
func (p *Provider) pickVoice(req tts.Request) string {
	if req.Voice != "" {
		return req.Voice
	}
	if req.Language == "" || strings.HasPrefix(p.voice, req.Language+"-") {
		return p.voice
	}
	for _, v := range catalog {
		if v.Language == req.Language {
			return v.ID
		}
	}
	return p.voice
}

func (p *Provider) dial(ctx context.Context, ep Endpoint) (*websocket.Conn, error) {
	var dialErr error
	for i := 0; i < dialAttempts; i++ {
		conn, resp, err := p.dialer.DialContext(ctx, ep.url(time.Now()), ep.header())
		if err == nil {
			return conn, nil
		}
		dialErr = err
		if resp != nil {
			slog.Warn("EdgeTTS: handshake failed", "status", resp.Status, "attempt", i+1)
			if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
				return nil, tts.NewFatalError(resp.StatusCode, fmt.Sprintf("edge tts handshake rejected: %s", resp.Status))
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("websocket dial failed after %d attempts: %w", dialAttempts, dialErr)
}

// generateSecMSGec derives the Sec-MS-GEC token: Windows file-time ticks
// rounded down to 5 minutes, concatenated with the client token, SHA-256, upper hex.
// A skewed local clock produces a rejected token.
func generateSecMSGec(trustedClientToken string, now time.Time) string {
	secs := now.Unix() + 11644473600
	secs -= secs % 300
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d0000000%s", secs, trustedClientToken)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func speechConfig() string {
	return `{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + outputFormat + `"}}}}`
}

func writeFrame(conn *websocket.Conn, path, contentType, requestID, body string) error {
	var b strings.Builder
	if requestID != "" {
		b.WriteString("X-RequestId:" + requestID + "\r\n")
	}
	b.WriteString("Content-Type:" + contentType + "\r\n")
	b.WriteString("Path:" + path + "\r\n\r\n")
	b.WriteString(body)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send %s: %w", path, err)
	}
	return nil
}

// readAudio collects audio frames until turn.end.
func readAudio(conn *websocket.Conn) ([]byte, error) {
	var audio bytes.Buffer
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read message failed: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			head, _, _ := strings.Cut(string(data), "\r\n\r\n")
			if headerValue(head, "Path") == "turn.end" {
				if audio.Len() == 0 {
					return nil, errNoAudio
				}
				return audio.Bytes(), nil
			}
		case websocket.BinaryMessage:
			head, body, ok := splitBinary(data)
			if ok && headerValue(head, "Path") == "audio" {
				audio.Write(body)
			}
		}
	}
}

// splitBinary splits a binary frame: a big-endian uint16 header length,
// the text header, then the payload.
func splitBinary(data []byte) (string, []byte, bool) {
	if len(data) < 2 {
		return "", nil, false
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n {
		return "", nil, false
	}
	return string(data[2 : 2+n]), data[2+n:], true
}

func headerValue(head, name string) string {
	for _, line := range strings.Split(head, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Voices returns the neural voices offered for the portal's languages.
func (p *Provider) Voices(ctx context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, len(catalog))
	copy(out, catalog)
	return out, nil
}
