package tts

import (
	"fmt"
	"math"
	"os"
	"strings"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

// EscapeXML escapes text for use inside SSML.
func EscapeXML(text string) string {
	return xmlEscaper.Replace(text)
}

// ProsodyRate renders a rate multiplier as an SSML relative rate, e.g. 1.2 -> "+20%".
func ProsodyRate(rate float64) string {
	if rate <= 0 || math.IsNaN(rate) {
		rate = 1
	}
	return signedPercent(math.Round((rate - 1) * 100))
}

// ProsodyVolume renders a 0..1 volume as an SSML absolute volume, e.g. 0.8 -> "80".
func ProsodyVolume(volume float64) string {
	if math.IsNaN(volume) {
		volume = 1
	}
	volume = math.Min(math.Max(volume, 0), 1)
	return fmt.Sprintf("%.0f", volume*100)
}

func signedPercent(p float64) string {
	if p >= 0 {
		return fmt.Sprintf("+%.0f%%", p)
	}
	return fmt.Sprintf("%.0f%%", p)
}

// BuildSSML wraps plain text in a speak/voice/prosody document.
func BuildSSML(req Request, voice string) string {
	lang := req.Language
	if lang == "" {
		lang = "en-US"
	}
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>"+
			"<voice name='%s'><prosody rate='%s' volume='%s'>%s</prosody></voice></speak>",
		lang, EscapeXML(voice), ProsodyRate(req.Rate), ProsodyVolume(req.Volume), EscapeXML(req.Text))
}

// VerifyAudioFile checks that a synthesized file exists and is not truncated.
func VerifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("audio file missing: %w", err)
	}
	if info.Size() < MinAudioSize {
		return fmt.Errorf("audio file too small (%d bytes): %s", info.Size(), path)
	}
	return nil
}
