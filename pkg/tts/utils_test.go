package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifyAudioFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("FileDoesNotExist", func(t *testing.T) {
		err := VerifyAudioFile(filepath.Join(tmpDir, "missing.mp3"))
		if err == nil {
			t.Error("expected error for missing file, got nil")
		}
	})

	t.Run("FileTooSmall", func(t *testing.T) {
		path := filepath.Join(tmpDir, "small.mp3")
		if err := os.WriteFile(path, make([]byte, 512), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		err := VerifyAudioFile(path)
		if err == nil {
			t.Error("expected error for small file, got nil")
		}
	})

	t.Run("FileValid", func(t *testing.T) {
		path := filepath.Join(tmpDir, "valid.mp3")
		if err := os.WriteFile(path, make([]byte, MinAudioSize+1), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		err := VerifyAudioFile(path)
		if err != nil {
			t.Errorf("expected no error for valid file, got: %v", err)
		}
	})
}

func TestProsody(t *testing.T) {
	rates := []struct {
		in   float64
		want string
	}{
		{1, "+0%"},
		{1.5, "+50%"},
		{0.5, "-50%"},
		{2, "+100%"},
		{0, "+0%"},
	}
	for _, tt := range rates {
		if got := ProsodyRate(tt.in); got != tt.want {
			t.Errorf("ProsodyRate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}

	volumes := []struct {
		in   float64
		want string
	}{
		{1, "100"},
		{0.25, "25"},
		{0, "0"},
		{1.7, "100"},
	}
	for _, tt := range volumes {
		if got := ProsodyVolume(tt.in); got != tt.want {
			t.Errorf("ProsodyVolume(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildSSML(t *testing.T) {
	got := BuildSSML(Request{Text: `Ben & Jerry's <b>`, Language: "hi-IN", Rate: 1.2, Volume: 0.5}, "hi-IN-SwaraNeural")

	for _, want := range []string{
		"xml:lang='hi-IN'",
		"<voice name='hi-IN-SwaraNeural'>",
		"<prosody rate='+20%' volume='50'>",
		"Ben &amp; Jerry&apos;s &lt;b&gt;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildSSML() = %s, missing %s", got, want)
		}
	}
}

func TestLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tts.log")
	SetLogPath(path)
	defer SetLogPath("logs/tts.log")

	Log("EDGETTS", "ignored while disabled", 200, nil)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("history written while disabled")
	}

	SetLogEnabled(true)
	defer SetLogEnabled(false)
	Log("EDGETTS", "<speak>\n  Widow   pension</speak>", 200, nil)
	Log("AZURE", "<speak/>", 0, errors.New("timeout"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), data)
	}
	if !strings.HasSuffix(lines[0], "[EDGETTS] 200 | <speak> Widow pension</speak>") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[AZURE] ERROR(timeout) |") {
		t.Errorf("line 1 = %q", lines[1])
	}
}
