package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	DB            DBConfig            `yaml:"db"`
	Log           LogConfig           `yaml:"log"`
	History       HistoryConfig       `yaml:"history"`
	Accessibility AccessibilityConfig `yaml:"accessibility"`
	TTS           TTSConfig           `yaml:"tts"`
	STT           STTConfig           `yaml:"stt"`
	GUI           GUIConfig           `yaml:"gui"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Events   LogSettings `yaml:"events"` // Spoken and recognized text, one line per event
}

// HistorySettings toggles a prompt history file.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HistoryConfig holds history logging settings.
type HistoryConfig struct {
	TTS HistorySettings `yaml:"tts"`
}

// AccessibilityConfig holds settings for the accessibility store.
type AccessibilityConfig struct {
	StorageKey string `yaml:"storage_key"` // Record key for the persisted subset
	Language   string `yaml:"language"`    // BCP-47 tag used for speech in and out
}

// EdgeTTSConfig holds settings for Edge TTS.
type EdgeTTSConfig struct {
	VoiceID string `yaml:"voice"` // e.g. "en-US-AvaMultilingualNeural"
}

// GoogleTTSConfig holds settings for Google Cloud Text-to-Speech.
type GoogleTTSConfig struct {
	Key     string `yaml:"key"`
	VoiceID string `yaml:"voice"` // e.g. "en-US-Neural2-F"
}

// AzureSpeechConfig holds settings for Azure Speech.
type AzureSpeechConfig struct {
	Key     string `yaml:"key"`
	Region  string `yaml:"region"`
	VoiceID string `yaml:"voice"`
}

// SAPIConfig holds settings for Windows SAPI5.
type SAPIConfig struct {
	VoiceID string `yaml:"voice"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Engine   string            `yaml:"engine"`
	CacheDir string            `yaml:"cache_dir"` // Where synthesized clips are written before playback
	EdgeTTS  EdgeTTSConfig     `yaml:"edge_tts"`
	Google   GoogleTTSConfig   `yaml:"google"`
	Azure    AzureSpeechConfig `yaml:"azure_speech"`
	SAPI     SAPIConfig        `yaml:"sapi"`
}

// OpenAISTTConfig holds settings for an OpenAI-compatible transcription API.
type OpenAISTTConfig struct {
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GeminiSTTConfig holds settings for Gemini audio transcription.
type GeminiSTTConfig struct {
	Key   string `yaml:"key"`
	Model string `yaml:"model"`
}

// VADConfig holds voice activity detection thresholds.
type VADConfig struct {
	EnergyThreshold float64  `yaml:"energy_threshold"` // RMS of 16-bit samples
	MinSpeech       Duration `yaml:"min_speech"`
	Silence         Duration `yaml:"silence"`
	InterimInterval Duration `yaml:"interim_interval"`
}

// STTConfig holds Speech-To-Text settings.
type STTConfig struct {
	Engine string          `yaml:"engine"`
	OpenAI OpenAISTTConfig `yaml:"openai"`
	Gemini GeminiSTTConfig `yaml:"gemini"`
	VAD    VADConfig       `yaml:"vad"`
}

// GUIConfig holds settings for the desktop shell.
type GUIConfig struct {
	Title        string   `yaml:"title"`
	Width        int      `yaml:"width"`
	Height       int      `yaml:"height"`
	PortalURL    string   `yaml:"portal_url"`
	PollInterval Duration `yaml:"poll_interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "localhost:1930",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
		DB: DBConfig{
			Path: "./data/schemeaccess.db",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/speech.log",
				Level: "INFO",
			},
		},
		History: HistoryConfig{
			TTS: HistorySettings{
				Enabled: false,
				Path:    "./logs/tts.log",
			},
		},
		Accessibility: AccessibilityConfig{
			StorageKey: "accessibility-settings",
			Language:   "en-US",
		},
		TTS: TTSConfig{
			Engine:   "edge-tts",
			CacheDir: "./data/speech",
			EdgeTTS: EdgeTTSConfig{
				VoiceID: "en-US-AvaMultilingualNeural",
			},
			Google: GoogleTTSConfig{
				VoiceID: "en-US-Neural2-F",
			},
			Azure: AzureSpeechConfig{
				Region:  "centralindia",
				VoiceID: "en-IN-NeerjaNeural",
			},
		},
		STT: STTConfig{
			Engine: "openai",
			OpenAI: OpenAISTTConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "whisper-1",
			},
			Gemini: GeminiSTTConfig{
				Model: "gemini-2.5-flash",
			},
			VAD: VADConfig{
				EnergyThreshold: 500,
				MinSpeech:       Duration(200 * time.Millisecond),
				Silence:         Duration(900 * time.Millisecond),
				InterimInterval: Duration(1500 * time.Millisecond),
			},
		},
		GUI: GUIConfig{
			Title:        "Scheme Portal",
			Width:        1280,
			Height:       860,
			PortalURL:    "http://localhost:5173",
			PollInterval: Duration(500 * time.Millisecond),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if !isValidLocale(cfg.Accessibility.Language) {
		return nil, fmt.Errorf("invalid accessibility.language '%s': must be 'xx-YY' (e.g. 'en-US', 'hi-IN')", cfg.Accessibility.Language)
	}

	return cfg, nil
}

// applyEnv fills empty API keys from the environment. Values are never written back to disk.
func applyEnv(cfg *Config) {
	if cfg.TTS.Google.Key == "" {
		cfg.TTS.Google.Key = os.Getenv("GOOGLE_TTS_API_KEY")
	}
	if cfg.TTS.Azure.Key == "" {
		cfg.TTS.Azure.Key = os.Getenv("AZURE_SPEECH_KEY")
	}
	if cfg.STT.OpenAI.Key == "" {
		cfg.STT.OpenAI.Key = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.STT.Gemini.Key == "" {
		cfg.STT.Gemini.Key = os.Getenv("GEMINI_API_KEY")
	}
}

func isValidLocale(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}-[A-Z]{2}$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Scheme Portal Accessibility Service Configuration
# ------------------------------------------------
# Supported Units:
#   Duration: Go durations (ms, s, m, h); bare numbers are milliseconds

`)
	data = append(header, data...)

	reTTS := regexp.MustCompile(`(?m)^(tts:\n\s+)engine:`)
	data = reTTS.ReplaceAll(data, []byte("${1}# Options: edge-tts, google-tts, azure-speech, windows-sapi, none\n    engine:"))

	reSTT := regexp.MustCompile(`(?m)^(stt:\n\s+)engine:`)
	data = reSTT.ReplaceAll(data, []byte("${1}# Options: openai, gemini, none\n    engine:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
