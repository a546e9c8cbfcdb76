// Package accessibility holds the portal's accessibility preferences, applies
// the visual ones to the document root and tracks speech activity.
package accessibility

import (
	"math"
)

// Font scale bounds, in percent of the base size.
const (
	MinFontScale     = 80
	MaxFontScale     = 150
	FontScaleStep    = 10
	DefaultFontScale = 100
)

// Speech rate and volume bounds.
const (
	MinSpeechRate       = 0.5
	MaxSpeechRate       = 2.0
	DefaultSpeechRate   = 1.0
	MinSpeechVolume     = 0.0
	MaxSpeechVolume     = 1.0
	DefaultSpeechVolume = 1.0
	SpeechStep          = 0.1
)

// DefaultStorageKey names the persisted preferences record.
const DefaultStorageKey = "accessibility-settings"

// Settings is a point-in-time view of the store.
type Settings struct {
	HighContrast bool    `json:"highContrast"`
	FontScale    int     `json:"fontScale"`
	Speaking     bool    `json:"speaking"`
	Listening    bool    `json:"listening"`
	SpeechRate   float64 `json:"speechRate"`
	SpeechVolume float64 `json:"speechVolume"`
}

// Persisted is the subset of Settings that survives a restart.
type Persisted struct {
	HighContrast bool    `json:"isHighContrast"`
	FontScale    int     `json:"fontScale"`
	SpeechRate   float64 `json:"speechRate"`
	SpeechVolume float64 `json:"speechVolume"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		FontScale:    DefaultFontScale,
		SpeechRate:   DefaultSpeechRate,
		SpeechVolume: DefaultSpeechVolume,
	}
}

// Active reports whether any accessibility feature is engaged.
func (s Settings) Active() bool {
	return s.HighContrast || s.FontScale != DefaultFontScale || s.Speaking || s.Listening
}

func (s Settings) persisted() Persisted {
	return Persisted{
		HighContrast: s.HighContrast,
		FontScale:    s.FontScale,
		SpeechRate:   s.SpeechRate,
		SpeechVolume: s.SpeechVolume,
	}
}

// sanitized moves values read from storage into their valid ranges. The
// font scale also lands on a FontScaleStep offset from DefaultFontScale.
func (p Persisted) sanitized() Persisted {
	p.FontScale = ClampFontScale(SnapFontScale(p.FontScale))
	p.SpeechRate = ClampSpeechRate(p.SpeechRate)
	p.SpeechVolume = ClampSpeechVolume(p.SpeechVolume)
	return p
}

// ClampFontScale limits a font scale to [MinFontScale, MaxFontScale].
func ClampFontScale(v int) int {
	return min(max(v, MinFontScale), MaxFontScale)
}

// SnapFontScale rounds v to the nearest FontScaleStep offset from
// DefaultFontScale. Halfway values round away from the default.
func SnapFontScale(v int) int {
	steps := math.Round(float64(v-DefaultFontScale) / FontScaleStep)
	return DefaultFontScale + int(steps)*FontScaleStep
}

// ClampSpeechRate limits a rate to [MinSpeechRate, MaxSpeechRate].
// NaN maps to the default.
func ClampSpeechRate(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSpeechRate
	}
	return math.Min(math.Max(v, MinSpeechRate), MaxSpeechRate)
}

// ClampSpeechVolume limits a volume to [MinSpeechVolume, MaxSpeechVolume].
// NaN maps to the default.
func ClampSpeechVolume(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSpeechVolume
	}
	return math.Min(math.Max(v, MinSpeechVolume), MaxSpeechVolume)
}
