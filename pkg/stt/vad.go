package stt

import (
	"encoding/binary"
	"math"
	"time"

	"schemeaccess/pkg/config"
)

// VADEvent indicates a speech boundary.
type VADEvent int

const (
	VADNone VADEvent = iota
	VADSpeechStart
	VADSpeechEnd
)

// VAD performs energy-based voice activity detection on PCM frames.
// Durations are measured in audio time, so frames may vary in length.
type VAD struct {
	threshold float64
	minSpeech time.Duration
	silence   time.Duration

	speaking   bool
	speechRun  time.Duration
	silenceRun time.Duration
}

// NewVAD creates a detector. Zero config fields fall back to defaults.
func NewVAD(cfg config.VADConfig) *VAD {
	def := config.DefaultConfig().STT.VAD
	v := &VAD{
		threshold: cfg.EnergyThreshold,
		minSpeech: time.Duration(cfg.MinSpeech),
		silence:   time.Duration(cfg.Silence),
	}
	if v.threshold <= 0 {
		v.threshold = def.EnergyThreshold
	}
	if v.minSpeech <= 0 {
		v.minSpeech = time.Duration(def.MinSpeech)
	}
	if v.silence <= 0 {
		v.silence = time.Duration(def.Silence)
	}
	return v
}

// Process analyzes one frame and reports a boundary when one is crossed.
func (v *VAD) Process(frame []byte) VADEvent {
	d := audioDuration(len(frame))

	if rmsEnergy(frame) >= v.threshold {
		v.silenceRun = 0
		v.speechRun += d
		if !v.speaking && v.speechRun >= v.minSpeech {
			v.speaking = true
			return VADSpeechStart
		}
		return VADNone
	}

	v.speechRun = 0
	v.silenceRun += d
	if v.speaking && v.silenceRun >= v.silence {
		v.speaking = false
		return VADSpeechEnd
	}
	return VADNone
}

// Speaking reports whether speech is currently detected.
func (v *VAD) Speaking() bool {
	return v.speaking
}

// Reset clears the detector state.
func (v *VAD) Reset() {
	v.speaking = false
	v.speechRun = 0
	v.silenceRun = 0
}

// rmsEnergy computes the root-mean-square of 16-bit signed samples.
func rmsEnergy(pcm []byte) float64 {
	n := len(pcm) / bytesPerSample
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
