package audio

import "math"

// silentThreshold is the linear volume at or below which output is muted.
const silentThreshold = 0.01

// volumeToPower maps a linear 0..1 volume to a beep base-2 exponent.
// 1 is unity gain, 0.5 is half amplitude.
func volumeToPower(vol float64) float64 {
	if vol <= silentThreshold {
		return -10
	}
	return math.Log2(vol)
}

func clampVolume(vol float64) float64 {
	if math.IsNaN(vol) {
		return 1
	}
	return math.Min(math.Max(vol, 0), 1)
}
