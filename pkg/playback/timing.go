// ABOUTME: Conversions between musical time and buffer frames
// ABOUTME: Musical time is measured on the original track, frames on the rate-adjusted buffer
package playback

import "math"

// TimeToFrame maps a musical timestamp to a frame index of a buffer
// realized at the given playback rate.
func TimeToFrame(t, rate float64, sampleRate int) int {
	if rate <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Round(t / rate * float64(sampleRate)))
}

// FrameToTime maps a frame index back to musical time.
func FrameToTime(frame int, rate float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frame) / float64(sampleRate) * rate
}
