// ABOUTME: Sine tone generator
// ABOUTME: Builds a fixed-length buffer for demos and tests without a file on disk
package audio

import (
	"math"
	"time"
)

// DefaultToneFrequency is A4
const DefaultToneFrequency = 440.0

// Tone renders a sine wave at half scale, duplicated across all channels
func Tone(frequency float64, length time.Duration, sampleRate, channels int) *Buffer {
	frames := int(length.Seconds() * float64(sampleRate))
	b := NewBuffer(channels, frames, sampleRate)
	if len(b.Channels) == 0 {
		return b
	}
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(sampleRate)
		b.Channels[0][i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.5)
	}
	for ch := 1; ch < channels; ch++ {
		copy(b.Channels[ch], b.Channels[0])
	}
	return b
}
