// ABOUTME: Audio type definitions
// ABOUTME: Defines the planar float buffer handed to the playback engine and sample conversions
package audio

import (
	"errors"
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// MaxChannels is the widest layout the playback engine renders
	MaxChannels = 2
)

var (
	// ErrChannelCount is returned for buffers that are not mono or stereo
	ErrChannelCount = errors.New("audio: buffer must have 1 or 2 channels")
	// ErrRaggedChannels is returned when channel slices differ in length
	ErrRaggedChannels = errors.New("audio: channels differ in length")
	// ErrSampleRate is returned for a non-positive sample rate
	ErrSampleRate = errors.New("audio: sample rate must be positive")
)

// Format describes a decoded stream before it is collected into a Buffer
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer holds decoded audio as planar, normalized float32 samples.
// A Buffer must not be modified once it has been loaded into a player.
type Buffer struct {
	Channels   [][]float32
	SampleRate int
}

// NewBuffer allocates a silent buffer of the given shape
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	b := &Buffer{
		Channels:   make([][]float32, channels),
		SampleRate: sampleRate,
	}
	for ch := range b.Channels {
		b.Channels[ch] = make([]float32, frames)
	}
	return b
}

// FromInterleaved splits interleaved samples into a planar buffer.
// Trailing samples that do not form a whole frame are dropped.
func FromInterleaved(samples []float32, channels, sampleRate int) *Buffer {
	if channels <= 0 {
		channels = 1
	}
	frames := len(samples) / channels
	b := NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			b.Channels[ch][i] = samples[i*channels+ch]
		}
	}
	return b
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Frames returns the number of frames per channel
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Seconds returns the buffer length in seconds of sample time
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Duration returns the buffer length as a time.Duration
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Seconds() * float64(time.Second))
}

// Interleaved returns a freshly allocated interleaved copy
func (b *Buffer) Interleaved() []float32 {
	nch := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, frames*nch)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < nch; ch++ {
			out[i*nch+ch] = b.Channels[ch][i]
		}
	}
	return out
}

// Validate checks the shape the playback engine relies on
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("audio: nil buffer")
	}
	if b.SampleRate <= 0 {
		return ErrSampleRate
	}
	if n := len(b.Channels); n < 1 || n > MaxChannels {
		return fmt.Errorf("%w: got %d", ErrChannelCount, n)
	}
	frames := len(b.Channels[0])
	for ch, data := range b.Channels[1:] {
		if len(data) != frames {
			return fmt.Errorf("%w: channel %d has %d frames, want %d", ErrRaggedChannels, ch+1, len(data), frames)
		}
	}
	return nil
}

// Mono returns a copy downmixed to a single channel
func (b *Buffer) Mono() *Buffer {
	if b.NumChannels() == 1 {
		return b
	}
	out := NewBuffer(1, b.Frames(), b.SampleRate)
	scale := 1 / float32(b.NumChannels())
	for _, data := range b.Channels {
		for i, s := range data {
			out.Channels[0][i] += s * scale
		}
	}
	return out
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// Int16ToFloat normalizes a 16-bit sample to [-1, 1)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / 32768
}

// Int24ToFloat normalizes a 24-bit sample held in an int32 to [-1, 1)
func Int24ToFloat(sample int32) float32 {
	return float32(sample) / (Max24Bit + 1)
}

// IntToFloat normalizes a sample of the given bit depth
func IntToFloat(sample int, bitDepth int) float32 {
	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}

// FloatToInt16 converts a normalized sample to 16-bit with clipping
func FloatToInt16(sample float32) int16 {
	v := ClampFloat(sample) * 32767
	return int16(v)
}

// ClampFloat clips a sample to [-1, 1]
func ClampFloat(sample float32) float32 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
