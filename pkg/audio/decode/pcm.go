// ABOUTME: Raw PCM audio decoder
// ABOUTME: Decodes headerless 16-bit and 24-bit little-endian PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// PCM decodes headerless interleaved PCM in the given format
type PCM struct {
	Format audio.Format
}

// NewPCM creates a PCM decoder
func NewPCM(format audio.Format) (*PCM, error) {
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid pcm format: %d channels at %dHz", format.Channels, format.SampleRate)
	}
	return &PCM{Format: format}, nil
}

// Decode reads all bytes and converts them to float samples
func (d *PCM) Decode(r io.Reader) (*audio.Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading pcm data: %w", err)
	}

	var samples []float32
	if d.Format.BitDepth == 24 {
		samples = make([]float32, len(data)/3)
		for i := range samples {
			b := [3]byte{data[i*3], data[i*3+1], data[i*3+2]}
			samples[i] = audio.Int24ToFloat(audio.SampleFrom24Bit(b))
		}
	} else {
		samples = make([]float32, len(data)/2)
		for i := range samples {
			samples[i] = audio.Int16ToFloat(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
	}
	return audio.FromInterleaved(samples, d.Format.Channels, d.Format.SampleRate), nil
}
