// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 through go-mp3, which always yields 16-bit stereo
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// MP3 decodes MPEG-1/2 layer III audio
type MP3 struct{}

// Decode reads the whole MP3 stream
func (MP3) Decode(r io.Reader) (*audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	// go-mp3 output is interleaved stereo int16 little-endian
	frames := len(pcm) / 4
	buf := audio.NewBuffer(2, frames, decoder.SampleRate())
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		r := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		buf.Channels[0][i] = audio.Int16ToFloat(l)
		buf.Channels[1][i] = audio.Int16ToFloat(r)
	}
	return buf, nil
}
