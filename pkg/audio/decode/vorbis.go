// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Vorbis with jfreymuth/oggvorbis, which yields float samples directly
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// Vorbis decodes Ogg Vorbis audio
type Vorbis struct{}

// Decode reads the whole Ogg stream
func (Vorbis) Decode(r io.Reader) (*audio.Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis decode error: %w", err)
	}
	return audio.FromInterleaved(samples, format.Channels, format.SampleRate), nil
}
