// ABOUTME: WAV audio decoder
// ABOUTME: Decodes integer PCM WAV files with go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// ErrNotWavFile is returned when the RIFF/WAVE header is missing
var ErrNotWavFile = errors.New("not a valid WAV file")

// WAV decodes RIFF/WAVE PCM audio
type WAV struct{}

// Decode reads the full PCM payload
func (WAV) Decode(r io.Reader) (*audio.Buffer, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode error: %w", err)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing format chunk", ErrNotWavFile)
	}

	return planarFromInts(pcm.Data, pcm.Format.NumChannels, pcm.Format.SampleRate, int(dec.BitDepth)), nil
}
