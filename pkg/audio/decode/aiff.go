// ABOUTME: AIFF audio decoder
// ABOUTME: Decodes AIFF files with go-audio/aiff
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// ErrNotAiffFile is returned when the FORM/AIFF header is missing
var ErrNotAiffFile = errors.New("not a valid AIFF file")

// AIFF decodes Audio Interchange File Format audio
type AIFF struct{}

// Decode reads the full PCM payload
func (AIFF) Decode(r io.Reader) (*audio.Buffer, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing COMM chunk", ErrNotAiffFile)
	}

	chunk := &goaudio.IntBuffer{Data: make([]int, 4096*format.NumChannels), Format: format}
	var data []int
	for {
		n, err := dec.PCMBuffer(chunk)
		data = append(data, chunk.Data[:n]...)
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("aiff decode error: %w", err)
		}
	}

	return planarFromInts(data, format.NumChannels, format.SampleRate, int(dec.BitDepth)), nil
}
