// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Ogg Opus files through libopusfile via hraban/opus
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// OpusSampleRate is the rate libopus always decodes at
const OpusSampleRate = 48000

// ErrNotOpusFile is returned when no OpusHead packet is found
var ErrNotOpusFile = errors.New("not an Ogg Opus file")

// Opus decodes Ogg Opus audio
type Opus struct{}

// Decode reads the whole Ogg Opus stream
func (Opus) Decode(r io.Reader) (*audio.Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading opus data: %w", err)
	}
	channels, err := opusChannels(data)
	if err != nil {
		return nil, err
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}
	defer stream.Close()

	// 120ms is the largest Opus frame
	chunk := make([]float32, OpusSampleRate*120/1000*channels)
	var samples []float32
	for {
		n, err := stream.ReadFloat32(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		samples = append(samples, chunk[:n*channels]...)
	}
	return audio.FromInterleaved(samples, channels, OpusSampleRate), nil
}

// opusChannels reads the channel count from the OpusHead identification header
func opusChannels(data []byte) (int, error) {
	i := bytes.Index(data, []byte("OpusHead"))
	if i < 0 || i+9 >= len(data) {
		return 0, ErrNotOpusFile
	}
	channels := int(data[i+9])
	if channels < 1 {
		return 0, fmt.Errorf("%w: zero channels", ErrNotOpusFile)
	}
	return channels, nil
}
