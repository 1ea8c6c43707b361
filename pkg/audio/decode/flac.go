// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frame by frame with mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// FLAC decodes Free Lossless Audio Codec streams
type FLAC struct{}

// Decode reads every frame of the stream
func (FLAC) Decode(r io.Reader) (*audio.Buffer, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create flac decoder: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	buf := &audio.Buffer{
		Channels:   make([][]float32, channels),
		SampleRate: int(stream.Info.SampleRate),
	}
	if n := stream.Info.NSamples; n > 0 {
		for ch := range buf.Channels {
			buf.Channels[ch] = make([]float32, 0, n)
		}
	}

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac decode error: %w", err)
		}
		for ch := 0; ch < channels; ch++ {
			for _, s := range frame.Subframes[ch].Samples {
				buf.Channels[ch] = append(buf.Channels[ch], audio.IntToFloat(int(s), bitDepth))
			}
		}
	}
	return buf, nil
}
