// ABOUTME: Decoder interface definition and file dispatch
// ABOUTME: Whole-file decoders produce a playable planar float buffer
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// ErrUnsupportedFormat is returned for file types without a decoder
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder decodes a complete encoded stream into a buffer
type Decoder interface {
	Decode(r io.Reader) (*audio.Buffer, error)
}

// ForExtension returns the decoder for a file extension such as ".mp3"
func ForExtension(ext string) (Decoder, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return MP3{}, nil
	case ".flac":
		return FLAC{}, nil
	case ".wav", ".wave":
		return WAV{}, nil
	case ".aif", ".aiff":
		return AIFF{}, nil
	case ".ogg", ".oga":
		return Vorbis{}, nil
	case ".opus":
		return Opus{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DecodeFile decodes the file at path, choosing a decoder by extension.
// Files with more than two channels are folded down to mono.
func DecodeFile(path string) (*audio.Buffer, error) {
	dec, err := ForExtension(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	buf, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	buf = fit(buf)

	log.Info("Decoded audio file", "file", filepath.Base(path),
		"rate", buf.SampleRate, "channels", buf.NumChannels(), "duration", buf.Duration())
	return buf, nil
}

func fit(buf *audio.Buffer) *audio.Buffer {
	if buf.NumChannels() > audio.MaxChannels {
		return buf.Mono()
	}
	return buf
}

// readSeeker buffers r fully when it cannot seek
func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading audio data: %w", err)
	}
	return bytes.NewReader(data), nil
}

// planarFromInts converts interleaved integer samples of the given bit depth
func planarFromInts(data []int, channels, sampleRate, bitDepth int) *audio.Buffer {
	frames := len(data) / channels
	buf := audio.NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Channels[ch][i] = audio.IntToFloat(data[i*channels+ch], bitDepth)
		}
	}
	return buf
}
