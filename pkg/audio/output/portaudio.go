//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform callback output using PortAudio
package output

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudio plays through PortAudio's default output device
type PortAudio struct{}

// NewPortAudio creates a PortAudio device
func NewPortAudio() Device {
	return &PortAudio{}
}

func (p *PortAudio) Name() string { return "portaudio" }

// Open initializes PortAudio and starts a callback stream pulling from src
func (p *PortAudio) Open(sampleRate, channels int, src Source) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 0, func(out []float32) {
		fill(src, out)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}

	log.Info("Audio output initialized", "backend", "portaudio", "rate", sampleRate, "channels", channels)
	return &portAudioStream{stream: stream}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
	once   sync.Once
}

func (s *portAudioStream) Err() error { return nil }

func (s *portAudioStream) Close() error {
	var err error
	s.once.Do(func() {
		if err = s.stream.Stop(); err != nil {
			return
		}
		if err = s.stream.Close(); err != nil {
			return
		}
		err = portaudio.Terminate()
	})
	return err
}

func init() {
	Register("portaudio", NewPortAudio)
}
