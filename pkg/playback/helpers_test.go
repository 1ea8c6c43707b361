// ABOUTME: Shared fixtures for playback tests
// ABOUTME: A manual output device that lets tests invoke the render callback directly
package playback

import (
	"errors"
	"sync"

	"github.com/noodler-audio/noodler/pkg/audio"
	"github.com/noodler-audio/noodler/pkg/audio/output"
)

type manualDevice struct {
	mu      sync.Mutex
	openErr error
	opens   int
	stream  *manualStream
}

func (d *manualDevice) Name() string { return "manual" }

func (d *manualDevice) Open(sampleRate, channels int, src output.Source) (output.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.stream = &manualStream{src: src, sampleRate: sampleRate, channels: channels}
	return d.stream, nil
}

func (d *manualDevice) current() *manualStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

type manualStream struct {
	mu         sync.Mutex
	src        output.Source
	sampleRate int
	channels   int
	closed     bool
	err        error
}

// render pulls frames from the source as the hardware would
func (s *manualStream) render(frames int) []float32 {
	out := make([]float32, frames*s.channels)
	s.src.Render(out)
	return out
}

func (s *manualStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *manualStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *manualStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *manualStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errNoDevice = errors.New("no such device")

// rampBuffer returns a buffer whose left channel sample i is i and right
// channel sample i is 1000+i
func rampBuffer(frames, sampleRate, channels int) *audio.Buffer {
	b := audio.NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		b.Channels[0][i] = float32(i)
		if channels > 1 {
			b.Channels[1][i] = float32(1000 + i)
		}
	}
	return b
}
