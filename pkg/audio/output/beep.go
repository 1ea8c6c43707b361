// ABOUTME: Beep speaker audio output implementation
// ABOUTME: Wraps the Source in a beep.Streamer played through beep's speaker package
package output

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// DefaultBeepBuffer is the speaker buffer length
const DefaultBeepBuffer = 50 * time.Millisecond

// Beep plays through the gopxl/beep speaker. The speaker is process-wide,
// so its sample rate is fixed by the first Open.
type Beep struct {
	BufferSize time.Duration

	mu         sync.Mutex
	sampleRate beep.SampleRate
}

// NewBeep creates a Beep device
func NewBeep() Device {
	return &Beep{BufferSize: DefaultBeepBuffer}
}

func (b *Beep) Name() string { return "beep" }

// Open starts streaming src through the speaker
func (b *Beep) Open(sampleRate, channels int, src Source) (Stream, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("beep speaker supports 1 or 2 channels, got %d", channels)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sr := beep.SampleRate(sampleRate)
	if b.sampleRate == 0 {
		if err := speaker.Init(sr, sr.N(b.BufferSize)); err != nil {
			return nil, fmt.Errorf("failed to initialize speaker: %w", err)
		}
		b.sampleRate = sr
		log.Info("Audio output initialized", "backend", "beep", "rate", sampleRate, "channels", channels)
	} else if b.sampleRate != sr {
		return nil, fmt.Errorf("speaker runs at %dHz and cannot switch to %dHz", int(b.sampleRate), sampleRate)
	}

	s := &beepStreamer{
		src:      src,
		channels: channels,
		scratch:  make([]float32, sr.N(b.BufferSize)*channels*2),
	}
	speaker.Play(s)
	return s, nil
}

// beepStreamer adapts a Source to beep.Streamer
type beepStreamer struct {
	src      Source
	channels int
	scratch  []float32
	closed   atomic.Bool
}

func (s *beepStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.closed.Load() {
		return 0, false
	}
	n := len(samples) * s.channels
	if n > len(s.scratch) {
		s.scratch = make([]float32, n)
	}
	buf := s.scratch[:n]
	fill(s.src, buf)

	for i := range samples {
		if s.channels == 1 {
			v := float64(buf[i])
			samples[i] = [2]float64{v, v}
			continue
		}
		samples[i] = [2]float64{float64(buf[i*2]), float64(buf[i*2+1])}
	}
	return len(samples), true
}

func (s *beepStreamer) Err() error { return nil }

func (s *beepStreamer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	// the speaker drops a streamer once it reports !ok; Clear makes it immediate
	speaker.Clear()
	return nil
}

func init() {
	Register("beep", NewBeep)
}
