// ABOUTME: Oto-based audio output implementation
// ABOUTME: Pull-model float32 playback where oto's player reads straight from the Source
package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// DefaultOtoBufferSize is the oto context buffer, trading latency for underrun safety
const DefaultOtoBufferSize = 40 * time.Millisecond

// Oto plays through ebitengine/oto. Oto allows one context per process, so
// the first Open fixes the output format for the lifetime of the device.
type Oto struct {
	BufferSize time.Duration

	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	channels   int
}

// NewOto creates an Oto device
func NewOto() Device {
	return &Oto{BufferSize: DefaultOtoBufferSize}
}

func (o *Oto) Name() string { return "oto" }

// Open starts a player pulling from src
func (o *Oto) Open(sampleRate, channels int, src Source) (Stream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   o.BufferSize,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = sampleRate
		o.channels = channels
		log.Info("Audio output initialized", "backend", "oto", "rate", sampleRate, "channels", channels)
	} else if o.sampleRate != sampleRate || o.channels != channels {
		return nil, fmt.Errorf("oto context is %dHz/%dch and cannot be reinitialized for %dHz/%dch",
			o.sampleRate, o.channels, sampleRate, channels)
	}

	if err := o.otoCtx.Resume(); err != nil {
		return nil, fmt.Errorf("failed to resume oto context: %w", err)
	}

	r := &otoReader{src: src, scratch: make([]float32, 4096)}
	player := o.otoCtx.NewPlayer(r)
	player.Play()

	return &otoStream{player: player}, nil
}

// otoReader adapts a Source to the io.Reader oto pulls from
type otoReader struct {
	src     Source
	scratch []float32
}

func (r *otoReader) Read(p []byte) (int, error) {
	n := len(p) / 4
	if len(r.scratch) < n {
		r.scratch = make([]float32, n)
	}
	samples := r.scratch[:n]
	fill(r.src, samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return n * 4, nil
}

type otoStream struct {
	mu     sync.Mutex
	player *oto.Player
}

func (s *otoStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	return s.player.Err()
}

func (s *otoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	s.player.Pause()
	err := s.player.Close()
	s.player = nil
	return err
}

func init() {
	Register("oto", NewOto)
}
