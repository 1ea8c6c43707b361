// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo; the device callback renders straight from the Source
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"
)

// errDeviceStopped is reported when miniaudio stops a device we did not close
var errDeviceStopped = errors.New("device stopped unexpectedly")

// Malgo plays through miniaudio
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgo creates a Malgo device
func NewMalgo() Device {
	return &Malgo{}
}

func (m *Malgo) Name() string { return "malgo" }

// Open initializes and starts a playback device pulling from src
func (m *Malgo) Open(sampleRate, channels int, src Source) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	s := &malgoStream{
		channels: channels,
		src:      src,
		scratch:  make([]float32, 8192*channels),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			s.dataCallback(pOutputSample, frameCount)
		},
		Stop: func() {
			if !s.closing.Load() {
				s.err.set(errDeviceStopped)
			}
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	s.device = device

	log.Info("Audio output initialized", "backend", "malgo", "rate", sampleRate, "channels", channels)
	return s, nil
}

// Close releases the miniaudio context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.malgoCtx == nil {
		return nil
	}
	err := m.malgoCtx.Uninit()
	m.malgoCtx.Free()
	m.malgoCtx = nil
	return err
}

type malgoStream struct {
	device   *malgo.Device
	channels int
	src      Source
	scratch  []float32
	closing  atomic.Bool
	err      streamErr
	once     sync.Once
}

func (s *malgoStream) dataCallback(out []byte, frameCount uint32) {
	n := int(frameCount) * s.channels
	if n > len(s.scratch) {
		s.scratch = make([]float32, n)
	}
	samples := s.scratch[:n]
	fill(s.src, samples)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
}

func (s *malgoStream) Err() error {
	return s.err.get()
}

func (s *malgoStream) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		err = s.device.Stop()
		s.device.Uninit()
	})
	return err
}

func init() {
	Register("malgo", NewMalgo)
}
