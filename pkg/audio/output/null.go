// ABOUTME: Headless audio output that discards rendered samples
// ABOUTME: Drives the Source from a ticker at the real-time cadence for servers and tests
package output

import (
	"sync"
	"time"
)

// DefaultPeriod is the render cadence of the Null device
const DefaultPeriod = 10 * time.Millisecond

// Null pulls from the Source on a timer and throws the audio away
type Null struct {
	Period time.Duration

	// Sink, when set, receives every rendered block. It runs on the render
	// goroutine and must not retain the slice.
	Sink func(samples []float32)
}

// NewNull creates a Null device
func NewNull() Device {
	return &Null{Period: DefaultPeriod}
}

func (n *Null) Name() string { return "null" }

// Open starts the render goroutine
func (n *Null) Open(sampleRate, channels int, src Source) (Stream, error) {
	period := n.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	frames := int(float64(sampleRate) * period.Seconds())
	if frames < 1 {
		frames = 1
	}

	s := &nullStream{done: make(chan struct{})}
	buf := make([]float32, frames*channels)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				fill(src, buf)
				if n.Sink != nil {
					n.Sink(buf)
				}
			}
		}
	}()
	return s, nil
}

type nullStream struct {
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (s *nullStream) Err() error { return nil }

// Close stops the render goroutine and waits for it to exit
func (s *nullStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func init() {
	Register("null", NewNull)
}
