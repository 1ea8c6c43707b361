// ABOUTME: Output stream state machine for the renderer
// ABOUTME: Opens and closes device streams and watches them for end of input and failures
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/noodler-audio/noodler/pkg/audio/output"
)

// ErrDeviceOpen wraps failures to open an output stream
var ErrDeviceOpen = errors.New("failed to open output stream")

// DefaultHealthInterval is how often Run polls the stream for errors
const DefaultHealthInterval = 100 * time.Millisecond

// EventKind tags a driver Event
type EventKind int

const (
	// EventFinished means the renderer ran out of input and the stream was closed
	EventFinished EventKind = iota + 1
	// EventFailed means the stream reported an error and was closed
	EventFailed
)

// Event reports a stream transition the control path did not request.
// Stream identifies the stream the event belongs to.
type Event struct {
	Kind   EventKind
	Stream uint64
	Err    error
}

// Driver owns the output stream. Idle has no stream; Active has one
// pulling from the renderer.
type Driver struct {
	device   output.Device
	renderer *Renderer
	logger   *log.Logger
	interval time.Duration

	mu         sync.Mutex
	stream     output.Stream
	streamID   uint64
	sampleRate int
	channels   int

	events chan Event
}

// NewDriver creates an idle driver
func NewDriver(device output.Device, renderer *Renderer, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{
		device:   device,
		renderer: renderer,
		logger:   logger,
		interval: DefaultHealthInterval,
		events:   make(chan Event, 4),
	}
}

// Events delivers unrequested transitions to Idle
func (d *Driver) Events() <-chan Event {
	return d.events
}

// Active reports whether a stream is open
func (d *Driver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

// Stream returns the ID of the most recently opened stream, whether or not
// it is still open. IDs start at 1.
func (d *Driver) Stream() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streamID
}

// Start opens a stream in the given format. An open stream in the same
// format is reused; a different format is closed and reopened. On error
// the driver is left Idle.
func (d *Driver) Start(sampleRate, channels int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream != nil {
		if d.sampleRate == sampleRate && d.channels == channels {
			return nil
		}
		d.logger.Info("Output format changed, reopening stream",
			"from_rate", d.sampleRate, "from_channels", d.channels,
			"to_rate", sampleRate, "to_channels", channels)
		d.closeLocked()
	}

	d.renderer.configure(sampleRate, channels)
	d.renderer.clearDone()

	stream, err := d.device.Open(sampleRate, channels, d.renderer)
	if err != nil {
		return fmt.Errorf("%w on %s: %w", ErrDeviceOpen, d.device.Name(), err)
	}

	d.stream = stream
	d.streamID++
	d.sampleRate = sampleRate
	d.channels = channels
	d.logger.Debug("Output stream opened", "backend", d.device.Name(), "stream", d.streamID, "rate", sampleRate, "channels", channels)
	return nil
}

// Stop closes the stream if one is open. Calling it while Idle does nothing.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Driver) closeLocked() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	d.renderer.clearDone()
	d.logger.Debug("Output stream closed", "backend", d.device.Name())
	if err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

// Run supervises the stream until ctx is cancelled. It closes the stream
// when the renderer runs out of input or the backend reports an error, and
// reports either on Events.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := d.Stop(); err != nil {
				d.logger.Warn("Closing stream on shutdown", "err", err)
			}
			return nil

		case <-d.renderer.Done():
			d.mu.Lock()
			if d.stream != nil {
				d.closeLocked()
				d.emit(Event{Kind: EventFinished, Stream: d.streamID})
			}
			d.mu.Unlock()

		case <-ticker.C:
			d.mu.Lock()
			if d.stream != nil {
				if err := d.stream.Err(); err != nil {
					d.logger.Error("Output stream failed", "backend", d.device.Name(), "err", err)
					d.closeLocked()
					d.emit(Event{Kind: EventFailed, Stream: d.streamID, Err: err})
				}
			}
			d.mu.Unlock()
		}
	}
}

func (d *Driver) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.logger.Warn("Dropping driver event", "kind", ev.Kind)
	}
}
