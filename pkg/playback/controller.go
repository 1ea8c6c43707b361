// ABOUTME: Control-side playback API used by the UI and remote surfaces
// ABOUTME: Turns play, stop, seek, loop and rate intents into state updates and commands
package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/noodler-audio/noodler/pkg/audio"
	"github.com/noodler-audio/noodler/pkg/audio/output"
	"github.com/noodler-audio/noodler/pkg/audio/resample"
	"github.com/noodler-audio/noodler/pkg/audio/stretch"
)

const (
	MinRate = 0.25
	MaxRate = 4.0
)

var (
	ErrNoBuffer         = errors.New("no audio loaded")
	ErrCommandQueueFull = errors.New("command queue full")
	ErrRateChange       = errors.New("rate change failed")
)

// Mode selects where Play starts from
type Mode int

const (
	// ModeContinue resumes from the cursor
	ModeContinue Mode = iota
	// ModeRestart always starts from the loop start
	ModeRestart
)

func (m Mode) String() string {
	if m == ModeRestart {
		return "restart"
	}
	return "continue"
}

// ParseMode accepts "continue" or "restart"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "continue", "":
		return ModeContinue, nil
	case "restart":
		return ModeRestart, nil
	}
	return ModeContinue, fmt.Errorf("unknown playback mode %q", s)
}

// Stretcher changes the duration of a buffer without changing its pitch
type Stretcher interface {
	Stretch(ctx context.Context, buf *audio.Buffer, factor float64) (*audio.Buffer, error)
}

// Config configures a Controller
type Config struct {
	Device output.Device

	// OutputRate resamples loaded buffers to this rate when set
	OutputRate int
	QueueSize  int
	Stretcher  Stretcher
	Logger     *log.Logger
}

// Controller is the non-real-time face of the playback engine. All methods
// are safe for concurrent use; Run must be running for end-of-input and
// device failures to be observed.
type Controller struct {
	mu sync.Mutex

	state    *State
	queue    *CommandQueue
	renderer *Renderer
	driver   *Driver

	stretcher  Stretcher
	outputRate int
	logger     *log.Logger

	// source is the buffer as loaded, before any rate change
	source     *audio.Buffer
	sourceRate float64
	generation uint64

	mode     Mode
	savedEnd float64
	hasSaved bool

	errs chan error
}

// NewController wires state, queue, renderer and driver together
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	st := cfg.Stretcher
	if st == nil {
		st = stretch.New()
	}

	state := NewState()
	queue := NewCommandQueue(size)
	renderer := NewRenderer(state, queue)

	return &Controller{
		state:      state,
		queue:      queue,
		renderer:   renderer,
		driver:     NewDriver(cfg.Device, renderer, logger),
		stretcher:  st,
		outputRate: cfg.OutputRate,
		logger:     logger,
		errs:       make(chan error, 1),
	}
}

// Run supervises the output stream until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.driver.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-c.driver.Events():
				c.handleEvent(ev)
			}
		}
	})
	return g.Wait()
}

func (c *Controller) handleEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a newer stream was opened after this one ended
	if current := c.driver.Stream(); ev.Stream != current || c.driver.Active() {
		c.logger.Debug("Ignoring event for old stream", "kind", ev.Kind, "stream", ev.Stream, "current", current)
		return
	}

	c.queue.TryPush(StopCommand())
	c.state.setPlaying(false)

	switch ev.Kind {
	case EventFinished:
		c.logger.Info("Playback reached end of track", "at", c.state.Cursor())
	case EventFailed:
		err := fmt.Errorf("output stream: %w", ev.Err)
		select {
		case c.errs <- err:
		default:
		}
	}
}

// Errors delivers device failures that stopped playback
func (c *Controller) Errors() <-chan error {
	return c.errs
}

// Updates delivers the latest published cursor position
func (c *Controller) Updates() <-chan Position {
	return c.state.Updates()
}

// Snapshot returns the current playback state
func (c *Controller) Snapshot() *Snapshot {
	return c.state.Snapshot()
}

// CurrentTimestamp is the latest known cursor in musical seconds
func (c *Controller) CurrentTimestamp() float64 {
	return c.state.Cursor()
}

// Playing reports whether an output stream is active
func (c *Controller) Playing() bool {
	return c.state.Playing()
}

// Duration is the loaded track length in musical seconds
func (c *Controller) Duration() float64 {
	return c.state.Snapshot().Duration()
}

// Mode returns the playback mode
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode selects the playback mode
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
}

// Load publishes a decoded buffer already realized at rate. The loop
// window resets to the whole track and the cursor to 0. Loading while
// playing keeps the stream when the format is unchanged.
func (c *Controller) Load(buf *audio.Buffer, rate float64) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		c.logger.Warn("Invalid rate on load, using 1.0", "rate", rate)
		rate = 1
	}
	if c.outputRate > 0 && buf.SampleRate != c.outputRate {
		c.logger.Debug("Resampling for output", "from", buf.SampleRate, "to", c.outputRate)
		buf = resample.Buffer(buf, c.outputRate)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Playing() {
		prev := c.state.Snapshot()
		if prev.SampleRate != buf.SampleRate || prev.Buffer.NumChannels() != buf.NumChannels() {
			c.stopLocked()
		}
	}

	c.source = buf
	c.sourceRate = rate
	c.generation++
	c.hasSaved = false
	snap := c.state.Load(buf, rate)

	c.logger.Info("Loaded audio",
		"channels", buf.NumChannels(), "rate", buf.SampleRate,
		"seconds", snap.Duration(), "playback_rate", rate)
	return nil
}

// SetLoopStart moves the loop start in musical seconds
func (c *Controller) SetLoopStart(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetLoopStart(t)
}

// SetLoopEnd moves the loop end in musical seconds. It also re-enables a
// disabled loop.
func (c *Controller) SetLoopEnd(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasSaved = false
	c.state.SetLoopEnd(t)
}

// SetCursor moves the cursor in musical seconds. While playing, playback
// jumps there on the next callback.
func (c *Controller) SetCursor(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetCursor(t)
}

// NudgeCursor moves the cursor by delta seconds. It is ignored while
// playing.
func (c *Controller) NudgeCursor(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Playing() {
		return
	}
	c.state.SetCursor(c.state.Snapshot().Cursor + delta)
}

// ShiftLoop moves the whole loop window by delta seconds, keeping its
// width and staying inside the track.
func (c *Controller) ShiftLoop(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Snapshot()
	w := snap.Loop
	duration := snap.Duration()

	if !w.HasEnd {
		w.Start = clampRange(w.Start+delta, 0, duration)
		c.state.SetLoop(w)
		return
	}
	width := w.Width()
	w.Start = clampRange(w.Start+delta, 0, math.Max(duration-width, 0))
	w.End = w.Start + width
	c.state.SetLoop(w)
}

// SetLoopEnabled closes or opens the loop. Disabling remembers the end so
// enabling again restores it.
func (c *Controller) SetLoopEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.state.Snapshot()
	if enabled == snap.Loop.HasEnd {
		return
	}
	if !enabled {
		c.savedEnd, c.hasSaved = snap.Loop.End, true
		c.state.ClearLoopEnd()
		return
	}
	end := snap.Duration()
	if c.hasSaved {
		end = c.savedEnd
	}
	c.hasSaved = false
	c.state.SetLoopEnd(end)
}

// LoopEnabled reports whether the loop window has an end
func (c *Controller) LoopEnabled() bool {
	return c.state.Snapshot().Loop.HasEnd
}

// Play opens the output stream and starts playback from the cursor, or
// from the loop start in ModeRestart. It does nothing when already playing.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(false)
}

func (c *Controller) playLocked(fromStart bool) error {
	if c.streamingLocked() {
		return nil
	}
	if c.state.Playing() {
		// the stream ended on its own and Run has not caught up yet
		c.state.setPlaying(false)
	}
	snap := c.state.Snapshot()
	if !snap.Ready() {
		return ErrNoBuffer
	}

	cursor := snap.Cursor
	switch {
	case fromStart, c.mode == ModeRestart:
		cursor = snap.Loop.Start
	case !snap.Loop.HasEnd && cursor >= snap.Duration():
		cursor = snap.Loop.Start
	case cursor < snap.Loop.Start:
		cursor = snap.Loop.Start
	}
	if cursor != snap.Cursor {
		c.state.SetCursor(cursor)
	}

	if err := c.driver.Start(snap.SampleRate, snap.Buffer.NumChannels()); err != nil {
		c.logger.Error("Cannot start playback", "err", err)
		return err
	}
	if !c.queue.TryPush(PlayCommand(snap.Loop, cursor)) {
		c.driver.Stop()
		return ErrCommandQueueFull
	}
	c.state.setPlaying(true)
	c.logger.Debug("Playing", "from", cursor, "loop_start", snap.Loop.Start, "loop_end", snap.Loop.End, "loop", snap.Loop.HasEnd)
	return nil
}

// Stop closes the output stream. It does nothing when not playing.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	if !c.state.Playing() {
		return nil
	}
	if !c.queue.TryPush(StopCommand()) {
		c.logger.Warn("Command queue full, closing stream without stop command")
	}
	err := c.driver.Stop()
	c.state.setPlaying(false)
	c.logger.Debug("Stopped", "at", c.state.Cursor())
	return err
}

// TogglePlay plays when stopped and stops when playing
func (c *Controller) TogglePlay() error {
	if c.Playing() {
		return c.Stop()
	}
	return c.Play()
}

// Restart replays from the loop start. When stopped it starts playback.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streamingLocked() {
		return c.playLocked(true)
	}
	if !c.queue.TryPush(RestartCommand()) {
		return ErrCommandQueueFull
	}
	return nil
}

// Back returns to the loop start: while playing it restarts, otherwise it
// only moves the cursor.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streamingLocked() {
		if !c.queue.TryPush(RestartCommand()) {
			return ErrCommandQueueFull
		}
		return nil
	}
	if c.state.Playing() {
		c.state.setPlaying(false)
	}
	c.state.SetCursor(c.state.Snapshot().Loop.Start)
	return nil
}

// streamingLocked reports whether the renderer is playing into an open
// stream. Playing can briefly stay set after the driver closed a stream
// that ran out of input.
func (c *Controller) streamingLocked() bool {
	return c.state.Playing() && c.driver.Active()
}

// Rate returns the current playback rate
func (c *Controller) Rate() float64 {
	return c.state.Snapshot().Rate
}

// SetRate realizes the loaded track at a new playback rate by time
// stretching and swaps it in. Out of range rates are clamped. On failure
// the previous buffer and rate stay in effect.
func (c *Controller) SetRate(ctx context.Context, rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: invalid rate %v", ErrRateChange, rate)
	}
	rate = clampRange(rate, MinRate, MaxRate)

	c.mu.Lock()
	source, sourceRate, gen := c.source, c.sourceRate, c.generation
	current := c.state.Snapshot().Rate
	c.mu.Unlock()

	if source == nil {
		return ErrNoBuffer
	}
	if rate == current {
		return nil
	}

	buf := source
	if rate != sourceRate {
		var err error
		buf, err = c.stretcher.Stretch(ctx, source, sourceRate/rate)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRateChange, err)
		}
		if err := buf.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrRateChange, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return fmt.Errorf("%w: superseded by a newer load or rate change", ErrRateChange)
	}
	c.generation++
	c.state.Replace(buf, rate)
	c.logger.Info("Playback rate changed", "rate", rate)
	return nil
}
