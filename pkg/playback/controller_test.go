// ABOUTME: Tests for the playback controller
// ABOUTME: Exercises play/stop/restart semantics, device failures, rate changes and loop editing
package playback

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodler-audio/noodler/pkg/audio"
)

type fakeStretcher struct {
	err     error
	factors []float64
}

func (f *fakeStretcher) Stretch(ctx context.Context, buf *audio.Buffer, factor float64) (*audio.Buffer, error) {
	f.factors = append(f.factors, factor)
	if f.err != nil {
		return nil, f.err
	}
	frames := int(float64(buf.Frames()) * factor)
	return rampBuffer(frames, buf.SampleRate, buf.NumChannels()), nil
}

func newTestController(t *testing.T) (*Controller, *manualDevice, *fakeStretcher) {
	t.Helper()
	dev := &manualDevice{}
	st := &fakeStretcher{}
	c := NewController(Config{
		Device:    dev,
		Stretcher: st,
		Logger:    log.New(io.Discard),
	})
	require.NoError(t, c.Load(rampBuffer(1000, 10, 2), 1))
	return c, dev, st
}

func runController(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestLoadValidates(t *testing.T) {
	c := NewController(Config{Device: &manualDevice{}, Logger: log.New(io.Discard)})

	err := c.Load(audio.NewBuffer(3, 10, 10), 1)
	assert.ErrorIs(t, err, audio.ErrChannelCount)

	assert.ErrorIs(t, c.Play(), ErrNoBuffer)
	assert.False(t, c.Playing())
}

func TestLoadResamplesToOutputRate(t *testing.T) {
	c := NewController(Config{Device: &manualDevice{}, OutputRate: 20, Logger: log.New(io.Discard)})
	require.NoError(t, c.Load(rampBuffer(100, 10, 1), 1))

	snap := c.Snapshot()
	assert.Equal(t, 20, snap.SampleRate)
	assert.InDelta(t, 10.0, snap.Duration(), 0.1)
}

func TestPlayOpensStream(t *testing.T) {
	c, dev, _ := newTestController(t)

	require.NoError(t, c.Play())

	assert.True(t, c.Playing())
	require.NotNil(t, dev.current())
	assert.Equal(t, 10, dev.current().sampleRate)
	assert.Equal(t, 2, dev.current().channels)
	assert.Equal(t, 1, c.queue.Len())
}

func TestPlayWhilePlayingIsNoop(t *testing.T) {
	c, dev, _ := newTestController(t)
	require.NoError(t, c.Play())
	before := c.Snapshot()

	require.NoError(t, c.Play())

	assert.Equal(t, 1, c.queue.Len(), "no additional command")
	assert.Equal(t, 1, dev.opens)
	assert.Same(t, before, c.Snapshot())
}

func TestStopTwiceEqualsOnce(t *testing.T) {
	c, dev, _ := newTestController(t)
	require.NoError(t, c.Play())
	stream := dev.current()

	require.NoError(t, c.Stop())
	snap := c.Snapshot()
	queued := c.queue.Len()

	require.NoError(t, c.Stop())

	assert.False(t, c.Playing())
	assert.True(t, stream.isClosed())
	assert.Same(t, snap, c.Snapshot())
	assert.Equal(t, queued, c.queue.Len())
}

func TestStopWhenIdleIsNoop(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Stop())
	assert.Zero(t, c.queue.Len())
}

func TestPlayDeviceFailure(t *testing.T) {
	c, dev, _ := newTestController(t)
	dev.openErr = errNoDevice

	err := c.Play()

	assert.ErrorIs(t, err, ErrDeviceOpen)
	assert.ErrorIs(t, err, errNoDevice)
	assert.False(t, c.Playing())
	assert.Zero(t, c.queue.Len())
}

func TestPlaybackPublishesCursor(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.SetCursor(5)
	require.NoError(t, c.Play())

	out := dev.current().render(10)

	assert.Equal(t, float32(50), out[0])
	assert.Equal(t, float32(1050), out[1])
	assert.InDelta(t, 6.0, c.CurrentTimestamp(), 1e-9)

	p := <-c.Updates()
	assert.InDelta(t, 6.0, p.Timestamp, 1e-9)
}

func TestStopKeepsRenderedCursor(t *testing.T) {
	c, dev, _ := newTestController(t)
	require.NoError(t, c.Play())
	dev.current().render(25)
	require.NoError(t, c.Stop())

	assert.InDelta(t, 2.5, c.CurrentTimestamp(), 1e-9)

	// idle: the controller owns the cursor again
	c.SetCursor(7)
	assert.Equal(t, 7.0, c.CurrentTimestamp())
	require.NoError(t, c.Play())
	assert.Equal(t, float32(70), dev.current().render(1)[0])
}

func TestRestartWhilePlaying(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.SetLoopStart(2)
	c.SetLoopEnd(4)
	c.SetCursor(3)
	require.NoError(t, c.Play())
	dev.current().render(5)

	require.NoError(t, c.Restart())

	assert.True(t, c.Playing())
	assert.Equal(t, float32(20), dev.current().render(1)[0])
}

func TestRestartWhenIdlePlaysFromLoopStart(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.SetLoopStart(2)
	c.SetLoopEnd(4)
	c.SetCursor(3)

	require.NoError(t, c.Restart())

	assert.True(t, c.Playing())
	assert.Equal(t, float32(20), dev.current().render(1)[0])
}

func TestModeRestartAlwaysStartsAtLoopStart(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.SetMode(ModeRestart)
	c.SetLoopStart(1)
	c.SetCursor(3)

	require.NoError(t, c.Play())
	assert.Equal(t, float32(10), dev.current().render(1)[0])
}

func TestBack(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.SetLoopStart(1)
	c.SetCursor(5)

	require.NoError(t, c.Back())
	assert.Equal(t, 1.0, c.CurrentTimestamp())

	c.SetCursor(5)
	require.NoError(t, c.Play())
	dev.current().render(3)
	require.NoError(t, c.Back())
	assert.Equal(t, float32(10), dev.current().render(1)[0])
}

func TestNudgeCursorIgnoredWhilePlaying(t *testing.T) {
	c, _, _ := newTestController(t)
	c.NudgeCursor(0.1)
	assert.InDelta(t, 0.1, c.CurrentTimestamp(), 1e-9)

	require.NoError(t, c.Play())
	c.NudgeCursor(5)
	assert.InDelta(t, 0.1, c.CurrentTimestamp(), 1e-9)
}

func TestShiftLoopKeepsWidth(t *testing.T) {
	tests := []struct {
		name               string
		start, end, delta  float64
		wantStart, wantEnd float64
	}{
		{"forward", 10, 20, 5, 15, 25},
		{"backward", 10, 20, -0.1, 9.9, 19.9},
		{"clamped at track end", 90, 98, 5, 92, 100},
		{"clamped at zero", 2, 6, -5, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestController(t)
			c.SetLoopStart(tt.start)
			c.SetLoopEnd(tt.end)

			c.ShiftLoop(tt.delta)

			w := c.Snapshot().Loop
			assert.InDelta(t, tt.wantStart, w.Start, 1e-9)
			assert.InDelta(t, tt.wantEnd, w.End, 1e-9)
		})
	}
}

func TestLoopToggleRestoresEnd(t *testing.T) {
	c, _, _ := newTestController(t)
	c.SetLoopEnd(30)

	c.SetLoopEnabled(false)
	assert.False(t, c.LoopEnabled())

	c.SetLoopEnabled(true)
	assert.True(t, c.LoopEnabled())
	assert.Equal(t, 30.0, c.Snapshot().Loop.End)
}

func TestLoopInvariantThroughController(t *testing.T) {
	c, _, _ := newTestController(t)

	c.SetLoopStart(10)
	c.SetLoopEnd(20)
	c.SetCursor(5)

	assert.Equal(t, 20.0, c.CurrentTimestamp())
}

func TestSetRateStretchesAndKeepsWindow(t *testing.T) {
	c, _, st := newTestController(t)
	c.SetLoopStart(10)
	c.SetLoopEnd(20)
	c.SetCursor(15)

	require.NoError(t, c.SetRate(context.Background(), 0.5))

	require.Len(t, st.factors, 1)
	assert.Equal(t, 2.0, st.factors[0])
	snap := c.Snapshot()
	assert.Equal(t, 0.5, snap.Rate)
	assert.Equal(t, 2000, snap.Buffer.Frames())
	assert.Equal(t, 10.0, snap.Loop.Start)
	assert.Equal(t, 20.0, snap.Loop.End)
	assert.Equal(t, 15.0, c.CurrentTimestamp())
	assert.Equal(t, 0.5, c.Rate())
}

func TestSetRateBackToSourceSkipsStretch(t *testing.T) {
	c, _, st := newTestController(t)
	require.NoError(t, c.SetRate(context.Background(), 0.5))
	require.NoError(t, c.SetRate(context.Background(), 1))

	assert.Len(t, st.factors, 1)
	assert.Equal(t, 1000, c.Snapshot().Buffer.Frames())
}

func TestSetRateClampsInvalidValues(t *testing.T) {
	c, _, st := newTestController(t)

	require.NoError(t, c.SetRate(context.Background(), -1))
	assert.Equal(t, MinRate, c.Rate())

	require.NoError(t, c.SetRate(context.Background(), 10))
	assert.Equal(t, MaxRate, c.Rate())
	assert.Len(t, st.factors, 2)
}

func TestSetRateFailureKeepsPreviousState(t *testing.T) {
	c, _, st := newTestController(t)
	before := c.Snapshot()
	st.err = errors.New("boom")

	err := c.SetRate(context.Background(), 0.75)

	assert.ErrorIs(t, err, ErrRateChange)
	assert.Same(t, before, c.Snapshot())

	err = c.SetRate(context.Background(), math.NaN())
	assert.ErrorIs(t, err, ErrRateChange)
	assert.Same(t, before, c.Snapshot())
}

func TestSetRateWhilePlayingKeepsStream(t *testing.T) {
	c, dev, _ := newTestController(t)
	require.NoError(t, c.Play())
	dev.current().render(30)

	require.NoError(t, c.SetRate(context.Background(), 0.5))

	assert.True(t, c.Playing())
	assert.Equal(t, 1, dev.opens)
	// musical 3.0s at half speed is frame 60 of the stretched ramp
	assert.Equal(t, float32(60), dev.current().render(1)[0])
}

func TestLoadDifferentFormatWhilePlayingStops(t *testing.T) {
	c, dev, _ := newTestController(t)
	require.NoError(t, c.Play())
	stream := dev.current()

	require.NoError(t, c.Load(rampBuffer(100, 20, 2), 1))

	assert.False(t, c.Playing())
	assert.True(t, stream.isClosed())
}

func TestEndOfInputReturnsToIdle(t *testing.T) {
	c, dev, _ := newTestController(t)
	runController(t, c)
	c.SetLoopEnabled(false)
	c.SetCursor(99.5)
	require.NoError(t, c.Play())

	dev.current().render(10)

	require.Eventually(t, func() bool { return !c.Playing() }, time.Second, time.Millisecond)
	assert.True(t, dev.current().isClosed())
	assert.Equal(t, 100.0, c.CurrentTimestamp())

	// playing again from the end starts over at the loop start
	require.NoError(t, c.Play())
	assert.Equal(t, float32(0), dev.current().render(1)[0])
}

func TestDeviceFailureMidStream(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.driver.interval = time.Millisecond
	runController(t, c)
	require.NoError(t, c.Play())

	dev.current().fail(errNoDevice)

	select {
	case err := <-c.Errors():
		assert.ErrorIs(t, err, errNoDevice)
	case <-time.After(time.Second):
		t.Fatal("expected device error")
	}
	assert.False(t, c.Playing())
	assert.True(t, dev.current().isClosed())
}

func TestStopAfterWindowMovedPastCursor(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Play())

	c.SetLoopStart(50)
	c.SetLoopEnd(60)
	require.NoError(t, c.Stop())

	snap := c.Snapshot()
	assert.False(t, c.Playing())
	assert.GreaterOrEqual(t, c.CurrentTimestamp(), snap.Loop.Start)
	assert.LessOrEqual(t, c.CurrentTimestamp(), snap.Loop.End)
	assert.Equal(t, c.CurrentTimestamp(), snap.Cursor)
}

func TestEventForOldStreamIgnored(t *testing.T) {
	c, dev, _ := newTestController(t)
	require.NoError(t, c.Play())
	old := Event{Kind: EventFinished, Stream: c.driver.Stream()}

	require.NoError(t, c.Stop())
	require.NoError(t, c.Play())
	c.handleEvent(old)

	assert.True(t, c.Playing())
	assert.True(t, c.driver.Active())
	assert.False(t, dev.current().isClosed())
}

func TestPlayBeforeEndOfInputHandled(t *testing.T) {
	c, dev, _ := newTestController(t)
	c.SetLoopEnabled(false)
	c.SetCursor(99.5)
	require.NoError(t, c.Play())
	dev.current().render(10)

	// the driver closed the stream but the event is still queued
	require.NoError(t, c.driver.Stop())
	ended := Event{Kind: EventFinished, Stream: c.driver.Stream()}
	assert.True(t, c.Playing())

	require.NoError(t, c.Play())
	assert.Equal(t, 2, dev.opens)
	assert.True(t, c.driver.Active())

	c.handleEvent(ended)
	assert.True(t, c.Playing())
	assert.Equal(t, float32(0), dev.current().render(1)[0], "replays from the loop start")
}

func TestEventForCurrentStreamStops(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Play())
	require.NoError(t, c.driver.Stop())

	c.handleEvent(Event{Kind: EventFailed, Stream: c.driver.Stream(), Err: errNoDevice})

	assert.False(t, c.Playing())
	select {
	case err := <-c.Errors():
		assert.ErrorIs(t, err, errNoDevice)
	default:
		t.Fatal("expected device error")
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("restart")
	require.NoError(t, err)
	assert.Equal(t, ModeRestart, m)
	assert.Equal(t, "restart", m.String())

	m, err = ParseMode("continue")
	require.NoError(t, err)
	assert.Equal(t, ModeContinue, m)

	_, err = ParseMode("shuffle")
	assert.Error(t, err)
}
