// ABOUTME: Tests for the output stream state machine
// ABOUTME: Covers open failures, format changes and supervision shutdown
package playback

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodler-audio/noodler/pkg/audio/output"
)

func newTestDriver(dev output.Device) *Driver {
	r := NewRenderer(NewState(), NewCommandQueue(4))
	return NewDriver(dev, r, log.New(io.Discard))
}

func TestDriverStartStop(t *testing.T) {
	dev := &manualDevice{}
	d := newTestDriver(dev)
	assert.False(t, d.Active())

	require.NoError(t, d.Start(48000, 2))
	assert.True(t, d.Active())

	require.NoError(t, d.Stop())
	assert.False(t, d.Active())
	assert.True(t, dev.current().isClosed())

	require.NoError(t, d.Stop(), "stopping an idle driver is a no-op")
}

func TestDriverReusesStreamForSameFormat(t *testing.T) {
	dev := &manualDevice{}
	d := newTestDriver(dev)

	require.NoError(t, d.Start(48000, 2))
	require.NoError(t, d.Start(48000, 2))
	assert.Equal(t, 1, dev.opens)

	first := dev.current()
	require.NoError(t, d.Start(44100, 1))
	assert.Equal(t, 2, dev.opens)
	assert.True(t, first.isClosed())
	assert.Equal(t, 44100, dev.current().sampleRate)
}

func TestDriverOpenFailureStaysIdle(t *testing.T) {
	dev := &manualDevice{openErr: errNoDevice}
	d := newTestDriver(dev)

	err := d.Start(48000, 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceOpen)
	assert.Contains(t, err.Error(), "manual")
	assert.False(t, d.Active())
}

func TestDriverRunClosesOnCancel(t *testing.T) {
	dev := &manualDevice{}
	d := newTestDriver(dev)
	require.NoError(t, d.Start(8000, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, d.Active())
}

func TestDriverWithNullDevice(t *testing.T) {
	state := NewState()
	state.Load(rampBuffer(100000, 1000, 1), 1)
	queue := NewCommandQueue(4)
	r := NewRenderer(state, queue)
	d := NewDriver(&output.Null{Period: 2 * time.Millisecond}, r, log.New(io.Discard))

	require.NoError(t, d.Start(1000, 1))
	queue.TryPush(PlayCommand(state.Snapshot().Loop, 0))

	require.Eventually(t, func() bool { return state.Cursor() > 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Stop())
}

func TestDriverStreamIDs(t *testing.T) {
	dev := &manualDevice{}
	d := newTestDriver(dev)
	assert.Zero(t, d.Stream())

	require.NoError(t, d.Start(48000, 2))
	require.NoError(t, d.Start(48000, 2))
	assert.Equal(t, uint64(1), d.Stream(), "a reused stream keeps its ID")

	require.NoError(t, d.Stop())
	assert.Equal(t, uint64(1), d.Stream(), "a closed stream keeps its ID until the next open")

	require.NoError(t, d.Start(48000, 2))
	assert.Equal(t, uint64(2), d.Stream())
}

func TestDriverEventsCarryStreamID(t *testing.T) {
	dev := &manualDevice{}
	d := newTestDriver(dev)
	require.NoError(t, d.Start(8000, 1))
	require.NoError(t, d.Stop())
	require.NoError(t, d.Start(8000, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.renderer.done <- struct{}{}

	select {
	case ev := <-d.Events():
		assert.Equal(t, EventFinished, ev.Kind)
		assert.Equal(t, uint64(2), ev.Stream)
	case <-time.After(time.Second):
		t.Fatal("expected finished event")
	}
	assert.False(t, d.Active())
}
