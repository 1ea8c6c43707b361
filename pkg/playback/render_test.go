// ABOUTME: Tests for the render callback
// ABOUTME: Drives the renderer directly to check extraction, commands and cursor publication
package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renderFixture struct {
	state    *State
	queue    *CommandQueue
	renderer *Renderer
}

// newRenderFixture loads a ramp of the given length at 10Hz, so one frame
// is 0.1 musical seconds at rate 1
func newRenderFixture(t *testing.T, frames, channels int) *renderFixture {
	t.Helper()
	f := &renderFixture{state: NewState(), queue: NewCommandQueue(8)}
	f.state.Load(rampBuffer(frames, 10, channels), 1)
	f.renderer = NewRenderer(f.state, f.queue)
	f.renderer.configure(10, channels)
	return f
}

func (f *renderFixture) play(current float64) {
	f.queue.TryPush(PlayCommand(f.state.Snapshot().Loop, current))
}

func (f *renderFixture) render(frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	f.renderer.Render(out)
	return out
}

func TestRenderSilentUntilPlay(t *testing.T) {
	f := newRenderFixture(t, 20, 1)
	out := []float32{9, 9, 9}

	n := f.renderer.Render(out)

	assert.Equal(t, 3, n)
	assert.Equal(t, []float32{0, 0, 0}, out)
}

func TestRenderContiguous(t *testing.T) {
	f := newRenderFixture(t, 20, 1)
	f.play(0.3)

	assert.Equal(t, []float32{3, 4, 5, 6}, f.render(4, 1))
	assert.InDelta(t, 0.7, f.state.Cursor(), 1e-9)
	assert.Equal(t, []float32{7, 8}, f.render(2, 1))
	assert.InDelta(t, 0.9, f.state.Cursor(), 1e-9)
}

func TestRenderWrapsAtLoopEnd(t *testing.T) {
	f := newRenderFixture(t, 20, 1)
	f.state.SetLoopEnd(1.0)
	f.play(0.8)

	assert.Equal(t, []float32{8, 9, 0, 1, 2}, f.render(5, 1))
	assert.InDelta(t, 0.3, f.state.Cursor(), 1e-9)
}

func TestRenderStereoInterleaves(t *testing.T) {
	f := newRenderFixture(t, 20, 2)
	f.state.SetLoopEnd(1.0)
	f.play(0.8)

	assert.Equal(t, []float32{8, 1008, 9, 1009, 0, 1000}, f.render(3, 2))
}

func TestRenderFollowsLiveLoopShift(t *testing.T) {
	f := newRenderFixture(t, 40, 1)
	f.state.SetLoopEnd(1.0)
	f.play(0)
	f.render(3, 1)

	f.state.setPlaying(true)
	f.state.SetLoopStart(2.0)
	f.state.SetLoopEnd(3.0)

	assert.Equal(t, []float32{20, 21, 22}, f.render(3, 1), "cursor behind the moved window snaps to its start")
}

func TestRenderSeekWhilePlaying(t *testing.T) {
	f := newRenderFixture(t, 40, 1)
	f.play(0)
	f.state.setPlaying(true)
	f.render(2, 1)

	f.state.SetCursor(2.5)

	assert.Equal(t, []float32{25, 26}, f.render(2, 1))
}

func TestRenderStopSilences(t *testing.T) {
	f := newRenderFixture(t, 20, 1)
	f.play(0)
	f.render(2, 1)

	f.queue.TryPush(StopCommand())

	assert.Equal(t, []float32{0, 0}, f.render(2, 1))
	assert.InDelta(t, 0.2, f.state.Cursor(), 1e-9, "stop does not move the cursor")
}

func TestRenderRestartReturnsToLoopStart(t *testing.T) {
	f := newRenderFixture(t, 40, 1)
	f.state.SetLoopStart(1.0)
	f.state.SetLoopEnd(3.0)
	f.play(2.0)
	f.render(4, 1)

	f.queue.TryPush(RestartCommand())

	assert.Equal(t, []float32{10, 11}, f.render(2, 1))
}

func TestRenderCommandsDrainInOrder(t *testing.T) {
	f := newRenderFixture(t, 40, 1)
	f.play(1.0)
	f.queue.TryPush(StopCommand())
	f.play(2.0)

	assert.Equal(t, []float32{20, 21}, f.render(2, 1))
	assert.Zero(t, f.queue.Len())
}

func TestRenderExhaustedInput(t *testing.T) {
	f := newRenderFixture(t, 10, 1)
	f.state.ClearLoopEnd()
	f.play(0.7)

	out := f.render(5, 1)

	assert.Equal(t, []float32{7, 8, 9, 0, 0}, out)
	select {
	case <-f.renderer.Done():
	default:
		t.Fatal("expected end-of-input signal")
	}

	p := <-f.state.Updates()
	assert.True(t, p.Finished)
	assert.InDelta(t, 1.0, p.Timestamp, 1e-9)

	assert.Equal(t, []float32{0, 0}, f.render(2, 1), "renderer goes silent after finishing")
}

func TestRenderHonorsRate(t *testing.T) {
	f := newRenderFixture(t, 40, 1)
	// pretend the buffer is realized at half speed: 1 musical second is 20 frames
	f.state.Replace(f.state.Snapshot().Buffer, 0.5)
	f.play(0.5)

	assert.Equal(t, []float32{10, 11}, f.render(2, 1))
	assert.InDelta(t, 0.6, f.state.Cursor(), 1e-9)
}

func TestRenderFormatMismatchIsSilent(t *testing.T) {
	f := newRenderFixture(t, 20, 1)
	f.play(0)
	f.state.Load(rampBuffer(20, 10, 2), 1)

	out := []float32{5, 5, 5}
	f.renderer.Render(out)
	assert.Equal(t, []float32{0, 0, 0}, out)
}

func TestRenderHotSwapResetsToLoadedCursor(t *testing.T) {
	f := newRenderFixture(t, 20, 1)
	f.play(1.0)
	f.render(2, 1)

	f.state.Load(rampBuffer(30, 10, 1), 1)

	require.Equal(t, []float32{0, 1}, f.render(2, 1))
}

func TestRenderDoesNotAllocate(t *testing.T) {
	f := newRenderFixture(t, 4096, 2)
	f.state.SetLoopEnd(100)
	f.play(0)
	out := make([]float32, 512*2)

	allocs := testing.AllocsPerRun(200, func() {
		f.renderer.Render(out)
	})
	assert.Zero(t, allocs)
}
