// ABOUTME: Real-time render callback for the audio backend
// ABOUTME: Drains commands, reads one state snapshot, extracts a span and publishes the cursor
package playback

import (
	"github.com/noodler-audio/noodler/pkg/audio/span"
)

// Renderer fills output buffers from the playback state. Render runs on
// the backend's audio goroutine; every other field is owned by it.
type Renderer struct {
	state *State
	queue *CommandQueue
	done  chan struct{}

	// stream format, fixed while a stream is open
	sampleRate int
	channels   int

	active  bool
	frame   int
	seek    uint64
	seekTo  float64
	seeking bool
	restart bool
}

// NewRenderer creates a renderer reading from state and queue
func NewRenderer(state *State, queue *CommandQueue) *Renderer {
	return &Renderer{
		state: state,
		queue: queue,
		done:  make(chan struct{}, 1),
	}
}

// Done is signalled when playback runs off the end of the buffer
func (r *Renderer) Done() <-chan struct{} {
	return r.done
}

// configure sets the stream format. It must only be called while no
// stream is pulling from the renderer.
func (r *Renderer) configure(sampleRate, channels int) {
	r.sampleRate = sampleRate
	r.channels = channels
}

// clearDone discards a pending end-of-input signal
func (r *Renderer) clearDone() {
	select {
	case <-r.done:
	default:
	}
}

// Render writes interleaved samples into out and returns len(out).
// It never blocks, locks or allocates.
func (r *Renderer) Render(out []float32) int {
	r.drain()

	snap := r.state.Snapshot()
	if !r.active || !snap.Ready() || r.channels <= 0 ||
		snap.SampleRate != r.sampleRate || snap.Buffer.NumChannels() != r.channels {
		clear(out)
		return len(out)
	}

	rate, sr := snap.Rate, snap.SampleRate
	start := TimeToFrame(snap.Loop.Start, rate, sr)
	end := span.NoEnd
	if snap.Loop.HasEnd {
		end = TimeToFrame(snap.Loop.End, rate, sr)
	}

	switch {
	case r.restart:
		r.frame = start
		r.seek = snap.Seek
	case r.seeking:
		r.frame = TimeToFrame(r.seekTo, rate, sr)
		r.seek = snap.Seek
	case snap.Seek != r.seek:
		r.frame = TimeToFrame(snap.Cursor, rate, sr)
		r.seek = snap.Seek
	}
	r.restart, r.seeking = false, false

	// the window may have moved past the cursor while we were playing
	if r.frame < start {
		r.frame = start
	}

	frames := len(out) / r.channels
	n, next := span.ExtractInterleaved(out, snap.Buffer.Channels, start, end, r.frame, frames)
	clear(out[n*r.channels:])
	r.frame = next

	finished := end == span.NoEnd && n < frames
	r.state.publish(Position{Timestamp: FrameToTime(next, rate, sr), Finished: finished})
	if finished {
		r.active = false
		select {
		case r.done <- struct{}{}:
		default:
		}
	}
	return len(out)
}

func (r *Renderer) drain() {
	for {
		cmd, ok := r.queue.TryPop()
		if !ok {
			return
		}
		switch cmd.Kind {
		case CommandPlay:
			current := cmd.Current
			if current < cmd.Start {
				current = cmd.Start
			}
			r.active = true
			r.seeking = true
			r.restart = false
			r.seekTo = current
		case CommandStop:
			r.active = false
			r.seeking = false
			r.restart = false
		case CommandRestart:
			r.active = true
			r.seeking = false
			r.restart = true
		}
	}
}
