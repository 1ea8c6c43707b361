// ABOUTME: Authoritative playback state shared by the control and render paths
// ABOUTME: Immutable snapshots published atomically plus an atomically published cursor
package playback

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/noodler-audio/noodler/pkg/audio"
)

// LoopWindow is a region of musical time in seconds.
// HasEnd false means playback runs to the end of the buffer.
type LoopWindow struct {
	Start  float64
	End    float64
	HasEnd bool
}

// Width returns End-Start, or 0 for an open window
func (w LoopWindow) Width() float64 {
	if !w.HasEnd {
		return 0
	}
	return w.End - w.Start
}

// Snapshot is one coherent, immutable view of the playback state. The
// render path loads exactly one per callback.
type Snapshot struct {
	Buffer     *audio.Buffer
	SampleRate int
	Rate       float64
	Loop       LoopWindow

	// Cursor is the control-side cursor as of publication. The render path
	// adopts it only when Seek changes.
	Cursor float64
	Seek   uint64
}

// Ready reports whether a playable buffer is loaded
func (s *Snapshot) Ready() bool {
	return s != nil && s.Buffer != nil && s.Buffer.Frames() > 0 && s.SampleRate > 0 && s.Rate > 0
}

// Duration is the buffer length in musical seconds
func (s *Snapshot) Duration() float64 {
	if s == nil || s.Buffer == nil {
		return 0
	}
	return FrameToTime(s.Buffer.Frames(), s.Rate, s.SampleRate)
}

// Position is a cursor update sent from the render path.
// Finished is set when playback ran off the end of the buffer.
type Position struct {
	Timestamp float64
	Finished  bool
}

// State holds the playback state. Control-side writers are serialized by
// a mutex the render path never touches; the render path only performs
// atomic loads and stores and non-blocking channel operations.
type State struct {
	mu      sync.Mutex
	snap    atomic.Pointer[Snapshot]
	cursor  atomic.Uint64
	playing atomic.Bool
	updates chan Position
}

// NewState creates an empty state with no buffer loaded
func NewState() *State {
	s := &State{updates: make(chan Position, 1)}
	s.snap.Store(&Snapshot{Rate: 1})
	return s
}

// Snapshot returns the current snapshot. Safe from any goroutine.
func (s *State) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Cursor returns the most recently published cursor in musical seconds
func (s *State) Cursor() float64 {
	return math.Float64frombits(s.cursor.Load())
}

// Playing reports whether an output stream is active
func (s *State) Playing() bool {
	return s.playing.Load()
}

// Updates delivers the latest cursor position. Only the newest unread
// value is kept.
func (s *State) Updates() <-chan Position {
	return s.updates
}

// Load replaces buffer, sample rate and rate as one bundle, resets the
// loop window to the whole buffer and moves the cursor to 0.
func (s *State) Load(buf *audio.Buffer, rate float64) *Snapshot {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		rate = 1
	}
	return s.update(func(next *Snapshot) {
		next.Buffer = buf
		next.SampleRate = buf.SampleRate
		next.Rate = rate
		next.Loop = LoopWindow{Start: 0, End: next.Duration(), HasEnd: true}
		next.Cursor = 0
		next.Seek++
	}, true)
}

// Replace swaps in a buffer realized at a different rate. The loop window
// and cursor keep their musical positions.
func (s *State) Replace(buf *audio.Buffer, rate float64) *Snapshot {
	return s.update(func(next *Snapshot) {
		cursor := next.Cursor
		if s.playing.Load() {
			cursor = s.Cursor()
		}
		next.Buffer = buf
		next.SampleRate = buf.SampleRate
		next.Rate = rate
		next.Cursor = cursor
		next.Seek++
	}, true)
}

// SetLoopStart moves the loop start, raising the end if needed
func (s *State) SetLoopStart(t float64) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loop.Start = t
	}, false)
}

// SetLoopEnd moves the loop end. An end before the start is clamped up to it.
func (s *State) SetLoopEnd(t float64) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loop.End = t
		next.Loop.HasEnd = true
	}, false)
}

// ClearLoopEnd opens the window so playback runs to the end of the buffer
func (s *State) ClearLoopEnd() *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loop.End = 0
		next.Loop.HasEnd = false
	}, false)
}

// SetLoop replaces the whole window
func (s *State) SetLoop(w LoopWindow) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Loop = w
	}, false)
}

// SetCursor moves the cursor. While playing this is a seek that the render
// path picks up on its next callback.
func (s *State) SetCursor(t float64) *Snapshot {
	return s.update(func(next *Snapshot) {
		next.Cursor = t
		next.Seek++
	}, true)
}

// setPlaying flips cursor ownership. Going idle adopts the last cursor the
// render path published, clamped into the current window.
func (s *State) setPlaying(playing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playing.Store(playing)
	if playing {
		return
	}
	next := *s.snap.Load()
	next.Cursor = clampCursor(clampRange(s.Cursor(), 0, next.Duration()), next.Loop)
	s.storeCursor(next.Cursor)
	s.snap.Store(&next)
}

// update publishes a modified copy of the current snapshot. The window is
// always re-clamped. The cursor is re-clamped when the control path owns it
// or when the mutation moves it explicitly; otherwise only the published
// cursor is pulled into the new window and the render path keeps its frame.
func (s *State) update(fn func(next *Snapshot), movesCursor bool) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.snap.Load()
	fn(&next)
	next.Loop = clampWindow(next.Loop, next.Duration())

	switch {
	case movesCursor || !s.playing.Load():
		next.Cursor = clampCursor(clampRange(next.Cursor, 0, next.Duration()), next.Loop)
		s.storeCursor(next.Cursor)
	default:
		s.storeCursor(clampCursor(clampRange(s.Cursor(), 0, next.Duration()), next.Loop))
	}

	s.snap.Store(&next)
	return &next
}

// publish is called from the render path
func (s *State) publish(p Position) {
	s.storeCursor(p.Timestamp)
	select {
	case s.updates <- p:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- p:
		default:
		}
	}
}

func (s *State) storeCursor(t float64) {
	s.cursor.Store(math.Float64bits(t))
}

func clampWindow(w LoopWindow, duration float64) LoopWindow {
	w.Start = clampRange(w.Start, 0, duration)
	if !w.HasEnd {
		return w
	}
	w.End = clampRange(w.End, 0, duration)
	if w.End < w.Start {
		w.End = w.Start
	}
	return w
}

// clampCursor keeps a cursor inside the window. A cursor behind the start
// snaps to the end of the window, not its start; an open window snaps to
// the start.
func clampCursor(c float64, w LoopWindow) float64 {
	if c < w.Start {
		if w.HasEnd {
			return w.End
		}
		return w.Start
	}
	if w.HasEnd && c > w.End {
		return w.End
	}
	return c
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
