// ABOUTME: Commands from the control path to the render path
// ABOUTME: Tagged command values and a lock-free single-producer single-consumer queue
package playback

import (
	"fmt"
	"sync/atomic"
)

// CommandKind tags a Command
type CommandKind uint8

const (
	CommandPlay CommandKind = iota + 1
	CommandStop
	CommandRestart
)

func (k CommandKind) String() string {
	switch k {
	case CommandPlay:
		return "play"
	case CommandStop:
		return "stop"
	case CommandRestart:
		return "restart"
	default:
		return fmt.Sprintf("CommandKind(%d)", k)
	}
}

// Command is a playback intent. Start, End, HasEnd and Current are only
// meaningful for CommandPlay.
type Command struct {
	Kind    CommandKind
	Start   float64
	End     float64
	HasEnd  bool
	Current float64
}

// PlayCommand builds a Play for the given window and cursor
func PlayCommand(w LoopWindow, current float64) Command {
	return Command{Kind: CommandPlay, Start: w.Start, End: w.End, HasEnd: w.HasEnd, Current: current}
}

// StopCommand builds a Stop
func StopCommand() Command { return Command{Kind: CommandStop} }

// RestartCommand builds a Restart
func RestartCommand() Command { return Command{Kind: CommandRestart} }

// DefaultQueueSize is the command queue capacity used when none is configured
const DefaultQueueSize = 64

// CommandQueue is a bounded FIFO with one producer and one consumer. Push
// and pop use atomic positions over a power-of-two ring; neither side
// blocks or locks.
//
// TryPush must only be called from the control goroutine and TryPop only
// from the render goroutine.
type CommandQueue struct {
	writePos atomic.Uint64
	_pad1    [56]byte
	readPos  atomic.Uint64
	_pad2    [56]byte

	buf  []Command
	mask uint64
}

// NewCommandQueue creates a queue with capacity rounded up to a power of two
func NewCommandQueue(minSize int) *CommandQueue {
	size := 1
	for size < minSize {
		size <<= 1
	}
	return &CommandQueue{
		buf:  make([]Command, size),
		mask: uint64(size - 1),
	}
}

// TryPush enqueues cmd. It returns false and drops the command when the
// queue is full.
func (q *CommandQueue) TryPush(cmd Command) bool {
	w := q.writePos.Load()
	r := q.readPos.Load()
	if w-r == uint64(len(q.buf)) {
		return false
	}
	q.buf[w&q.mask] = cmd
	q.writePos.Store(w + 1)
	return true
}

// TryPop dequeues the oldest command, if any
func (q *CommandQueue) TryPop() (Command, bool) {
	r := q.readPos.Load()
	w := q.writePos.Load()
	if r == w {
		return Command{}, false
	}
	cmd := q.buf[r&q.mask]
	q.readPos.Store(r + 1)
	return cmd, true
}

// Len returns the number of queued commands
func (q *CommandQueue) Len() int {
	return int(q.writePos.Load() - q.readPos.Load())
}

// Cap returns the queue capacity
func (q *CommandQueue) Cap() int {
	return len(q.buf)
}
