// ABOUTME: Audio output interface definition
// ABOUTME: Pull-model device, stream and source interfaces shared by every backend
package output

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Source produces interleaved float32 samples on demand. Render is called
// from the backend's audio goroutine and must not block. It returns the
// number of samples written; the backend zero-fills anything after that.
type Source interface {
	Render(out []float32) int
}

// Stream is an open output stream pulling from a Source
type Stream interface {
	// Err reports a failure observed since the stream started, or nil
	Err() error

	// Close stops pulling from the Source and releases the device
	Close() error
}

// Device opens streams on an audio backend
type Device interface {
	Name() string
	Open(sampleRate, channels int, src Source) (Stream, error)
}

// ErrUnknownBackend is returned by New for unregistered backend names
var ErrUnknownBackend = errors.New("unknown output backend")

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Device{}
)

// Register makes a backend available to New
func Register(name string, factory func() Device) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New creates the named backend
func New(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}
	return factory(), nil
}

// Backends lists registered backend names
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fill calls src.Render and zero-fills whatever it left unwritten
func fill(src Source, out []float32) {
	n := src.Render(out)
	if n < 0 {
		n = 0
	}
	if n < len(out) {
		clear(out[n:])
	}
}

// streamErr records the first failure a backend reports
type streamErr struct {
	mu  sync.Mutex
	err error
}

func (e *streamErr) set(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

func (e *streamErr) get() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}
