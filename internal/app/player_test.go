// ABOUTME: Tests for player application orchestration
// ABOUTME: Drives the full stack headless on the null output device
package app

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noodler-audio/noodler/pkg/audio"
	"github.com/noodler-audio/noodler/pkg/audio/output"
	"github.com/noodler-audio/noodler/pkg/musictime"
	"github.com/noodler-audio/noodler/pkg/playback"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func toneConfig() Config {
	return Config{
		Tone:       true,
		ToneLength: 4 * time.Second,
		Backend:    "null",
	}
}

func TestNewRequiresSource(t *testing.T) {
	_, err := New(Config{Backend: "null"}, quietLogger())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := toneConfig()
	cfg.Backend = "gramophone"
	_, err := New(cfg, quietLogger())
	assert.ErrorIs(t, err, output.ErrUnknownBackend)
}

func TestPrepareAppliesLoopAndMode(t *testing.T) {
	cfg := toneConfig()
	cfg.LoopStart = "1 beat"
	cfg.LoopEnd = "0:03"
	cfg.Meter = musictime.Meter{BPM: 60, BeatsPerBar: 4}
	cfg.Mode = "restart"

	p, err := New(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(context.Background()))

	snap := p.Controller().Snapshot()
	assert.InDelta(t, 4.0, snap.Duration(), 1e-6)
	assert.Equal(t, playback.LoopWindow{Start: 1, End: 3, HasEnd: true}, snap.Loop)
	assert.Equal(t, playback.ModeRestart, p.Controller().Mode())
	assert.Equal(t, "440 Hz tone", p.title)
}

func TestPrepareRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"loop start", func(c *Config) { c.LoopStart = "soon" }},
		{"loop end", func(c *Config) { c.LoopEnd = "2 bars" }},
		{"mode", func(c *Config) { c.Mode = "shuffle" }},
		{"missing file", func(c *Config) { c.Tone = false; c.File = filepath.Join(t.TempDir(), "gone.wav") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := toneConfig()
			tt.edit(&cfg)
			p, err := New(cfg, quietLogger())
			require.NoError(t, err)
			assert.Error(t, p.Prepare(context.Background()))
		})
	}
}

func TestPrepareInitialRate(t *testing.T) {
	cfg := toneConfig()
	cfg.Rate = 0.5

	p, err := New(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(context.Background()))

	assert.Equal(t, 0.5, p.Controller().Rate())
	assert.InDelta(t, 4.0, p.Controller().Duration(), 0.05)
}

func TestPrepareRawPCM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.raw")
	data := make([]byte, 8000*2)
	for i := 0; i < 8000; i++ {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(i%100)))
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := New(Config{
		File:    path,
		PCM:     &audio.Format{Codec: "pcm", SampleRate: 8000, Channels: 1, BitDepth: 16},
		Backend: "null",
	}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(context.Background()))

	assert.InDelta(t, 1.0, p.Controller().Duration(), 1e-6)
	assert.Equal(t, "take.raw", p.title)
}

func TestHeadlessRunEndsWithAudio(t *testing.T) {
	cfg := toneConfig()
	cfg.ToneLength = 200 * time.Millisecond
	cfg.NoLoop = true
	cfg.AutoPlay = true

	p, err := New(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.NoError(t, ctx.Err(), "run should end on its own")
	assert.False(t, p.Controller().Playing())
}

func TestHeadlessRunStopsOnCancel(t *testing.T) {
	cfg := toneConfig()
	cfg.AutoPlay = true

	p, err := New(cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, p.Prepare(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.False(t, p.Controller().Playing())
}
