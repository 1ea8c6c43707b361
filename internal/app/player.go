// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates decoding, playback, UI, remote control and discovery
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/noodler-audio/noodler/internal/discovery"
	"github.com/noodler-audio/noodler/internal/remote"
	"github.com/noodler-audio/noodler/internal/ui"
	"github.com/noodler-audio/noodler/internal/version"
	"github.com/noodler-audio/noodler/pkg/audio"
	"github.com/noodler-audio/noodler/pkg/audio/decode"
	"github.com/noodler-audio/noodler/pkg/audio/output"
	"github.com/noodler-audio/noodler/pkg/musictime"
	"github.com/noodler-audio/noodler/pkg/playback"
)

const (
	// DefaultToneLength is the length of the generated test tone
	DefaultToneLength = 30 * time.Second

	toneSampleRate = 48000
)

// ErrNoSource is returned when neither a file nor a tone is requested
var ErrNoSource = errors.New("no audio file given")

// Config holds player configuration
type Config struct {
	// File is decoded by extension, or as raw PCM when PCM is set
	File string
	PCM  *audio.Format

	// Tone plays a generated sine instead of a file
	Tone          bool
	ToneFrequency float64
	ToneLength    time.Duration

	Backend    string
	OutputRate int

	Rate      float64
	LoopStart string
	LoopEnd   string
	NoLoop    bool
	Meter     musictime.Meter
	Mode      string
	AutoPlay  bool

	RemoteAddr string
	Name       string
	MDNS       bool

	UseTUI bool
}

// Player represents the main player application
type Player struct {
	config Config
	device output.Device
	ctrl   *playback.Controller
	remote *remote.Server
	title  string
	logger *log.Logger
}

// New validates the configuration and builds the playback engine
func New(config Config, logger *log.Logger) (*Player, error) {
	if logger == nil {
		logger = log.Default()
	}
	if config.File == "" && !config.Tone {
		return nil, ErrNoSource
	}
	if config.Name == "" {
		config.Name = version.Product
	}

	device, err := output.New(config.Backend)
	if err != nil {
		return nil, err
	}

	ctrl := playback.NewController(playback.Config{
		Device:     device,
		OutputRate: config.OutputRate,
		Logger:     logger,
	})

	p := &Player{
		config: config,
		device: device,
		ctrl:   ctrl,
		logger: logger,
	}
	if config.RemoteAddr != "" {
		p.remote = remote.NewServer(remote.Config{
			Addr:   config.RemoteAddr,
			Name:   config.Name,
			Meter:  config.Meter,
			Logger: logger,
		}, ctrl)
	}
	return p, nil
}

// Controller exposes the playback controller
func (p *Player) Controller() *playback.Controller {
	return p.ctrl
}

// Prepare loads the source and applies the initial rate, loop and mode
func (p *Player) Prepare(ctx context.Context) error {
	buf, title, err := p.loadSource()
	if err != nil {
		return err
	}
	p.title = title

	if err := p.ctrl.Load(buf, 1); err != nil {
		return err
	}

	mode, err := playback.ParseMode(p.config.Mode)
	if err != nil {
		return err
	}
	p.ctrl.SetMode(mode)

	if err := p.applyLoop(); err != nil {
		return err
	}

	if rate := p.config.Rate; rate != 0 && rate != 1 {
		p.logger.Info("Stretching to initial rate", "rate", rate)
		if err := p.ctrl.SetRate(ctx, rate); err != nil {
			return fmt.Errorf("initial rate: %w", err)
		}
	}
	return nil
}

func (p *Player) loadSource() (*audio.Buffer, string, error) {
	if p.config.Tone {
		freq := p.config.ToneFrequency
		if freq <= 0 {
			freq = audio.DefaultToneFrequency
		}
		length := p.config.ToneLength
		if length <= 0 {
			length = DefaultToneLength
		}
		return audio.Tone(freq, length, toneSampleRate, 2), fmt.Sprintf("%.0f Hz tone", freq), nil
	}

	title := filepath.Base(p.config.File)
	if p.config.PCM != nil {
		dec, err := decode.NewPCM(*p.config.PCM)
		if err != nil {
			return nil, "", err
		}
		buf, err := decodeWith(dec, p.config.File)
		return buf, title, err
	}
	buf, err := decode.DecodeFile(p.config.File)
	return buf, title, err
}

// applyLoop parses loop bounds; the end is applied first so the start is not clamped by the old window
func (p *Player) applyLoop() error {
	if p.config.LoopEnd != "" {
		end, err := musictime.ParseDuration(p.config.LoopEnd, p.config.Meter)
		if err != nil {
			return fmt.Errorf("loop end: %w", err)
		}
		p.ctrl.SetLoopEnd(end)
	}
	if p.config.LoopStart != "" {
		start, err := musictime.ParseDuration(p.config.LoopStart, p.config.Meter)
		if err != nil {
			return fmt.Errorf("loop start: %w", err)
		}
		p.ctrl.SetLoopStart(start)
	}
	if p.config.NoLoop {
		p.ctrl.SetLoopEnabled(false)
	}
	return nil
}

// Run plays until the UI quits, ctx is cancelled, or headless playback ends
func (p *Player) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer p.ctrl.Stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.ctrl.Run(ctx)
	})

	if p.remote != nil {
		if err := p.remote.Listen(); err != nil {
			return err
		}
		g.Go(func() error {
			return p.remote.Serve(ctx)
		})
		if p.config.MDNS {
			err := discovery.Advertise(ctx, discovery.Config{
				Name:    p.config.Name,
				Port:    p.remote.Port(),
				Path:    remote.Path,
				ID:      p.remote.ID(),
				Version: version.Version,
			})
			if err != nil {
				p.logger.Warn("Failed to start mDNS advertisement", "err", err)
			}
		}
	}

	if p.config.AutoPlay {
		if err := p.ctrl.Play(); err != nil {
			cancel()
			g.Wait()
			return err
		}
	}

	g.Go(func() error {
		defer cancel()
		if p.config.UseTUI {
			return ui.Run(ctx, p.ctrl, p.title, p.ctrl.Errors())
		}
		return p.runHeadless(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runHeadless logs progress until playback ends or ctx is cancelled. With a
// remote attached, it keeps running after the end so clients can restart.
func (p *Player) runHeadless(ctx context.Context) error {
	p.logger.Info("Playing", "title", p.title, "device", p.device.Name())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-p.ctrl.Errors():
			if p.remote == nil {
				return err
			}
			p.logger.Error("Playback error", "err", err)
		case pos := <-p.ctrl.Updates():
			if !pos.Finished {
				continue
			}
			p.logger.Info("Reached end of audio", "at", musictime.FormatTimestamp(pos.Timestamp))
			if p.remote == nil {
				return nil
			}
		}
	}
}
