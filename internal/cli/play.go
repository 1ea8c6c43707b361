// ABOUTME: Play subcommand
// ABOUTME: Maps flags onto the player application and runs it
package cli

import (
	"context"
	"errors"
	"time"

	"github.com/caarlos0/ctrlc"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/noodler-audio/noodler/internal/app"
	"github.com/noodler-audio/noodler/pkg/audio"
	"github.com/noodler-audio/noodler/pkg/musictime"
)

type playFlags struct {
	tone       bool
	toneFreq   float64
	toneLength time.Duration

	backend    string
	outputRate int

	rate        float64
	start       string
	end         string
	noLoop      bool
	bpm         float64
	beatsPerBar int
	mode        string
	paused      bool

	remoteAddr string
	name       string
	mdns       bool
	noTUI      bool

	pcmRate     int
	pcmChannels int
	pcmBits     int
}

var playOpts playFlags

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play an audio file on a loop",
	Example: `  noodler play song.mp3 --start 1:02 --end 1:10 --rate 0.75
  noodler play song.flac --bpm 96 --start "8 bars" --end "12 bars"
  noodler play --tone --no-tui --backend null`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := playOpts.config(args)
		if err != nil {
			return err
		}
		logger, err := setupLogging(cfg.UseTUI)
		if err != nil {
			return err
		}
		return runPlayer(cmd.Context(), cfg, logger)
	},
}

func init() {
	f := playCmd.Flags()
	f.BoolVar(&playOpts.tone, "tone", false, "play a generated sine tone instead of a file")
	f.Float64Var(&playOpts.toneFreq, "tone-freq", audio.DefaultToneFrequency, "tone frequency in Hz")
	f.DurationVar(&playOpts.toneLength, "tone-length", app.DefaultToneLength, "tone length")

	f.StringVarP(&playOpts.backend, "backend", "b", "oto", "audio output backend")
	f.IntVar(&playOpts.outputRate, "output-rate", 0, "resample audio to this rate before playback (0 keeps the file rate)")

	f.Float64VarP(&playOpts.rate, "rate", "r", 1, "playback rate (0.25 to 4)")
	f.StringVarP(&playOpts.start, "start", "s", "", "loop start (e.g. 1:02, 12.5s, 4 beats)")
	f.StringVarP(&playOpts.end, "end", "e", "", "loop end")
	f.BoolVar(&playOpts.noLoop, "no-loop", false, "play through to the end instead of looping")
	f.Float64Var(&playOpts.bpm, "bpm", 0, "tempo for beat and bar units")
	f.IntVar(&playOpts.beatsPerBar, "beats-per-bar", 4, "beats per bar for bar units")
	f.StringVarP(&playOpts.mode, "mode", "m", "continue", "play mode: continue or restart")
	f.BoolVar(&playOpts.paused, "paused", false, "start paused")

	f.StringVar(&playOpts.remoteAddr, "remote", "", "listen for remote control on this address (e.g. :8927)")
	f.StringVar(&playOpts.name, "name", "", "player name for remote clients and mDNS")
	f.BoolVar(&playOpts.mdns, "mdns", false, "advertise the remote control over mDNS")
	f.BoolVar(&playOpts.noTUI, "no-tui", false, "disable the terminal UI and stream logs")

	f.IntVar(&playOpts.pcmRate, "pcm-rate", 0, "treat the file as raw PCM at this sample rate")
	f.IntVar(&playOpts.pcmChannels, "pcm-channels", 2, "raw PCM channel count")
	f.IntVar(&playOpts.pcmBits, "pcm-bits", 16, "raw PCM bit depth (16 or 24)")

	rootCmd.AddCommand(playCmd)
}

// config validates flags and builds the application config
func (o playFlags) config(args []string) (app.Config, error) {
	cfg := app.Config{
		Tone:          o.tone,
		ToneFrequency: o.toneFreq,
		ToneLength:    o.toneLength,
		Backend:       o.backend,
		OutputRate:    o.outputRate,
		Rate:          o.rate,
		LoopStart:     o.start,
		LoopEnd:       o.end,
		NoLoop:        o.noLoop,
		Meter:         musictime.Meter{BPM: o.bpm, BeatsPerBar: o.beatsPerBar},
		Mode:          o.mode,
		AutoPlay:      !o.paused,
		RemoteAddr:    o.remoteAddr,
		Name:          o.name,
		MDNS:          o.mdns,
		UseTUI:        !o.noTUI,
	}
	if len(args) == 1 {
		cfg.File = args[0]
	}

	switch {
	case cfg.File == "" && !cfg.Tone:
		return cfg, errors.New("give an audio file or --tone")
	case cfg.File != "" && cfg.Tone:
		return cfg, errors.New("--tone cannot be combined with a file")
	case cfg.MDNS && cfg.RemoteAddr == "":
		return cfg, errors.New("--mdns needs --remote")
	case cfg.NoLoop && cfg.LoopEnd != "":
		return cfg, errors.New("--no-loop cannot be combined with --end")
	}

	if o.pcmRate > 0 {
		cfg.PCM = &audio.Format{
			Codec:      "pcm",
			SampleRate: o.pcmRate,
			Channels:   o.pcmChannels,
			BitDepth:   o.pcmBits,
		}
	}
	return cfg, nil
}

func runPlayer(ctx context.Context, cfg app.Config, logger *log.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := p.Prepare(ctx); err != nil {
		return err
	}

	// The TUI reads ctrl+c as a key itself
	if cfg.UseTUI {
		return p.Run(ctx)
	}

	var runErr error
	finished := make(chan struct{})
	err = ctrlc.Default.Run(ctx, func() error {
		defer close(finished)
		runErr = p.Run(ctx)
		return runErr
	})
	cancel()
	<-finished

	if runErr != nil {
		return runErr
	}
	if err != nil {
		logger.Info("Stopped", "reason", err)
	}
	return nil
}
