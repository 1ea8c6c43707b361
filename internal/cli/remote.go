// ABOUTME: Remote subcommand
// ABOUTME: Sends one command to a running player or lists players on the LAN
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noodler-audio/noodler/internal/discovery"
	"github.com/noodler-audio/noodler/internal/remote"
	"github.com/noodler-audio/noodler/pkg/musictime"
)

var (
	remoteDiscover bool
	remoteTimeout  time.Duration
	remoteName     string
)

var remoteCmd = &cobra.Command{
	Use:   "remote [addr] [command] [args...]",
	Short: "Control a running player",
	Long: `Send a command to a player started with --remote.

Commands:
  status                  print the player state
  play | stop | restart   transport
  seek <time>             move the cursor
  loop <start> [end]      set the loop window
  loop on | off           enable or disable the loop end
  rate <rate>             change the playback rate
  shift <delta>           move the loop window

Times accept the same forms as play flags, e.g. 1:02, 12.5s, 4 beats.`,
	Example: `  noodler remote --discover
  noodler remote 192.168.1.20:8927 loop 1:02 1:10
  noodler remote localhost:8927 rate 0.8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setupLogging(false); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(commandContext(cmd), remoteTimeout)
		defer cancel()

		if remoteDiscover {
			return discover(ctx, cmd.OutOrStdout())
		}
		if len(args) == 0 {
			return errors.New("give a player address or --discover")
		}
		return sendRemote(ctx, cmd.OutOrStdout(), args[0], args[1:])
	},
}

func init() {
	remoteCmd.Flags().BoolVar(&remoteDiscover, "discover", false, "browse the LAN for players")
	remoteCmd.Flags().DurationVar(&remoteTimeout, "timeout", remote.DefaultTimeout, "command timeout")
	remoteCmd.Flags().StringVar(&remoteName, "name", "noodler-remote", "client name shown in player logs")
	rootCmd.AddCommand(remoteCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func discover(ctx context.Context, w io.Writer) error {
	players, err := discovery.Browse(ctx, discovery.DefaultBrowseTimeout)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		fmt.Fprintln(w, "no players found")
		return nil
	}
	for _, p := range players {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Addr(), p.Version)
	}
	return nil
}

func sendRemote(ctx context.Context, w io.Writer, addr string, args []string) error {
	msgType, payload, err := parseRemoteCommand(args)
	if err != nil {
		return err
	}

	c, err := remote.Dial(ctx, addr, remoteName)
	if err != nil {
		return err
	}
	defer c.Close()

	state := c.State()
	if msgType != "" {
		if state, err = c.Do(ctx, msgType, payload); err != nil {
			return err
		}
	}
	printState(w, state)
	return nil
}

// parseRemoteCommand maps CLI words to a message; status has no message
func parseRemoteCommand(args []string) (string, interface{}, error) {
	if len(args) == 0 {
		return "", nil, nil
	}
	cmd, rest := args[0], args[1:]

	need := func(n int) error {
		if len(rest) < n {
			return fmt.Errorf("%s needs %d argument(s)", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "status":
		return "", nil, nil
	case remote.TypePlay, remote.TypeStop, remote.TypeRestart:
		return cmd, nil, nil
	case remote.TypeSeek:
		if err := need(1); err != nil {
			return "", nil, err
		}
		return cmd, remote.SeekCommand{Position: strings.Join(rest, " ")}, nil
	case remote.TypeShift:
		if err := need(1); err != nil {
			return "", nil, err
		}
		return cmd, remote.ShiftCommand{Delta: strings.Join(rest, " ")}, nil
	case remote.TypeRate:
		if err := need(1); err != nil {
			return "", nil, err
		}
		rate, err := strconv.ParseFloat(rest[0], 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid rate %q", rest[0])
		}
		return cmd, remote.RateCommand{Rate: rate}, nil
	case remote.TypeLoop:
		if err := need(1); err != nil {
			return "", nil, err
		}
		switch rest[0] {
		case "on", "off":
			enabled := rest[0] == "on"
			return cmd, remote.LoopCommand{Enabled: &enabled}, nil
		}
		loop := remote.LoopCommand{Start: rest[0]}
		if len(rest) > 1 {
			loop.End = rest[1]
		}
		return cmd, loop, nil
	default:
		return "", nil, fmt.Errorf("unknown remote command %q", cmd)
	}
}

func printState(w io.Writer, s remote.PlayerState) {
	state := "stopped"
	if s.Playing {
		state = "playing"
	}
	end := "end"
	if s.HasLoopEnd {
		end = musictime.FormatTimestamp(s.LoopEnd)
	}
	fmt.Fprintf(w, "%s %s / %s  loop %s-%s  rate %.2fx  mode %s\n",
		state,
		musictime.FormatTimestamp(s.Position),
		musictime.FormatTimestamp(s.Duration),
		musictime.FormatTimestamp(s.LoopStart), end,
		s.Rate, s.Mode)
}
