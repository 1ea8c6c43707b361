// ABOUTME: Root cobra command and logging setup
// ABOUTME: Global flags select log level and the log file
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	logFile  string
	debug    bool

	// logCloser is the open log file, closed by Execute
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "noodler",
	Short: "Loop, slow down and practice along with recorded music",
	Long: `noodler plays an audio file on a loop so you can practice along with it.

Set a loop window, slow it down without changing pitch, nudge the loop
around a phrase, and control it all from the terminal or over the network.`,
	SilenceUsage: true,
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "shorthand for --log-level=debug")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "noodler.log", "log file path (empty for none)")
}

// setupLogging installs the default logger. With a TUI on screen, logs go
// only to the file; otherwise they are also written to stderr.
func setupLogging(useTUI bool) (*log.Logger, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	if debug {
		level = log.DebugLevel
	}

	var writers []io.Writer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		logCloser = f
		writers = append(writers, f)
	}
	if !useTUI || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	logger := log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	log.SetDefault(logger)
	return logger, nil
}
