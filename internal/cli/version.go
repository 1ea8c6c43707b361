// ABOUTME: Version subcommand
// ABOUTME: Prints product identity
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noodler-audio/noodler/internal/version"
	"github.com/noodler-audio/noodler/pkg/audio/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.UserAgent())
		fmt.Fprintf(cmd.OutOrStdout(), "output backends: %v\n", output.Backends())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
