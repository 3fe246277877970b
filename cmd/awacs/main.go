// Command awacs runs the situational-awareness and kill attribution core
// behind the host's line protocol.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// module defs - set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "awacs",
	Short:         "Line-of-sight, contact reporting and kill attribution for persistent campaigns",
	Version:       fmt.Sprintf("%s (%s)", Version, BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve host commands from stdin, replies on stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, configDir)
		if err != nil {
			return err
		}
		runErr := a.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), true)
		return joinClose(runErr, a)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Feed a recorded command log through the engines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		defer f.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, configDir)
		if err != nil {
			return err
		}
		runErr := a.run(ctx, f, cmd.OutOrStdout(), false)
		return joinClose(runErr, a)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory holding awacs.cfg.json")
	rootCmd.AddCommand(runCmd, replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "awacs:", err)
		os.Exit(1)
	}
}
