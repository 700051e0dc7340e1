// stalink keeps an embedded device's Wi-Fi station link up.
//
// The daemon wires the connectivity state machine, the topic mediator and its
// accounts (network, storage, telemetry, metrics, presence, console, api) on
// top of a radio driver, then runs until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor STALINK_CONFIG is set.
// A missing file at this path falls back to the built-in defaults.
const defaultConfigPath = "configs/stalink.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := runOptions{}

	root := &cobra.Command{
		Use:   "stalink",
		Short: "Wi-Fi station link daemon",
		Long: `stalink keeps a device's Wi-Fi station connected: it joins the stored
network when a scan finds it, reconnects silently after unexpected drops and
accepts new credentials over the air during a provisioning window.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "configuration file (default $STALINK_CONFIG or "+defaultConfigPath+")")
	root.Flags().BoolVar(&opts.console, "console", false, "attach the diagnostic console to this terminal")

	root.AddCommand(newRunCommand(&opts))
	root.AddCommand(newConsoleCommand(&opts))
	root.AddCommand(newVersionCommand())
	return root
}

func newRunCommand(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *opts)
		},
	}
	cmd.Flags().BoolVar(&opts.console, "console", false, "attach the diagnostic console to this terminal")
	return cmd
}

func newConsoleCommand(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the daemon with the diagnostic console attached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := *opts
			o.console = true
			return run(cmd.Context(), o)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stalink %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
