package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/service/client"
	"github.com/oshokin/home-security/internal/service/watcher"
	"github.com/oshokin/home-security/internal/version"
)

var (
	// configPath stores the configuration file path.
	configPath string
	// serverAddress overrides the control address from config.
	serverAddress string
	// pollInterval is the delay between status checks of the watch command.
	pollInterval = watcher.DefaultPollInterval

	// rootCmd represents the base command of the commander.
	rootCmd = &cobra.Command{
		Use:   "homesec-ctl",
		Short: "Control the home security controller.",
		Long: `Talks to the controller over its local gRPC control API.

Every call carries the caller identity (user@host) so the controller can log who did what.
The control address is loaded from the configuration file unless --server is given.`,
	}

	// sendCmd pushes one command line to the controller.
	sendCmd = &cobra.Command{
		Use:   "send <command> [args...]",
		Short: "Send a command and print the reply.",
		Long: `Sends one command to the controller, e.g. "set_alarm freq=880 duration=250" or "archive_logs before=2026-01-01".

The command is retried every second until the controller answers or the process is interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Run(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Command:       strings.Join(args, " "),
				Output:        cmd.OutOrStdout(),
			})
		},
	}

	// statusCmd prints the current status once.
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the controller status as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return client.Status(ctx, &client.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				Output:        cmd.OutOrStdout(),
			})
		},
	}

	// watchCmd polls the status and logs every transition.
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll the controller status and log changes.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return watcher.Run(ctx, &watcher.Options{
				ConfigPath:    configPath,
				ServerAddress: serverAddress,
				PollInterval:  pollInterval,
			})
		},
	}
)

// Execute runs the homesec-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Flags shared by every subcommand.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "a", "", "controller control address (overrides config)")

	watchCmd.Flags().DurationVarP(&pollInterval, "interval", "i", watcher.DefaultPollInterval, "delay between status checks")

	rootCmd.AddCommand(sendCmd, statusCmd, watchCmd)
}
