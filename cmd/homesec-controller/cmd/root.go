package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/service/controller"
	"github.com/oshokin/home-security/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where device settings are persisted.
	stateFile string
	// database path of the detection log store.
	database string

	// rootCmd represents the base command for running the controller.
	rootCmd = &cobra.Command{
		Use:   "homesec-controller [listen-address]",
		Short: "Run the home security controller.",
		Long: `Starts the controller that drives the buzzer and the warning lights.

Commands arrive on the MQTT command topic and through the local gRPC control API.
Status messages and device notifications are published back to the broker.
Listen address can be provided as argument to override config (e.g., 127.0.0.1:50061).
Device settings are persisted to a JSON file for recovery across restarts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &controller.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
				Database:      database,
			}

			return controller.Run(ctx, options)
		},
	}
)

// Execute runs the homesec-controller CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist device settings (overrides config)")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "path to the detection log database (overrides config)")
}
