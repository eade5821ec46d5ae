package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/service/ingestor"
	"github.com/oshokin/home-security/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// database path of the detection log store.
	database string

	// rootCmd represents the base command for writing detection alerts.
	rootCmd = &cobra.Command{
		Use:   "homesec-ingestor",
		Short: "Store detection alerts in the active log.",
		Long: `Subscribes to the alerts topic and inserts every valid detection into the active log.

Both JSON alerts and the legacy "Alert! Detected: ..." text form are accepted.
The words start and stop on the command topic resume and pause ingestion.
When Kafka brokers are configured, stored detections are forwarded to Kafka
and malformed alerts are written to the dead letter topic.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return ingestor.Run(ctx, &ingestor.Options{
				ConfigPath: configPath,
				Database:   database,
			})
		},
	}
)

// Execute runs the homesec-ingestor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&database, "database", "d", "", "path to the detection log database (overrides config)")
}
