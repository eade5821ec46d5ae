package ingestor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/home-security/internal/api/mqtt"
	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/kafka"
	"github.com/oshokin/home-security/internal/logger"
	"github.com/oshokin/home-security/internal/repository/logstore"
)

// Options controls the ingestor process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Database overrides the path of the detection log database.
	Database string
}

// clientIDSuffix keeps the ingestor session apart from the controller's.
const clientIDSuffix = "-ingestor"

// ErrNoBroker is returned when the settings disable MQTT.
var ErrNoBroker = errors.New("ingestor requires a broker url")

// Run subscribes to the alerts and command topics and blocks until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "homesec-ingestor")

	// Load configuration first to get broker and store settings.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	if cfg.Broker.URL == "" {
		return ErrNoBroker
	}

	store, err := logstore.Open(cfg.Database)
	if err != nil {
		return err
	}

	defer func() {
		_ = store.Close()
	}()

	var forwarder Forwarder

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka)

		defer func() {
			if closeErr := producer.Close(); closeErr != nil {
				logger.ErrorKV(ctx, "Failed to close Kafka producer", "error", closeErr)
			}
		}()

		forwarder = producer
	}

	svc := newService(store, forwarder, cfg.Timeout)

	brokerSettings := cfg.Broker
	brokerSettings.ClientID += clientIDSuffix
	broker := mqtt.New(brokerSettings)

	if err = broker.Subscribe(ctx, cfg.Topics.Alerts, svc.HandleAlert(ctx)); err != nil {
		return err
	}

	if err = broker.Subscribe(ctx, cfg.Topics.Commands, svc.HandleCommand(ctx)); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Ingestor started",
		"broker", cfg.Broker.URL,
		"alerts_topic", cfg.Topics.Alerts,
		"database", cfg.Database,
		"kafka", len(cfg.Kafka.Brokers) > 0,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if connectErr := broker.Connect(groupCtx); connectErr != nil && groupCtx.Err() == nil {
			return connectErr
		}

		<-groupCtx.Done()
		broker.Close()

		return nil
	})

	err = group.Wait()

	logger.Info(ctx, "Ingestor stopped")

	return err
}
