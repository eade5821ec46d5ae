package controller

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/home-security/internal/actuator"
	"github.com/oshokin/home-security/internal/api/grpc/control"
	"github.com/oshokin/home-security/internal/api/mqtt"
	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/device"
	"github.com/oshokin/home-security/internal/logger"
	"github.com/oshokin/home-security/internal/repository/logstore"
	repository "github.com/oshokin/home-security/internal/repository/state"
	"github.com/oshokin/home-security/internal/service/lifecycle"
	"github.com/oshokin/home-security/internal/service/scheduler"
	"github.com/oshokin/home-security/internal/service/status"
)

// Options controls the controller process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC control address.
	ListenAddress string
	// StateFile overrides the path of the persisted device state.
	StateFile string
	// Database overrides the path of the detection log database.
	Database string
}

// SettingsFromConfig returns the boot defaults of both actuators.
func SettingsFromConfig(cfg *config.Config) device.Settings {
	return device.Settings{
		AlarmFrequencyHz:     cfg.Alarm.FrequencyHz,
		AlarmDurationMs:      cfg.Alarm.DurationMs,
		FlashPeriodSeconds:   cfg.Flash.PeriodSeconds,
		FlashDurationSeconds: cfg.Flash.DurationSeconds,
	}
}

// Run starts the controller and blocks until ctx is canceled or a component fails to start.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "homesec-controller")

	// Load configuration first to get every component's settings.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	applyOverrides(cfg, opts)

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	// Open physical outputs; every output starts off.
	bank, err := actuator.Open(cfg.Actuators)
	if err != nil {
		return fmt.Errorf("open actuators: %w", err)
	}

	defer func() {
		if closeErr := bank.Close(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to release actuators", "error", closeErr)
		}
	}()

	// Open the detection log store.
	store, err := logstore.Open(cfg.Database)
	if err != nil {
		return err
	}

	defer func() {
		_ = store.Close()
	}()

	// Restore persisted settings over the configured defaults.
	holder := device.NewHolder(SettingsFromConfig(cfg))
	states := repository.NewFileRepository(cfg.StateFile)

	if err = restoreState(ctx, states, holder); err != nil {
		return err
	}

	var (
		manager  = lifecycle.NewManager(store, cfg.Timeout)
		reporter = status.NewReporter(holder, store, cfg.Timeout)
		broker   *mqtt.Broker
		pub      mqtt.Publisher
	)

	if cfg.Broker.URL != "" {
		broker = mqtt.New(cfg.Broker)
		pub = broker
	}

	svc := newService(NewDispatcher(holder, bank, reporter, manager, states, cfg.Topics), reporter, pub)

	// Setup TCP listener for the control API.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", cfg.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ControlAddress, err)
	}

	grpcServer := grpc.NewServer()
	control.Register(grpcServer, control.NewServer(svc))

	logger.InfoKV(ctx, "Controller started",
		"control_address", cfg.ControlAddress,
		"broker", cfg.Broker.URL,
		"database", cfg.Database,
		"state_file", cfg.StateFile,
		"backend", cfg.Actuators.Backend,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return scheduler.New(holder, bank, cfg.Tick).Run(groupCtx)
	})

	group.Go(func() error {
		return manager.Run(groupCtx)
	})

	group.Go(func() error {
		return svc.Run(groupCtx)
	})

	if broker != nil {
		group.Go(func() error {
			return serveMQTT(groupCtx, broker, cfg.Topics.Commands, svc.HandleMessage(groupCtx))
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()

		return nil
	})

	group.Go(func() error {
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", serveErr)
		}

		return nil
	})

	err = group.Wait()

	logger.Info(ctx, "Controller stopped")

	return err
}

// serveMQTT connects, subscribes to the command topic and disconnects when ctx ends.
func serveMQTT(ctx context.Context, broker *mqtt.Broker, topic string, handler mqtt.Handler) error {
	// Subscribe before connecting so the first OnConnect picks the topic up.
	if err := broker.Subscribe(ctx, topic, handler); err != nil {
		return err
	}

	if err := broker.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	<-ctx.Done()
	broker.Close()

	return nil
}

// applyOverrides replaces configured paths with command line values.
func applyOverrides(cfg *config.Config, opts *Options) {
	if opts.ListenAddress != "" {
		cfg.ControlAddress = opts.ListenAddress
	}

	if opts.StateFile != "" {
		cfg.StateFile = opts.StateFile
	}

	if opts.Database != "" {
		cfg.Database = opts.Database
	}
}
