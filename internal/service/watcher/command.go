package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/logger"
	"github.com/oshokin/home-security/internal/service/common"
	"github.com/oshokin/home-security/internal/service/status"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional control address override.
	ServerAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
}

// DefaultPollInterval defines the polling interval when none is given.
const DefaultPollInterval = 5 * time.Second

// statusGetter fetches the status. It is satisfied by common.Client.
type statusGetter interface {
	GetStatus(ctx context.Context, actor string) (status.Message, error)
}

// Run polls the controller status until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "homesec-watch")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ControlAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Detect current system actor for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching controller status", "server_address", serverAddress, "interval", opts.PollInterval.String())

	return poll(ctx, client, actor, opts.PollInterval)
}

// poll checks the status once at start and then on every tick.
func poll(ctx context.Context, client statusGetter, actor string, interval time.Duration) error {
	var last *status.Message

	check := func() {
		m, err := client.GetStatus(ctx, actor)
		if err != nil {
			logger.ErrorKV(ctx, "Check status failed", "error", err)

			return
		}

		if last == nil || changed(*last, m) {
			logStatus(ctx, m)
		}

		last = &m
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-ticker.C:
			check()
		}
	}
}

// changed reports whether anything but the update stamp differs.
func changed(prev, next status.Message) bool {
	prev.UpdatedAt, next.UpdatedAt = "", ""

	if !sameCount(prev.LogCount, next.LogCount) || !sameCount(prev.ArchiveCount, next.ArchiveCount) {
		return true
	}

	prev.LogCount, next.LogCount = nil, nil
	prev.ArchiveCount, next.ArchiveCount = nil, nil

	return prev != next
}

// sameCount compares two optional counts.
func sameCount(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

// logStatus writes one status line.
func logStatus(ctx context.Context, m status.Message) {
	logCount := "unavailable"
	if m.LogCount != nil {
		logCount = fmt.Sprint(*m.LogCount)
	}

	logger.InfoKV(ctx, "Controller status",
		"alarm_active", m.AlarmActive,
		"frequency", m.Frequency,
		"duration", m.Duration,
		"flash_active", m.FlashActive,
		"flash_freq", m.FlashFreq,
		"flash_duration", m.FlashDuration,
		"log_count", logCount,
	)
}
