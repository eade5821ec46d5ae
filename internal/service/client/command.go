package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/oshokin/home-security/internal/api/grpc/control"
	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/command"
	"github.com/oshokin/home-security/internal/logger"
	"github.com/oshokin/home-security/internal/service/common"
)

// Options configures the ctl commands.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the control address from config when specified.
	ServerAddress string

	// Command is the command line to send.
	Command string

	// Output receives the printed status or reply.
	Output io.Writer
}

// defaultPushInterval defines the retry delay when pushing a command to the controller.
const defaultPushInterval = 1 * time.Second

// callTimeoutFactor scales the store timeout into the RPC deadline.
// The controller answers archive and reset only after the store operation,
// which is itself bounded by the store timeout and may queue behind another one.
const callTimeoutFactor = 3

// ErrOutcomeUnknown is returned when a command that must not run twice timed out
// after it may have reached the controller.
var ErrOutcomeUnknown = errors.New("command may have been applied, not retrying")

// executor sends one command. It is satisfied by common.Client.
type executor interface {
	Execute(ctx context.Context, actor, line string) (control.Reply, error)
}

// Run sends the command with retry logic until it is acknowledged or ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "homesec-ctl")

	client, actor, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	reply, err := push(ctx, client, actor, strings.TrimSpace(opts.Command), defaultPushInterval)
	if err != nil {
		return err
	}

	if opts.Output != nil {
		_, _ = fmt.Fprintln(opts.Output, formatReply(reply))
	}

	return nil
}

// Status prints the controller status as JSON.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "homesec-ctl")

	client, actor, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	m, err := client.GetStatus(ctx, actor)
	if err != nil {
		return err
	}

	data, err := m.JSON()
	if err != nil {
		return err
	}

	if opts.Output != nil {
		_, _ = fmt.Fprintln(opts.Output, string(data))
	}

	return nil
}

// connect loads settings, detects the actor and dials the controller.
func connect(ctx context.Context, opts *Options) (*common.Client, string, error) {
	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, "", err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ControlAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return nil, "", err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(callTimeoutFactor*cfg.Timeout))
	if err != nil {
		return nil, "", err
	}

	logger.DebugKV(ctx, "Connected to controller", "server_address", serverAddress, "actor", actor)

	return client, actor, nil
}

// push retries the command until the controller answers.
func push(ctx context.Context, exec executor, actor, line string, interval time.Duration) (control.Reply, error) {
	logger.InfoKV(ctx, "Pushing command", "command", line)

	// attempt tries once and reports whether to stop, with the reason when it failed.
	attempt := func() (control.Reply, bool, error) {
		reply, err := exec.Execute(ctx, actor, line)
		if err == nil {
			return reply, true, nil
		}

		logger.ErrorKV(ctx, "Execute failed", "error", err)

		if ctx.Err() == nil && !retryable(line, err) {
			return control.Reply{}, true, fmt.Errorf("%w: %w", ErrOutcomeUnknown, err)
		}

		// Continue retrying for transient failures.
		return control.Reply{}, false, nil
	}

	// Attempt immediately before starting retry loop.
	if reply, done, err := attempt(); done {
		return reply, err
	}

	// Setup retry timer for subsequent attempts.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Retry loop until success or cancellation.
	for {
		select {
		case <-ctx.Done():
			return control.Reply{}, ctx.Err()
		case <-ticker.C:
			if reply, done, err := attempt(); done {
				return reply, err
			}
		}
	}
}

// retryable reports whether cmd may be sent again after err.
// A deadline can expire after the controller ran the command, so commands
// that are not idempotent are only resent when they surely did not run.
func retryable(cmd string, err error) bool {
	code := grpcstatus.Code(err)
	if code != codes.DeadlineExceeded && code != codes.Canceled && !errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	switch command.Parse(cmd).Kind {
	case command.KindResetSystem, command.KindTriggerDevice:
		return false
	default:
		return true
	}
}

// formatReply converts a reply into a readable line.
func formatReply(reply control.Reply) string {
	var b strings.Builder

	b.WriteString(reply.Command)

	if reply.Accepted {
		b.WriteString(": accepted")
	} else {
		b.WriteString(": ignored")
	}

	if reply.Count != nil {
		fmt.Fprintf(&b, ", %d records", *reply.Count)
	}

	if reply.Error != "" {
		fmt.Fprintf(&b, " (%s)", reply.Error)
	}

	if reply.Status != nil {
		if data, err := reply.Status.JSON(); err == nil {
			b.WriteString("\n")
			b.Write(data)
		}
	}

	return b.String()
}
