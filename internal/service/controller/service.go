package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/home-security/internal/api/grpc/control"
	"github.com/oshokin/home-security/internal/api/mqtt"
	"github.com/oshokin/home-security/internal/domain/command"
	"github.com/oshokin/home-security/internal/domain/device"
	"github.com/oshokin/home-security/internal/logger"
	repo "github.com/oshokin/home-security/internal/repository/state"
	"github.com/oshokin/home-security/internal/service/status"
)

// DefaultQueueSize bounds the number of commands waiting for the consumer.
const DefaultQueueSize = 64

// ErrStopped is returned for commands received after the consumer stopped.
var ErrStopped = errors.New("controller stopped")

// request is one command waiting for the consumer.
type request struct {
	// ctx carries the caller's logger and deadline.
	ctx context.Context
	// raw is the command text.
	raw string
	// reply receives the outcome; nil for fire-and-forget sources.
	reply chan Outcome
}

// service funnels every command through one consumer goroutine.
type service struct {
	// dispatcher applies the commands.
	dispatcher *Dispatcher
	// reporter answers status requests that bypass the queue.
	reporter *status.Reporter
	// publisher sends outbound messages; nil when MQTT is disabled.
	publisher mqtt.Publisher
	// queue feeds the consumer in arrival order.
	queue chan request
	// stopped is closed when the consumer exits.
	stopped chan struct{}
}

// newService creates the command service.
func newService(dispatcher *Dispatcher, reporter *status.Reporter, publisher mqtt.Publisher) *service {
	return &service{
		dispatcher: dispatcher,
		reporter:   reporter,
		publisher:  publisher,
		queue:      make(chan request, DefaultQueueSize),
		stopped:    make(chan struct{}),
	}
}

// restoreState loads persisted settings and flags into the holder.
// A missing file keeps the boot defaults.
func restoreState(ctx context.Context, states repo.Repository, holder *device.Holder) error {
	loaded, err := states.Load(ctx)

	switch {
	case err == nil:
		holder.Update(func(state *device.State) {
			state.Settings = loaded.Settings
			state.AlarmActive = loaded.AlarmActive
			state.FlashActive = loaded.FlashActive
			state.UpdatedAt = loaded.UpdatedAt
		})

		logger.InfoKV(ctx, "Device state restored",
			"alarm_active", loaded.AlarmActive,
			"flash_active", loaded.FlashActive,
		)
	case errors.Is(err, repo.ErrNotFound):
		// Keep boot defaults.
	default:
		return fmt.Errorf("load state: %w", err)
	}

	return nil
}

// Run consumes queued commands until ctx is canceled.
func (s *service) Run(ctx context.Context) error {
	defer close(s.stopped)

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.queue:
			s.handle(req)
		}
	}
}

// handle parses, dispatches and publishes one command.
func (s *service) handle(req request) {
	ctx := req.ctx

	instr := command.Parse(req.raw)
	outcome := s.dispatcher.Dispatch(ctx, instr)

	if outcome.Outbound != nil {
		s.publish(ctx, *outcome.Outbound)
	}

	if req.reply != nil {
		req.reply <- outcome

		return
	}

	// Nobody waits for fire-and-forget commands, so the lifecycle result is only logged.
	if outcome.Pending != nil {
		go func() {
			result := <-outcome.Pending
			if result.Err != nil {
				logger.ErrorKV(ctx, "Log operation failed", "command", instr.Kind.String(), "error", result.Err)

				return
			}

			logger.InfoKV(ctx, "Log operation finished", "command", instr.Kind.String(), "count", result.Count)
		}()
	}
}

// publish sends an outbound message when MQTT is enabled.
func (s *service) publish(ctx context.Context, out Outbound) {
	if s.publisher == nil {
		logger.DebugKV(ctx, "MQTT disabled, outbound message dropped", "topic", out.Topic)

		return
	}

	if err := s.publisher.Publish(ctx, out.Topic, out.Payload); err != nil {
		logger.ErrorKV(ctx, "Failed to publish", "topic", out.Topic, "error", err)
	}
}

// enqueue hands a command to the consumer without waiting for the outcome.
func (s *service) enqueue(ctx context.Context, raw string, reply chan Outcome) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	case s.queue <- request{ctx: ctx, raw: raw, reply: reply}:
		return nil
	}
}

// HandleMessage is the MQTT handler of the command topic.
func (s *service) HandleMessage(ctx context.Context) mqtt.Handler {
	return func(msg mqtt.Message) {
		msgCtx := logger.WithKV(ctx, "source", "mqtt", "topic", msg.Topic)

		if err := s.enqueue(msgCtx, string(msg.Payload), nil); err != nil {
			logger.WarnKV(msgCtx, "Command dropped", "error", err)
		}
	}
}

// Execute runs one command for the gRPC control API and waits for its outcome,
// including the result of a queued log operation.
func (s *service) Execute(ctx context.Context, actor, raw string) (control.Reply, error) {
	ctx = logger.WithKV(ctx, "source", "grpc", "actor", actor)

	logger.InfoKV(ctx, "Command received", "command", raw)

	reply := make(chan Outcome, 1)
	if err := s.enqueue(ctx, raw, reply); err != nil {
		return control.Reply{}, err
	}

	var outcome Outcome

	select {
	case <-ctx.Done():
		return control.Reply{}, ctx.Err()
	case outcome = <-reply:
	case <-s.stopped:
		select {
		case outcome = <-reply:
		default:
			return control.Reply{}, ErrStopped
		}
	}

	result := control.Reply{
		Command:  outcome.Instruction.Kind.String(),
		Accepted: outcome.Instruction.Kind != command.KindUnknown && !outcome.Instruction.Malformed(),
		Status:   outcome.Status,
	}

	if outcome.Instruction.Err != nil {
		result.Error = outcome.Instruction.Err.Error()
	}

	if outcome.Pending == nil {
		return result, nil
	}

	select {
	case <-ctx.Done():
		return control.Reply{}, ctx.Err()
	case done := <-outcome.Pending:
		if done.Err != nil {
			result.Error = done.Err.Error()

			return result, nil
		}

		result.Count = &done.Count
	}

	return result, nil
}

// Status reports the live device state without queueing behind commands.
func (s *service) Status(ctx context.Context) status.Message {
	return s.reporter.Report(ctx)
}
