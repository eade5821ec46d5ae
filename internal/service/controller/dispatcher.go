package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oshokin/home-security/internal/actuator"
	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/command"
	"github.com/oshokin/home-security/internal/domain/device"
	"github.com/oshokin/home-security/internal/logger"
	repo "github.com/oshokin/home-security/internal/repository/state"
	"github.com/oshokin/home-security/internal/service/lifecycle"
	"github.com/oshokin/home-security/internal/service/status"
)

// Outbound is a message the dispatcher wants published.
type Outbound struct {
	Topic   string
	Payload []byte
}

// Outcome is the result of dispatching one instruction.
type Outcome struct {
	// Instruction is the dispatched instruction.
	Instruction command.Instruction
	// Outbound is set for get_status and trigger_device.
	Outbound *Outbound
	// Status is set for get_status.
	Status *status.Message
	// Pending receives the lifecycle result of archive_logs and reset_system.
	Pending <-chan lifecycle.Result
	// Changed reports whether device settings or flags changed.
	Changed bool
}

// deviceNotice is the payload of a trigger_device notification.
type deviceNotice struct {
	Name   string `json:"name"`
	Action string `json:"action"`
}

// Submitter queues lifecycle operations. It is satisfied by lifecycle.Manager.
type Submitter interface {
	Submit(op lifecycle.Operation) <-chan lifecycle.Result
}

// Dispatcher applies instructions to the device state and its collaborators.
type Dispatcher struct {
	// holder owns the device state.
	holder *device.Holder
	// bank receives the immediate off writes of turn_off commands.
	bank *actuator.Bank
	// reporter renders get_status.
	reporter *status.Reporter
	// lifecycle runs archive and reset operations.
	lifecycle Submitter
	// states persists settings and flags; nil disables persistence.
	states repo.Repository
	// topics names the outbound channels.
	topics config.Topics
	// now stamps state changes.
	now func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	holder *device.Holder,
	bank *actuator.Bank,
	reporter *status.Reporter,
	lifecycle Submitter,
	states repo.Repository,
	topics config.Topics,
) *Dispatcher {
	return &Dispatcher{
		holder:    holder,
		bank:      bank,
		reporter:  reporter,
		lifecycle: lifecycle,
		states:    states,
		topics:    topics,
		now:       time.Now,
	}
}

// Dispatch applies one instruction. It never fails: problems are logged and
// reflected in the outcome.
//
//nolint:cyclop // One case per instruction kind.
func (d *Dispatcher) Dispatch(ctx context.Context, instr command.Instruction) Outcome {
	outcome := Outcome{Instruction: instr}

	if instr.Malformed() {
		logger.WarnKV(ctx, "Malformed command", "command", instr.Raw, "error", instr.Err)
	}

	switch instr.Kind {
	case command.KindSetAlarm:
		outcome.Changed = d.mutate(ctx, func(state *device.State) {
			if instr.Frequency != nil {
				state.AlarmFrequencyHz = *instr.Frequency
			}

			if instr.Duration != nil {
				state.AlarmDurationMs = *instr.Duration
			}
		})
	case command.KindSetFlash:
		outcome.Changed = d.mutate(ctx, func(state *device.State) {
			if instr.Period != nil {
				state.FlashPeriodSeconds = *instr.Period
			}

			if instr.Duration != nil {
				state.FlashDurationSeconds = *instr.Duration
			}
		})
	case command.KindAlarmOn:
		outcome.Changed = d.mutate(ctx, func(state *device.State) {
			if !state.AlarmActive {
				state.AlarmActive = true
				state.BuzzerOn = false
				state.NextBuzzerToggleAt = time.Time{}
			}
		})
	case command.KindAlarmOff:
		outcome.Changed = d.mutate(ctx, d.alarmOff(ctx))
	case command.KindFlashOn:
		outcome.Changed = d.mutate(ctx, func(state *device.State) {
			if !state.FlashActive {
				state.FlashActive = true
				state.FlashPattern = device.PatternOff
				state.NextFlashToggleAt = time.Time{}
			}
		})
	case command.KindFlashOff:
		outcome.Changed = d.mutate(ctx, d.flashOff(ctx))
	case command.KindGetStatus:
		d.reportStatus(ctx, &outcome)
	case command.KindArchiveLogs:
		if instr.Before.IsZero() {
			logger.WarnKV(ctx, "Archive skipped, no valid cutoff", "command", instr.Raw)

			break
		}

		outcome.Pending = d.lifecycle.Submit(lifecycle.Operation{
			Kind:   lifecycle.KindArchive,
			Cutoff: instr.Before,
		})
	case command.KindTriggerDevice:
		d.triggerDevice(ctx, instr, &outcome)
	case command.KindResetSystem:
		outcome.Changed = d.mutate(ctx, d.alarmOff(ctx))
		outcome.Pending = d.lifecycle.Submit(lifecycle.Operation{Kind: lifecycle.KindReset})
	case command.KindUnknown:
		logger.WarnKV(ctx, "Unknown command ignored", "command", instr.Raw)
	}

	return outcome
}

// alarmOff disarms the buzzer and silences it before the lock is released.
func (d *Dispatcher) alarmOff(ctx context.Context) func(state *device.State) {
	return func(state *device.State) {
		state.AlarmActive = false
		state.BuzzerOn = false
		state.NextBuzzerToggleAt = time.Time{}

		if err := d.bank.Silence(); err != nil {
			logger.WarnKV(ctx, "Failed to silence buzzer", "error", err)
		}
	}
}

// flashOff stops the flash patterns and darkens the beacon before the lock is released.
func (d *Dispatcher) flashOff(ctx context.Context) func(state *device.State) {
	return func(state *device.State) {
		state.FlashActive = false
		state.FlashPattern = device.PatternOff
		state.NextFlashToggleAt = time.Time{}

		if err := d.bank.Darken(); err != nil {
			logger.WarnKV(ctx, "Failed to darken beacon", "error", err)
		}
	}
}

// mutate applies fn under the state lock. When settings or flags change it
// stamps the state and persists it, and reports true.
func (d *Dispatcher) mutate(ctx context.Context, fn func(state *device.State)) bool {
	var (
		changed  bool
		snapshot device.State
	)

	d.holder.Update(func(state *device.State) {
		before := *state

		fn(state)

		changed = before.Settings != state.Settings ||
			before.AlarmActive != state.AlarmActive ||
			before.FlashActive != state.FlashActive

		if changed {
			state.UpdatedAt = d.now()
		}

		snapshot = *state
	})

	if !changed {
		return false
	}

	logger.InfoKV(ctx, "Device state updated",
		"alarm_active", snapshot.AlarmActive,
		"frequency", snapshot.AlarmFrequencyHz,
		"duration", snapshot.AlarmDurationMs,
		"flash_active", snapshot.FlashActive,
		"flash_freq", snapshot.FlashPeriodSeconds,
		"flash_duration", snapshot.FlashDurationSeconds,
	)

	if d.states != nil {
		if err := d.states.Save(ctx, &snapshot); err != nil {
			logger.ErrorKV(ctx, "Failed to persist device state", "error", err)
		}
	}

	return true
}

// reportStatus renders the status message and queues it for the status topic.
func (d *Dispatcher) reportStatus(ctx context.Context, outcome *Outcome) {
	m := d.reporter.Report(ctx)
	outcome.Status = &m

	payload, err := m.JSON()
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode status", "error", err)

		return
	}

	outcome.Outbound = &Outbound{
		Topic:   d.topics.Status,
		Payload: payload,
	}
}

// triggerDevice queues the external device notification.
func (d *Dispatcher) triggerDevice(ctx context.Context, instr command.Instruction, outcome *Outcome) {
	notice := deviceNotice{
		Name:   instr.DeviceName,
		Action: instr.DeviceAction,
	}

	if notice.Name == "" {
		notice.Name = command.UnknownDevice
	}

	if notice.Action == "" {
		notice.Action = command.UnknownDevice
	}

	payload, err := json.Marshal(notice)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode device notice", "error", err)

		return
	}

	logger.InfoKV(ctx, "Device triggered", "name", notice.Name, "action", notice.Action)

	outcome.Outbound = &Outbound{
		Topic:   d.topics.Devices + "/" + notice.Name,
		Payload: payload,
	}
}
