package scheduler

import (
	"context"
	"time"

	"github.com/oshokin/home-security/internal/actuator"
	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/device"
	"github.com/oshokin/home-security/internal/logger"
)

// Scheduler advances both actuator state machines once per tick.
type Scheduler struct {
	// holder owns the device state.
	holder *device.Holder
	// bank receives the physical writes.
	bank *actuator.Bank
	// tick is the polling period of Run.
	tick time.Duration
}

// New creates a scheduler. A non-positive tick falls back to config.DefaultTick.
func New(holder *device.Holder, bank *actuator.Bank, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = config.DefaultTick
	}

	return &Scheduler{
		holder: holder,
		bank:   bank,
		tick:   tick,
	}
}

// Run ticks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "scheduler")

	logger.DebugKV(ctx, "Actuator scheduler started", "tick", s.tick.String())

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	// The first tick runs at once so restored active flags take effect without delay.
	s.Tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "Actuator scheduler stopped")

			return nil
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick advances both state machines to now and writes the resulting outputs.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.holder.Update(func(state *device.State) {
		s.stepBuzzer(ctx, state, now)
		s.stepFlash(ctx, state, now)
	})
}

// stepBuzzer runs the audible state machine: ON for the duration, OFF for 1/frequency.
func (s *Scheduler) stepBuzzer(ctx context.Context, state *device.State, now time.Time) {
	if !state.AlarmActive {
		state.BuzzerOn = false
		state.NextBuzzerToggleAt = time.Time{}

		if err := s.bank.Silence(); err != nil {
			logger.WarnKV(ctx, "Failed to silence buzzer", "error", err)
		}

		return
	}

	if now.Before(state.NextBuzzerToggleAt) {
		return
	}

	state.BuzzerOn = !state.BuzzerOn

	if state.BuzzerOn {
		state.NextBuzzerToggleAt = now.Add(state.BuzzerOnPhase())
	} else {
		state.NextBuzzerToggleAt = now.Add(state.BuzzerOffPhase())
	}

	if err := s.bank.Buzzer.Set(state.BuzzerOn); err != nil {
		logger.WarnKV(ctx, "Failed to drive buzzer", "on", state.BuzzerOn, "error", err)
	}
}

// stepFlash runs the visual state machine: pattern A and pattern B, each held for the flash period.
func (s *Scheduler) stepFlash(ctx context.Context, state *device.State, now time.Time) {
	if !state.FlashActive {
		state.FlashPattern = device.PatternOff
		state.NextFlashToggleAt = time.Time{}

		if err := s.bank.Darken(); err != nil {
			logger.WarnKV(ctx, "Failed to darken beacon", "error", err)
		}

		return
	}

	if now.Before(state.NextFlashToggleAt) {
		return
	}

	if state.FlashPattern == device.PatternA {
		state.FlashPattern = device.PatternB
	} else {
		state.FlashPattern = device.PatternA
	}

	state.NextFlashToggleAt = now.Add(state.FlashPhase())

	if err := s.bank.Beacon.Show(state.FlashPattern); err != nil {
		logger.WarnKV(ctx, "Failed to drive beacon", "pattern", state.FlashPattern.String(), "error", err)
	}
}
