package scheduler

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-security/internal/actuator"
	"github.com/oshokin/home-security/internal/domain/device"
)

const testTick = 100 * time.Millisecond

var errTestWire = errors.New("wire cut")

func newTestScheduler(settings device.Settings) (*Scheduler, *device.Holder, *actuator.SimulatedBank) {
	var (
		holder = device.NewHolder(settings)
		bank   = actuator.NewSimulatedBank()
	)

	return New(holder, bank.Bank, testTick), holder, bank
}

// run ticks from start for the window and returns how long the buzzer was on.
func run(s *Scheduler, bank *actuator.SimulatedBank, start time.Time, window time.Duration) time.Duration {
	var on time.Duration

	for elapsed := time.Duration(0); elapsed < window; elapsed += testTick {
		s.Tick(context.Background(), start.Add(elapsed))

		if bank.Buzzer.Level() {
			on += testTick
		}
	}

	return on
}

// TestTick_BuzzerDutyCycle checks a 2 Hz, 500 ms alarm over two seconds.
func TestTick_BuzzerDutyCycle(t *testing.T) {
	t.Parallel()

	s, holder, bank := newTestScheduler(device.Settings{
		AlarmFrequencyHz:     2,
		AlarmDurationMs:      500,
		FlashPeriodSeconds:   1,
		FlashDurationSeconds: 1,
	})

	holder.Update(func(state *device.State) { state.AlarmActive = true })

	on := run(s, bank, time.Unix(1_700_000_000, 0), 2*time.Second)

	require.InDelta(t, time.Second, on, float64(testTick))
	require.GreaterOrEqual(t, bank.Buzzer.Transitions(), 2)
}

// TestTick_OffPhaseFollowsFrequency uses independent on and off phases.
func TestTick_OffPhaseFollowsFrequency(t *testing.T) {
	t.Parallel()

	s, holder, bank := newTestScheduler(device.Settings{
		AlarmFrequencyHz:     5,
		AlarmDurationMs:      800,
		FlashPeriodSeconds:   1,
		FlashDurationSeconds: 1,
	})

	holder.Update(func(state *device.State) { state.AlarmActive = true })

	// 800 ms on, 200 ms off: 80% of a second.
	on := run(s, bank, time.Unix(1_700_000_000, 0), 3*time.Second)

	require.InDelta(t, 2400*time.Millisecond, on, float64(testTick))
}

// TestTick_InactiveForcesOff silences the buzzer whatever its phase.
func TestTick_InactiveForcesOff(t *testing.T) {
	t.Parallel()

	s, holder, bank := newTestScheduler(device.Settings{
		AlarmFrequencyHz:     1,
		AlarmDurationMs:      5000,
		FlashPeriodSeconds:   1,
		FlashDurationSeconds: 1,
	})

	start := time.Unix(1_700_000_000, 0)

	holder.Update(func(state *device.State) { state.AlarmActive = true })
	s.Tick(context.Background(), start)
	require.True(t, bank.Buzzer.Level())

	holder.Update(func(state *device.State) { state.AlarmActive = false })
	s.Tick(context.Background(), start.Add(testTick))

	require.False(t, bank.Buzzer.Level())

	snapshot := holder.Snapshot()
	require.False(t, snapshot.BuzzerOn)
	require.True(t, snapshot.NextBuzzerToggleAt.IsZero())
}

// TestTick_ReactivationStartsFreshCycle begins with an ON phase after re-arming.
func TestTick_ReactivationStartsFreshCycle(t *testing.T) {
	t.Parallel()

	s, holder, bank := newTestScheduler(device.Settings{
		AlarmFrequencyHz:     1,
		AlarmDurationMs:      300,
		FlashPeriodSeconds:   1,
		FlashDurationSeconds: 1,
	})

	start := time.Unix(1_700_000_000, 0)

	holder.Update(func(state *device.State) { state.AlarmActive = true })
	s.Tick(context.Background(), start)
	s.Tick(context.Background(), start.Add(300*time.Millisecond))
	require.False(t, bank.Buzzer.Level(), "off phase of the first cycle")

	holder.Update(func(state *device.State) { state.AlarmActive = false })
	s.Tick(context.Background(), start.Add(400*time.Millisecond))

	holder.Update(func(state *device.State) { state.AlarmActive = true })
	s.Tick(context.Background(), start.Add(500*time.Millisecond))

	// The stale off phase would have lasted until 1.3 s.
	require.True(t, bank.Buzzer.Level())
	require.Equal(t, start.Add(800*time.Millisecond), holder.Snapshot().NextBuzzerToggleAt)
}

// TestTick_FlashAlternates holds each pattern for the flash period.
func TestTick_FlashAlternates(t *testing.T) {
	t.Parallel()

	s, holder, bank := newTestScheduler(device.Settings{
		AlarmFrequencyHz:     1,
		AlarmDurationMs:      1,
		FlashPeriodSeconds:   1,
		FlashDurationSeconds: 1,
	})

	var (
		ctx   = context.Background()
		start = time.Unix(1_700_000_000, 0)
		red   = [4]bool{true, false, true, false}
		blue  = [4]bool{false, true, false, true}
	)

	holder.Update(func(state *device.State) { state.FlashActive = true })

	s.Tick(ctx, start)
	require.Equal(t, red, bank.Lit())

	s.Tick(ctx, start.Add(900*time.Millisecond))
	require.Equal(t, red, bank.Lit())

	s.Tick(ctx, start.Add(time.Second))
	require.Equal(t, blue, bank.Lit())
	require.Equal(t, device.PatternB, holder.Snapshot().FlashPattern)

	s.Tick(ctx, start.Add(2*time.Second))
	require.Equal(t, red, bank.Lit())

	holder.Update(func(state *device.State) { state.FlashActive = false })
	s.Tick(ctx, start.Add(2100*time.Millisecond))
	require.Equal(t, [4]bool{}, bank.Lit())
	require.Equal(t, device.PatternOff, holder.Snapshot().FlashPattern)
}

// TestTick_ActuatorFaultKeepsTicking logs write failures and keeps the machines running.
func TestTick_ActuatorFaultKeepsTicking(t *testing.T) {
	t.Parallel()

	s, holder, bank := newTestScheduler(device.Settings{
		AlarmFrequencyHz:     1,
		AlarmDurationMs:      100,
		FlashPeriodSeconds:   1,
		FlashDurationSeconds: 1,
	})

	bank.Buzzer.InjectFault(errTestWire)
	bank.FirstRed.InjectFault(errTestWire)

	holder.Update(func(state *device.State) {
		state.AlarmActive = true
		state.FlashActive = true
	})

	start := time.Unix(1_700_000_000, 0)

	require.NotPanics(t, func() {
		s.Tick(context.Background(), start)
		s.Tick(context.Background(), start.Add(testTick))
	})

	snapshot := holder.Snapshot()
	require.False(t, snapshot.BuzzerOn)
	require.Equal(t, device.PatternA, snapshot.FlashPattern)
	require.True(t, bank.SecondRed.Level())
}

// TestRun_StopsOnCancel drives the real ticker inside a synthetic time bubble.
func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		s, holder, bank := newTestScheduler(device.Settings{
			AlarmFrequencyHz:     2,
			AlarmDurationMs:      500,
			FlashPeriodSeconds:   1,
			FlashDurationSeconds: 1,
		})

		holder.Update(func(state *device.State) { state.AlarmActive = true })

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() {
			done <- s.Run(ctx)
		}()

		time.Sleep(2*time.Second + testTick/2)
		synctest.Wait()

		require.GreaterOrEqual(t, bank.Buzzer.Transitions(), 4)

		cancel()
		synctest.Wait()

		require.NoError(t, <-done)
	})
}
