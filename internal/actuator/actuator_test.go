package actuator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/device"
)

var errTestLamp = errors.New("lamp burnt out")

// TestBeaconShow verifies the lamp levels of every pattern.
func TestBeaconShow(t *testing.T) {
	t.Parallel()

	bank := NewSimulatedBank()

	require.NoError(t, bank.Beacon.Show(device.PatternA))
	require.Equal(t, [4]bool{true, false, true, false}, bank.Lit())

	require.NoError(t, bank.Beacon.Show(device.PatternB))
	require.Equal(t, [4]bool{false, true, false, true}, bank.Lit())

	require.NoError(t, bank.Darken())
	require.Equal(t, [4]bool{}, bank.Lit())
}

// TestBeaconShow_FaultyLampDoesNotBlockOthers checks every lamp is written despite a failure.
func TestBeaconShow_FaultyLampDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	bank := NewSimulatedBank()
	bank.FirstRed.InjectFault(errTestLamp)

	err := bank.Beacon.Show(device.PatternA)
	require.ErrorIs(t, err, errTestLamp)
	require.True(t, bank.SecondRed.Level())

	bank.FirstRed.InjectFault(nil)
	require.NoError(t, bank.Beacon.Show(device.PatternA))
	require.True(t, bank.FirstRed.Level())
}

// TestSimulatedOutput counts transitions and rejects writes after close.
func TestSimulatedOutput(t *testing.T) {
	t.Parallel()

	out := NewSimulatedOutput("buzzer")
	require.Equal(t, "buzzer", out.Name())

	require.NoError(t, out.Set(true))
	require.NoError(t, out.Set(true))
	require.NoError(t, out.Set(false))
	require.Equal(t, 2, out.Transitions())
	require.Equal(t, 3, out.Writes())

	require.NoError(t, out.Close())
	require.ErrorIs(t, out.Set(true), ErrOutputClosed)
}

// TestInvert flips the physical level of active-low outputs.
func TestInvert(t *testing.T) {
	t.Parallel()

	raw := NewSimulatedOutput("buzzer")
	out := Invert(raw)

	require.NoError(t, out.Set(true))
	require.False(t, raw.Level())

	require.NoError(t, out.Set(false))
	require.True(t, raw.Level())
}

// TestOpen_Simulated opens the default backend with every output off.
func TestOpen_Simulated(t *testing.T) {
	t.Parallel()

	bank, err := Open(config.Actuators{Backend: config.BackendSimulated})
	require.NoError(t, err)
	require.NotNil(t, bank.Buzzer)
	require.NotNil(t, bank.Beacon)
	require.NoError(t, bank.Close())

	_, err = Open(config.Actuators{Backend: "relay"})
	require.Error(t, err)
}

// TestPinsOrdered keeps bankFrom and the pin order in sync.
func TestPinsOrdered(t *testing.T) {
	t.Parallel()

	pins := Pins{Buzzer: 14, FirstRed: 23, FirstBlue: 22, SecondRed: 21, SecondBlue: 19}
	ordered := pins.ordered()

	require.Len(t, ordered, 5)
	require.Equal(t, 14, ordered[0].offset)
	require.Equal(t, 19, ordered[4].offset)

	outs := make([]Output, 0, len(ordered))
	for _, p := range ordered {
		outs = append(outs, NewSimulatedOutput(p.name))
	}

	bank := bankFrom(outs)
	require.Equal(t, "buzzer", bank.Buzzer.(*SimulatedOutput).Name())
	require.Equal(t, "second blue", bank.Beacon.SecondBlue.(*SimulatedOutput).Name())
}
