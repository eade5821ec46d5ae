package actuator

import (
	"fmt"

	"github.com/oshokin/home-security/internal/config"
)

// Pins maps the outputs to GPIO line offsets.
type Pins struct {
	Buzzer     int
	FirstRed   int
	FirstBlue  int
	SecondRed  int
	SecondBlue int
}

// namedPin is one entry of the ordered pin list.
type namedPin struct {
	name   string
	offset int
}

// ordered lists the pins in bank order: buzzer, first red, first blue, second red, second blue.
func (p Pins) ordered() []namedPin {
	return []namedPin{
		{name: "buzzer", offset: p.Buzzer},
		{name: "first red", offset: p.FirstRed},
		{name: "first blue", offset: p.FirstBlue},
		{name: "second red", offset: p.SecondRed},
		{name: "second blue", offset: p.SecondBlue},
	}
}

// bankFrom assembles a bank from outputs in Pins.ordered order.
func bankFrom(outs []Output) *Bank {
	return &Bank{
		Buzzer: outs[0],
		Beacon: &Beacon{
			FirstRed:   outs[1],
			FirstBlue:  outs[2],
			SecondRed:  outs[3],
			SecondBlue: outs[4],
		},
	}
}

// invertBank wraps every output of the bank for active-low wiring.
func invertBank(b *Bank) *Bank {
	return &Bank{
		Buzzer: Invert(b.Buzzer),
		Beacon: &Beacon{
			FirstRed:   Invert(b.Beacon.FirstRed),
			FirstBlue:  Invert(b.Beacon.FirstBlue),
			SecondRed:  Invert(b.Beacon.SecondRed),
			SecondBlue: Invert(b.Beacon.SecondBlue),
		},
	}
}

// Open creates the output bank described by the settings and drives every output off.
func Open(settings config.Actuators) (*Bank, error) {
	var (
		bank *Bank
		err  error
	)

	switch settings.Backend {
	case config.BackendGPIO:
		bank, err = openGPIO(settings.Chip, Pins{
			Buzzer:     settings.BuzzerPin,
			FirstRed:   settings.FirstRedPin,
			FirstBlue:  settings.FirstBluePin,
			SecondRed:  settings.SecondRedPin,
			SecondBlue: settings.SecondBluePin,
		})
		if err != nil {
			return nil, err
		}
	case config.BackendSimulated, "":
		bank = NewSimulatedBank().Bank
	default:
		return nil, fmt.Errorf("unsupported actuator backend %q", settings.Backend)
	}

	if settings.ActiveLow {
		bank = invertBank(bank)
	}

	if err = bank.Silence(); err != nil {
		return nil, fmt.Errorf("initial buzzer state: %w", err)
	}

	if err = bank.Darken(); err != nil {
		return nil, fmt.Errorf("initial beacon state: %w", err)
	}

	return bank, nil
}
