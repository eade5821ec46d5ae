package actuator

import (
	"errors"
	"fmt"

	"github.com/oshokin/home-security/internal/domain/device"
)

// Output is a single on/off line.
type Output interface {
	// Set drives the line to the requested logical level.
	Set(on bool) error
	// Close releases the line.
	Close() error
}

// inverted flips the logical level of an active-low line.
type inverted struct {
	Output
}

// Set drives the wrapped line to the opposite physical level.
func (i inverted) Set(on bool) error {
	return i.Output.Set(!on)
}

// Invert wraps an output whose lamp or buzzer lights on a low level.
func Invert(out Output) Output {
	return inverted{Output: out}
}

// Beacon groups the four lamps of the flash beacon.
type Beacon struct {
	FirstRed   Output
	FirstBlue  Output
	SecondRed  Output
	SecondBlue Output
}

// Show drives the lamps to the requested pattern. Every lamp is written
// even when one fails, so a faulty lamp does not freeze the others.
func (b *Beacon) Show(pattern device.Pattern) error {
	red := pattern == device.PatternA
	blue := pattern == device.PatternB

	return errors.Join(
		setNamed("first red", b.FirstRed, red),
		setNamed("first blue", b.FirstBlue, blue),
		setNamed("second red", b.SecondRed, red),
		setNamed("second blue", b.SecondBlue, blue),
	)
}

// Close releases every lamp.
func (b *Beacon) Close() error {
	return errors.Join(
		b.FirstRed.Close(),
		b.FirstBlue.Close(),
		b.SecondRed.Close(),
		b.SecondBlue.Close(),
	)
}

// setNamed sets one output and labels its error.
func setNamed(name string, out Output, on bool) error {
	if err := out.Set(on); err != nil {
		return fmt.Errorf("%s lamp: %w", name, err)
	}

	return nil
}

// Bank is the full set of outputs driven by the scheduler.
type Bank struct {
	Buzzer Output
	Beacon *Beacon
}

// Silence forces the buzzer off.
func (b *Bank) Silence() error {
	if err := b.Buzzer.Set(false); err != nil {
		return fmt.Errorf("buzzer: %w", err)
	}

	return nil
}

// Darken forces every lamp off.
func (b *Bank) Darken() error {
	return b.Beacon.Show(device.PatternOff)
}

// Close silences and releases every output.
func (b *Bank) Close() error {
	return errors.Join(
		b.Silence(),
		b.Darken(),
		b.Buzzer.Close(),
		b.Beacon.Close(),
	)
}
