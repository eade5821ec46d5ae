package actuator

import (
	"errors"
	"sync"
)

// ErrOutputClosed is returned when a closed output is written.
var ErrOutputClosed = errors.New("output is closed")

// SimulatedOutput keeps the line level in memory.
type SimulatedOutput struct {
	// mu protects the fields below.
	mu sync.Mutex
	// name labels the line in Transitions.
	name string
	// level is the current logical level.
	level bool
	// writes counts every Set call.
	writes int
	// transitions counts level changes.
	transitions int
	// closed rejects further writes.
	closed bool
	// fault is returned by Set when not nil.
	fault error
}

// NewSimulatedOutput creates an output that starts low.
func NewSimulatedOutput(name string) *SimulatedOutput {
	return &SimulatedOutput{
		name: name,
	}
}

// Set records the level.
func (o *SimulatedOutput) Set(on bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutputClosed
	}

	if o.fault != nil {
		return o.fault
	}

	o.writes++

	if o.level != on {
		o.transitions++
	}

	o.level = on

	return nil
}

// Close marks the output closed.
func (o *SimulatedOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true

	return nil
}

// Name returns the line label.
func (o *SimulatedOutput) Name() string {
	return o.name
}

// Level returns the current logical level.
func (o *SimulatedOutput) Level() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.level
}

// Transitions returns how many times the level changed.
func (o *SimulatedOutput) Transitions() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.transitions
}

// Writes returns how many times Set succeeded.
func (o *SimulatedOutput) Writes() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.writes
}

// InjectFault makes every following Set fail with err; nil clears it.
func (o *SimulatedOutput) InjectFault(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.fault = err
}

// SimulatedBank is a Bank whose outputs are simulated, with typed access for inspection.
type SimulatedBank struct {
	*Bank

	Buzzer     *SimulatedOutput
	FirstRed   *SimulatedOutput
	FirstBlue  *SimulatedOutput
	SecondRed  *SimulatedOutput
	SecondBlue *SimulatedOutput
}

// NewSimulatedBank creates a bank of simulated outputs.
func NewSimulatedBank() *SimulatedBank {
	s := &SimulatedBank{
		Buzzer:     NewSimulatedOutput("buzzer"),
		FirstRed:   NewSimulatedOutput("first-red"),
		FirstBlue:  NewSimulatedOutput("first-blue"),
		SecondRed:  NewSimulatedOutput("second-red"),
		SecondBlue: NewSimulatedOutput("second-blue"),
	}

	s.Bank = &Bank{
		Buzzer: s.Buzzer,
		Beacon: &Beacon{
			FirstRed:   s.FirstRed,
			FirstBlue:  s.FirstBlue,
			SecondRed:  s.SecondRed,
			SecondBlue: s.SecondBlue,
		},
	}

	return s
}

// Lit returns the levels of the lamps in first red, first blue, second red, second blue order.
func (s *SimulatedBank) Lit() [4]bool {
	return [4]bool{
		s.FirstRed.Level(),
		s.FirstBlue.Level(),
		s.SecondRed.Level(),
		s.SecondBlue.Level(),
	}
}
