package device

import "time"

// Settings holds the configurable parameters of both actuators.
type Settings struct {
	// AlarmFrequencyHz sets the off-phase gap of the buzzer (1/frequency seconds).
	AlarmFrequencyHz int
	// AlarmDurationMs sets the on-phase length of the buzzer.
	AlarmDurationMs int
	// FlashPeriodSeconds is how long each flash pattern is held.
	FlashPeriodSeconds int
	// FlashDurationSeconds is reported with the status and kept for the commander.
	FlashDurationSeconds int
}

// Upper bounds of the settings. Larger values overflow the phase durations.
const (
	MaxAlarmFrequencyHz = 20_000
	MaxAlarmDurationMs  = 24 * 60 * 60 * 1000
	MaxFlashSeconds     = 24 * 60 * 60
)

// Valid reports whether every parameter is positive and within its bound.
func (s Settings) Valid() bool {
	return inRange(s.AlarmFrequencyHz, MaxAlarmFrequencyHz) &&
		inRange(s.AlarmDurationMs, MaxAlarmDurationMs) &&
		inRange(s.FlashPeriodSeconds, MaxFlashSeconds) &&
		inRange(s.FlashDurationSeconds, MaxFlashSeconds)
}

func inRange(v, upper int) bool {
	return v > 0 && v <= upper
}

// BuzzerOnPhase returns how long the buzzer stays on in one cycle.
func (s Settings) BuzzerOnPhase() time.Duration {
	return time.Duration(s.AlarmDurationMs) * time.Millisecond
}

// BuzzerOffPhase returns the silent gap between two buzzes.
func (s Settings) BuzzerOffPhase() time.Duration {
	return time.Second / time.Duration(s.AlarmFrequencyHz)
}

// FlashPhase returns how long each flash pattern is held.
func (s Settings) FlashPhase() time.Duration {
	return time.Duration(s.FlashPeriodSeconds) * time.Second
}

// Pattern is the visual actuator output.
type Pattern int

const (
	// PatternOff keeps every light dark.
	PatternOff Pattern = iota
	// PatternA lights both red lamps.
	PatternA
	// PatternB lights both blue lamps.
	PatternB
)

// String returns the pattern name used in logs.
func (p Pattern) String() string {
	switch p {
	case PatternA:
		return "red"
	case PatternB:
		return "blue"
	default:
		return "off"
	}
}

// State is the alarm and flash record at a point in time.
type State struct {
	Settings

	// AlarmActive arms the audible actuator.
	AlarmActive bool
	// FlashActive enables the visual actuator.
	FlashActive bool

	// BuzzerOn is the current phase of the audible actuator.
	BuzzerOn bool
	// NextBuzzerToggleAt is when the audible actuator changes phase next.
	// The zero value makes the next tick start a fresh cycle.
	NextBuzzerToggleAt time.Time
	// FlashPattern is the current visual actuator output.
	FlashPattern Pattern
	// NextFlashToggleAt is when the visual actuator changes pattern next.
	NextFlashToggleAt time.Time

	// UpdatedAt is when the last command changed the state.
	UpdatedAt time.Time
}

// Clone returns a copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}
