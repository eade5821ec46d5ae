package command

import "time"

// Kind enumerates the instruction variants.
type Kind int

const (
	// KindUnknown is any command name that is not recognized.
	KindUnknown Kind = iota
	// KindSetAlarm updates the buzzer frequency and duration.
	KindSetAlarm
	// KindSetFlash updates the flash period and duration.
	KindSetFlash
	// KindAlarmOn arms the buzzer.
	KindAlarmOn
	// KindAlarmOff disarms the buzzer and silences it at once.
	KindAlarmOff
	// KindFlashOn starts the flash patterns.
	KindFlashOn
	// KindFlashOff stops the flash patterns and darkens the lights at once.
	KindFlashOff
	// KindGetStatus requests a status message.
	KindGetStatus
	// KindArchiveLogs moves old detections to the archive log.
	KindArchiveLogs
	// KindTriggerDevice notifies an external device.
	KindTriggerDevice
	// KindResetSystem disarms the buzzer and clears the active log.
	KindResetSystem
)

// Command names as they appear on the wire.
const (
	NameSetAlarm      = "set_alarm"
	NameSetFlash      = "set_flash"
	NameAlarmOn       = "turn_on_alarm"
	NameAlarmOff      = "turn_off_alarm"
	NameFlashOn       = "turn_on_flash"
	NameFlashOff      = "turn_off_flash"
	NameGetStatus     = "get_status"
	NameArchiveLogs   = "archive_logs"
	NameTriggerDevice = "trigger_device"
	NameResetSystem   = "reset_system"
)

// UnknownDevice is the name and action used when trigger_device omits them.
const UnknownDevice = "unknown"

// ArchiveDateLayout is the layout of the archive_logs cutoff date.
const ArchiveDateLayout = "2006-01-02"

//nolint:gochecknoglobals // Read-only lookup table.
var kindByName = map[string]Kind{
	NameSetAlarm:      KindSetAlarm,
	NameSetFlash:      KindSetFlash,
	NameAlarmOn:       KindAlarmOn,
	NameAlarmOff:      KindAlarmOff,
	NameFlashOn:       KindFlashOn,
	NameFlashOff:      KindFlashOff,
	NameGetStatus:     KindGetStatus,
	NameArchiveLogs:   KindArchiveLogs,
	NameTriggerDevice: KindTriggerDevice,
	NameResetSystem:   KindResetSystem,
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	for name, kind := range kindByName {
		if kind == k {
			return name
		}
	}

	return "unknown"
}

// Instruction is a typed command. Optional numeric fields are nil when
// absent or malformed, in which case the prior value must be kept.
type Instruction struct {
	// Kind is the instruction variant.
	Kind Kind
	// Raw is the command text as received.
	Raw string

	// Frequency is the buzzer frequency in Hz (set_alarm).
	Frequency *int
	// Duration is the buzzer on-phase in ms (set_alarm) or the flash duration in seconds (set_flash).
	Duration *int
	// Period is the flash pattern hold time in seconds (set_flash).
	Period *int

	// Before is the archive cutoff; zero when missing or malformed (archive_logs).
	Before time.Time

	// DeviceName and DeviceAction describe the notification (trigger_device).
	DeviceName   string
	DeviceAction string

	// Err collects parse failures. The instruction is still usable.
	Err error
}

// Malformed reports whether any part of the command failed to parse.
func (i Instruction) Malformed() bool {
	return i.Err != nil
}
