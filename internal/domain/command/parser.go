package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/oshokin/home-security/internal/domain/detection"
	"github.com/oshokin/home-security/internal/domain/device"
)

var (
	// ErrTokenize is reported when quoting is unbalanced; tokens fall back to plain whitespace splitting.
	ErrTokenize = errors.New("unbalanced quotes")
	// ErrMalformedParameter is reported for a token without '='.
	ErrMalformedParameter = errors.New("parameter is not key=value")
	// ErrUnknownParameter is reported for a key the command does not take.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrNotANumber is reported for a non-integer numeric value.
	ErrNotANumber = errors.New("value is not an integer")
	// ErrNotPositive is reported for a zero or negative numeric value.
	ErrNotPositive = errors.New("value must be positive")
	// ErrOutOfRange is reported for a numeric value above its upper bound.
	ErrOutOfRange = errors.New("value is too large")
	// ErrBadDeviceName is reported for a device name that cannot be part of a topic.
	ErrBadDeviceName = errors.New("device name must not contain '/', '+', '#' or NUL")
	// ErrMissingParameter is reported when a required parameter is absent.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrBadDate is reported for an archive cutoff that is not YYYY-MM-DD.
	ErrBadDate = errors.New("date must be YYYY-MM-DD between 1678 and 2262")
)

// Parameter keys.
const (
	keyFreq     = "freq"
	keyDuration = "duration"
	keyPeriod   = "period"
	keyBefore   = "before"
	keyName     = "name"
	keyAction   = "action"
)

// param is one key=value token.
type param struct {
	key   string
	value string
}

// Parse turns a command text into an instruction. It never fails.
func Parse(raw string) Instruction {
	tokens, tokErr := tokenize(raw)
	if len(tokens) == 0 {
		return Instruction{Kind: KindUnknown, Raw: raw}
	}

	kind, ok := kindByName[tokens[0]]
	if !ok {
		return Instruction{Kind: KindUnknown, Raw: raw}
	}

	instr := Instruction{
		Kind: kind,
		Raw:  raw,
	}

	params, errs := splitParams(tokens[1:])
	if tokErr != nil {
		errs = append(errs, tokErr)
	}

	switch kind {
	case KindSetAlarm:
		errs = append(errs, parseSetAlarm(&instr, params)...)
	case KindSetFlash:
		errs = append(errs, parseSetFlash(&instr, params)...)
	case KindArchiveLogs:
		errs = append(errs, parseArchive(&instr, params)...)
	case KindTriggerDevice:
		errs = append(errs, parseTrigger(&instr, params)...)
	default:
		for _, p := range params {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownParameter, p.key))
		}
	}

	instr.Err = errors.Join(errs...)

	return instr
}

// tokenize splits the command with shell quoting rules, falling back to plain fields.
func tokenize(raw string) ([]string, error) {
	tokens, err := shlex.Split(raw)
	if err != nil {
		return strings.Fields(raw), fmt.Errorf("%w: %w", ErrTokenize, err)
	}

	return tokens, nil
}

// splitParams turns key=value tokens into params. Later duplicates win when applied.
func splitParams(tokens []string) ([]param, []error) {
	var (
		params = make([]param, 0, len(tokens))
		errs   []error
	)

	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMalformedParameter, token))
			continue
		}

		params = append(params, param{
			key:   strings.ToLower(key),
			value: value,
		})
	}

	return params, errs
}

// parseSetAlarm reads freq and duration.
func parseSetAlarm(instr *Instruction, params []param) []error {
	var errs []error

	for _, p := range params {
		switch p.key {
		case keyFreq:
			instr.Frequency = positiveOrReport(p, device.MaxAlarmFrequencyHz, instr.Frequency, &errs)
		case keyDuration:
			instr.Duration = positiveOrReport(p, device.MaxAlarmDurationMs, instr.Duration, &errs)
		default:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownParameter, p.key))
		}
	}

	return errs
}

// parseSetFlash reads period and duration. freq is accepted as a period alias for older commanders.
func parseSetFlash(instr *Instruction, params []param) []error {
	var errs []error

	for _, p := range params {
		switch p.key {
		case keyPeriod, keyFreq:
			instr.Period = positiveOrReport(p, device.MaxFlashSeconds, instr.Period, &errs)
		case keyDuration:
			instr.Duration = positiveOrReport(p, device.MaxFlashSeconds, instr.Duration, &errs)
		default:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownParameter, p.key))
		}
	}

	return errs
}

// parseArchive reads the before cutoff as a local-midnight date.
func parseArchive(instr *Instruction, params []param) []error {
	var (
		errs  []error
		found bool
	)

	for _, p := range params {
		if p.key != keyBefore {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownParameter, p.key))
			continue
		}

		found = true

		before, err := time.ParseInLocation(ArchiveDateLayout, p.value, time.Local)
		if err != nil || !detection.TimestampInRange(before) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrBadDate, p.value))
			continue
		}

		instr.Before = before
	}

	if !found {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParameter, keyBefore))
	}

	return errs
}

// parseTrigger reads name and action, defaulting both to "unknown".
func parseTrigger(instr *Instruction, params []param) []error {
	var errs []error

	instr.DeviceName = UnknownDevice
	instr.DeviceAction = UnknownDevice

	for _, p := range params {
		switch p.key {
		case keyName:
			switch {
			case p.value == "":
			case strings.ContainsAny(p.value, "/+#\x00"):
				errs = append(errs, fmt.Errorf("%w: %q", ErrBadDeviceName, p.value))
			default:
				instr.DeviceName = p.value
			}
		case keyAction:
			if p.value != "" {
				instr.DeviceAction = p.value
			}
		default:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownParameter, p.key))
		}
	}

	return errs
}

// positiveOrReport parses an integer in [1, upper] or records why it could not, keeping prior.
func positiveOrReport(p param, upper int, prior *int, errs *[]error) *int {
	n, err := strconv.Atoi(p.value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w: %q", p.key, ErrNotANumber, p.value))
		return prior
	}

	if n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: %w: %d", p.key, ErrNotPositive, n))
		return prior
	}

	if n > upper {
		*errs = append(*errs, fmt.Errorf("%s: %w: %d > %d", p.key, ErrOutOfRange, n, upper))
		return prior
	}

	return &n
}
