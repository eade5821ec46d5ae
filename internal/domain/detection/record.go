package detection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one detection kept in the log store.
type Record struct {
	// ID identifies the record across the active and archive logs.
	ID string `json:"id"`
	// Object is the detected class label, e.g. "person".
	Object string `json:"object"`
	// Confidence is the model score in [0, 1].
	Confidence float64 `json:"confidence"`
	// Timestamp is when the detection happened.
	Timestamp time.Time `json:"timestamp"`
}

// LegacyTimestampLayout is the timestamp format of text alerts.
const LegacyTimestampLayout = "2006-01-02 15:04:05"

var (
	// ErrEmptyAlert is returned for an empty payload.
	ErrEmptyAlert = errors.New("empty alert")
	// ErrMissingObject is returned when the alert names no object.
	ErrMissingObject = errors.New("alert has no object")
	// ErrConfidenceRange is returned when confidence is outside [0, 1].
	ErrConfidenceRange = errors.New("confidence must be within [0, 1]")
	// ErrTimestampRange is returned for a timestamp the log store cannot order.
	ErrTimestampRange = errors.New("timestamp is out of range")
)

// The log store orders records by Unix nanoseconds, which cover years 1678 to 2262.
var (
	// MinTimestamp is the earliest storable timestamp.
	MinTimestamp = time.Unix(0, math.MinInt64)
	// MaxTimestamp is the first timestamp past the storable range.
	MaxTimestamp = time.Unix(0, math.MaxInt64)
)

// TimestampInRange reports whether ts is within [MinTimestamp, MaxTimestamp).
func TimestampInRange(ts time.Time) bool {
	return !ts.Before(MinTimestamp) && ts.Before(MaxTimestamp)
}

// NewRecord builds a record with a fresh identity.
func NewRecord(object string, confidence float64, timestamp time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		Object:     object,
		Confidence: confidence,
		Timestamp:  timestamp,
	}
}

// Validate checks the record fields.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Object) == "" {
		return ErrMissingObject
	}

	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("%w: %v", ErrConfidenceRange, r.Confidence)
	}

	if !TimestampInRange(r.Timestamp) {
		return fmt.Errorf("%w: %s", ErrTimestampRange, r.Timestamp.Format(time.RFC3339))
	}

	return nil
}

// alertJSON is the structured alert form.
type alertJSON struct {
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// ParseAlert turns an alert payload into a record.
// Both the JSON form and the legacy text form
// "Alert! Detected: person, Confidence: 0.87, Size: 5123.00, Timestamp: 2024-01-01 10:00:00"
// are accepted. Alerts without a timestamp are stamped with now.
func ParseAlert(payload []byte, now time.Time) (Record, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Record{}, ErrEmptyAlert
	}

	var (
		rec Record
		err error
	)

	if payload[0] == '{' {
		rec, err = parseJSON(payload, now)
	} else {
		rec, err = parseText(string(payload), now)
	}

	if err != nil {
		return Record{}, err
	}

	if err = rec.Validate(); err != nil {
		return Record{}, err
	}

	return rec, nil
}

// parseJSON decodes the structured alert form.
func parseJSON(payload []byte, now time.Time) (Record, error) {
	var alert alertJSON
	if err := json.Unmarshal(payload, &alert); err != nil {
		return Record{}, fmt.Errorf("decode alert: %w", err)
	}

	ts, err := parseTimestamp(alert.Timestamp, now)
	if err != nil {
		return Record{}, err
	}

	return NewRecord(strings.TrimSpace(alert.Object), alert.Confidence, ts), nil
}

// parseText decodes the comma-separated "Key: value" alert form.
func parseText(payload string, now time.Time) (Record, error) {
	var (
		object     string
		confidence float64
		stamp      string
	)

	for _, part := range strings.Split(payload, ",") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)

		switch key = strings.ToLower(strings.TrimSpace(key)); {
		case strings.HasSuffix(key, "detected"):
			object = value
		case key == "confidence":
			c, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Record{}, fmt.Errorf("parse confidence %q: %w", value, err)
			}

			confidence = c
		case key == "timestamp":
			stamp = value
		}
	}

	ts, err := parseTimestamp(stamp, now)
	if err != nil {
		return Record{}, err
	}

	return NewRecord(object, confidence, ts), nil
}

// parseTimestamp accepts RFC 3339 and the legacy layout in local time.
func parseTimestamp(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now, nil
	}

	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}

	ts, err := time.ParseInLocation(LegacyTimestampLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}

	return ts, nil
}
