package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/home-security/internal/domain/device"
	"github.com/oshokin/home-security/internal/logger"
)

// Counter reads the log sizes. It is satisfied by logstore.Repository.
type Counter interface {
	CountActive(ctx context.Context) (int64, error)
	CountArchived(ctx context.Context) (int64, error)
}

// Snapshotter returns a consistent copy of the device state.
type Snapshotter interface {
	Snapshot() device.State
}

// Message is the status payload published on the status topic.
type Message struct {
	AlarmActive   bool   `json:"alarm_active"`
	Frequency     int    `json:"frequency"`
	Duration      int    `json:"duration"`
	FlashActive   bool   `json:"flash_active"`
	FlashFreq     int    `json:"flash_freq"`
	FlashDuration int    `json:"flash_duration"`
	LogCount      *int64 `json:"log_count"`
	// LogCountError is set when LogCount is unavailable.
	LogCountError string `json:"log_count_error,omitempty"`
	ArchiveCount  *int64 `json:"archive_count"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// JSON encodes the message for the status topic.
func (m Message) JSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}

	return data, nil
}

// Struct converts the message for the gRPC control API.
func (m Message) Struct() (*structpb.Struct, error) {
	data, err := m.JSON()
	if err != nil {
		return nil, err
	}

	var out structpb.Struct
	if err = protojson.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("convert status: %w", err)
	}

	return &out, nil
}

// FromStruct decodes a message received from the gRPC control API.
func FromStruct(in *structpb.Struct) (Message, error) {
	data, err := protojson.Marshal(in)
	if err != nil {
		return Message{}, fmt.Errorf("convert status: %w", err)
	}

	var m Message
	if err = json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode status: %w", err)
	}

	return m, nil
}

// Reporter builds status messages.
type Reporter struct {
	// state is read once per report.
	state Snapshotter
	// counter is queried live on every report.
	counter Counter
	// timeout bounds each count query.
	timeout time.Duration
}

// NewReporter creates a reporter. A non-positive timeout disables the per-query deadline.
func NewReporter(state Snapshotter, counter Counter, timeout time.Duration) *Reporter {
	return &Reporter{
		state:   state,
		counter: counter,
		timeout: timeout,
	}
}

// Report combines the current device state with live log counts.
// A failing store leaves the counts null instead of failing the report.
func (r *Reporter) Report(ctx context.Context) Message {
	snapshot := r.state.Snapshot()

	m := Message{
		AlarmActive:   snapshot.AlarmActive,
		Frequency:     snapshot.AlarmFrequencyHz,
		Duration:      snapshot.AlarmDurationMs,
		FlashActive:   snapshot.FlashActive,
		FlashFreq:     snapshot.FlashPeriodSeconds,
		FlashDuration: snapshot.FlashDurationSeconds,
	}

	if !snapshot.UpdatedAt.IsZero() {
		m.UpdatedAt = snapshot.UpdatedAt.UTC().Format(time.RFC3339)
	}

	active, err := r.count(ctx, r.counter.CountActive)
	if err != nil {
		logger.WarnKV(ctx, "Active log count unavailable", "error", err)

		m.LogCountError = err.Error()
	} else {
		m.LogCount = &active
	}

	archived, err := r.count(ctx, r.counter.CountArchived)
	if err != nil {
		logger.WarnKV(ctx, "Archive log count unavailable", "error", err)
	} else {
		m.ArchiveCount = &archived
	}

	return m
}

// count runs one count query under the reporter timeout.
func (r *Reporter) count(ctx context.Context, query func(context.Context) (int64, error)) (int64, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	return query(ctx)
}
