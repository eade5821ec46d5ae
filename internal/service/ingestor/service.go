package ingestor

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oshokin/home-security/internal/api/mqtt"
	"github.com/oshokin/home-security/internal/domain/detection"
	"github.com/oshokin/home-security/internal/logger"
)

// Commands understood on the command topic. Everything else belongs to the controller.
const (
	commandStart = "start"
	commandStop  = "stop"
)

// Inserter stores records in the active log.
type Inserter interface {
	Insert(ctx context.Context, record detection.Record) error
}

// Forwarder copies records and rejected alerts elsewhere. It is satisfied by kafka.Producer.
type Forwarder interface {
	Forward(ctx context.Context, record detection.Record, receivedAt time.Time) error
	DeadLetter(ctx context.Context, topic string, payload []byte, reason error, receivedAt time.Time) error
}

// service turns alerts into stored records.
type service struct {
	// store is the active log.
	store Inserter
	// forwarder is optional.
	forwarder Forwarder
	// timeout bounds every store and forward call.
	timeout time.Duration
	// paused drops alerts while set.
	paused atomic.Bool
	// now stamps alerts without a timestamp.
	now func() time.Time
}

// newService creates an ingestor that starts in the running state.
func newService(store Inserter, forwarder Forwarder, timeout time.Duration) *service {
	return &service{
		store:     store,
		forwarder: forwarder,
		timeout:   timeout,
		now:       time.Now,
	}
}

// HandleAlert is the MQTT handler of the alerts topic.
func (s *service) HandleAlert(ctx context.Context) mqtt.Handler {
	return func(msg mqtt.Message) {
		s.ingest(ctx, msg)
	}
}

// HandleCommand is the MQTT handler of the command topic.
func (s *service) HandleCommand(ctx context.Context) mqtt.Handler {
	return func(msg mqtt.Message) {
		switch strings.TrimSpace(string(msg.Payload)) {
		case commandStart:
			if s.paused.Swap(false) {
				logger.Info(ctx, "Ingestion resumed")
			}
		case commandStop:
			if !s.paused.Swap(true) {
				logger.Info(ctx, "Ingestion paused")
			}
		}
	}
}

// ingest parses, stores and forwards one alert.
func (s *service) ingest(ctx context.Context, msg mqtt.Message) {
	if s.paused.Load() {
		logger.Debug(ctx, "Ingestion paused, alert dropped")

		return
	}

	receivedAt := s.now()

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	record, err := detection.ParseAlert(msg.Payload, receivedAt)
	if err != nil {
		logger.WarnKV(ctx, "Invalid alert", "topic", msg.Topic, "payload", truncate(msg.Payload), "error", err)

		if s.forwarder != nil {
			if dlqErr := s.forwarder.DeadLetter(ctx, msg.Topic, msg.Payload, err, receivedAt); dlqErr != nil {
				logger.ErrorKV(ctx, "Failed to write dead letter", "error", dlqErr)
			}
		}

		return
	}

	if err = s.store.Insert(ctx, record); err != nil {
		logger.ErrorKV(ctx, "Failed to store detection", "id", record.ID, "error", err)

		return
	}

	logger.InfoKV(ctx, "Detection stored",
		"id", record.ID,
		"object", record.Object,
		"confidence", record.Confidence,
		"timestamp", record.Timestamp.Format(time.RFC3339),
	)

	if s.forwarder == nil {
		return
	}

	if err = s.forwarder.Forward(ctx, record, receivedAt); err != nil {
		logger.ErrorKV(ctx, "Failed to forward detection", "id", record.ID, "error", err)
	}
}

// callContext applies the configured timeout.
func (s *service) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, s.timeout)
}

// maxLoggedPayload caps payload samples in log messages.
const maxLoggedPayload = 256

// truncate returns a printable sample of payload.
func truncate(payload []byte) string {
	if len(payload) <= maxLoggedPayload {
		return string(payload)
	}

	return string(payload[:maxLoggedPayload]) + "..."
}
