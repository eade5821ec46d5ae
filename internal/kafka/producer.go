package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/detection"
)

// Header keys attached to every message.
const (
	headerReceivedAt = "receivedAt"
	headerSource     = "source"
	sourceName       = "homesec-ingestor"
)

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer holds writers for the main topic and the dead-letter topic.
type Producer struct {
	main messageWriter
	dlq  messageWriter
}

// deadLetter is the envelope of a rejected alert.
type deadLetter struct {
	Error      string          `json:"error"`
	Original   json.RawMessage `json:"original,omitempty"`
	Raw        string          `json:"raw,omitempty"`
	Topic      string          `json:"topic"`
	ReceivedAt string          `json:"receivedAt"`
}

// NewProducer creates writers for the configured topics.
func NewProducer(settings config.Kafka) *Producer {
	balancer := &kafka.Hash{}

	return &Producer{
		main: &kafka.Writer{
			Addr:         kafka.TCP(settings.Brokers...),
			Topic:        settings.Topic,
			Balancer:     balancer,
			BatchSize:    100,
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(settings.Brokers...),
			Topic:        settings.DeadLetterTopic,
			Balancer:     balancer,
			BatchSize:    10,
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Close flushes and closes both writers.
func (p *Producer) Close() error {
	return errors.Join(p.main.Close(), p.dlq.Close())
}

// Forward writes an accepted record to the main topic.
func (p *Producer) Forward(ctx context.Context, record detection.Record, receivedAt time.Time) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	err = p.main.WriteMessages(ctx, kafka.Message{
		Key:     []byte(record.Object),
		Value:   value,
		Headers: headers(receivedAt),
	})
	if err != nil {
		return fmt.Errorf("write record %s: %w", record.ID, err)
	}

	return nil
}

// DeadLetter writes a rejected alert with its parse error to the dead-letter topic.
func (p *Producer) DeadLetter(ctx context.Context, topic string, payload []byte, reason error, receivedAt time.Time) error {
	envelope := deadLetter{
		Error:      reason.Error(),
		Topic:      topic,
		ReceivedAt: receivedAt.UTC().Format(time.RFC3339Nano),
	}

	if json.Valid(payload) {
		envelope.Original = payload
	} else {
		envelope.Raw = string(payload)
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	err = p.dlq.WriteMessages(ctx, kafka.Message{
		Key:     []byte("invalid"),
		Value:   value,
		Headers: headers(receivedAt),
	})
	if err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}

	return nil
}

// headers returns the common message headers.
func headers(receivedAt time.Time) []kafka.Header {
	return []kafka.Header{
		{Key: headerReceivedAt, Value: []byte(receivedAt.UTC().Format(time.RFC3339Nano))},
		{Key: headerSource, Value: []byte(sourceName)},
	}
}
