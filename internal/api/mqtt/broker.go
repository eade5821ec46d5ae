package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/logger"
)

// Message is one payload received on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler receives messages of one subscription.
type Handler func(msg Message)

// Publisher sends payloads to topics. It is satisfied by Broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

const (
	// backoffStart is the first delay between connection attempts.
	backoffStart = time.Second
	// backoffMax caps the delay between connection attempts.
	backoffMax = 30 * time.Second
	// disconnectQuiesce is how long Close waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250
)

// ErrNotConnected is returned by Publish before Connect succeeds.
var ErrNotConnected = errors.New("mqtt broker is not connected")

// Broker wraps a paho client.
type Broker struct {
	// client is the underlying paho client.
	client paho.Client
	// qos is used for every publish and subscribe.
	qos byte
	// url is kept for log messages.
	url string

	// mu protects handlers.
	mu sync.Mutex
	// handlers maps topics to their handler.
	handlers map[string]Handler
}

// New creates a broker client from the settings. It does not connect.
func New(settings config.Broker) *Broker {
	b := &Broker{
		qos:      settings.QualityOfService(),
		url:      settings.URL,
		handlers: make(map[string]Handler),
	}

	opts := paho.NewClientOptions().
		AddBroker(settings.URL).
		SetClientID(settings.ClientID).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(backoffMax)

	if settings.Username != "" {
		opts.SetUsername(settings.Username)
	}

	if settings.Password != "" {
		opts.SetPassword(settings.Password)
	}

	opts.SetOnConnectHandler(func(paho.Client) {
		logger.InfoKV(context.Background(), "Connected to MQTT broker", "url", b.url)
		b.resubscribe()
	})

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.WarnKV(context.Background(), "MQTT connection lost", "url", b.url, "error", err)
	})

	b.client = paho.NewClient(opts)

	return b
}

// Connect dials the broker, retrying with exponential backoff until ctx ends.
func (b *Broker) Connect(ctx context.Context) error {
	backoff := backoffStart

	for {
		err := wait(ctx, b.client.Connect())
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("connect to %s: %w", b.url, ctx.Err())
		}

		logger.WarnKV(ctx, "MQTT connect failed", "url", b.url, "retry_in", backoff.String(), "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("connect to %s: %w", b.url, ctx.Err())
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, backoffMax)
	}
}

// Subscribe registers handler for topic and subscribes at once when connected.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	b.handlers[topic] = handler
	b.mu.Unlock()

	if !b.client.IsConnectionOpen() {
		return nil
	}

	return b.subscribe(ctx, topic, handler)
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if !b.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	if err := wait(ctx, b.client.Publish(topic, b.qos, false, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (b *Broker) Close() {
	b.client.Disconnect(disconnectQuiesce)
}

// resubscribe restores every registered subscription after a (re)connect.
func (b *Broker) resubscribe() {
	b.mu.Lock()

	handlers := make(map[string]Handler, len(b.handlers))
	for topic, handler := range b.handlers {
		handlers[topic] = handler
	}

	b.mu.Unlock()

	ctx := context.Background()

	for topic, handler := range handlers {
		// Blocking on the token inside the connect handler stalls paho's reconnect.
		go func() {
			if err := b.subscribe(ctx, topic, handler); err != nil {
				logger.ErrorKV(ctx, "MQTT resubscribe failed", "topic", topic, "error", err)
			}
		}()
	}
}

// subscribe issues one SUBSCRIBE and waits for its acknowledgement.
func (b *Broker) subscribe(ctx context.Context, topic string, handler Handler) error {
	token := b.client.Subscribe(topic, b.qos, func(_ paho.Client, msg paho.Message) {
		handler(Message{
			Topic:   msg.Topic(),
			Payload: msg.Payload(),
		})
	})

	if err := wait(ctx, token); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	logger.DebugKV(ctx, "Subscribed to MQTT topic", "topic", topic, "qos", b.qos)

	return nil
}

// wait blocks until token completes or ctx ends.
func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
