package ingestor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-security/internal/api/mqtt"
	"github.com/oshokin/home-security/internal/domain/detection"
	"github.com/oshokin/home-security/internal/repository/logstore"
)

type memoryStore struct {
	mu      sync.Mutex
	records []detection.Record
	err     error
}

func (m *memoryStore) Insert(_ context.Context, record detection.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.records = append(m.records, record)

	return nil
}

func (m *memoryStore) stored() []detection.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]detection.Record(nil), m.records...)
}

type deadLetter struct {
	topic   string
	payload []byte
	reason  error
}

type recordingForwarder struct {
	mu        sync.Mutex
	forwarded []detection.Record
	dead      []deadLetter
}

func (f *recordingForwarder) Forward(_ context.Context, record detection.Record, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.forwarded = append(f.forwarded, record)

	return nil
}

func (f *recordingForwarder) DeadLetter(_ context.Context, topic string, payload []byte, reason error, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dead = append(f.dead, deadLetter{topic: topic, payload: payload, reason: reason})

	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store Inserter, forwarder Forwarder) *service {
	svc := newService(store, forwarder, time.Second)
	svc.now = func() time.Time { return fixedNow }

	return svc
}

func TestHandleAlert_StoresTextAlert(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	forwarder := &recordingForwarder{}
	handle := newTestService(store, forwarder).HandleAlert(t.Context())

	handle(mqtt.Message{
		Topic:   "home_security/alerts",
		Payload: []byte("Alert! Detected: person, Confidence: 0.91, Size: 120x80, Timestamp: 2026-03-01 11:59:30"),
	})

	records := store.stored()
	require.Len(t, records, 1)
	require.Equal(t, "person", records[0].Object)
	require.InDelta(t, 0.91, records[0].Confidence, 1e-9)
	require.NotEmpty(t, records[0].ID)

	require.Len(t, forwarder.forwarded, 1)
	require.Equal(t, records[0].ID, forwarder.forwarded[0].ID)
	require.Empty(t, forwarder.dead)
}

func TestHandleAlert_StoresJSONAlert(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	handle := newTestService(store, nil).HandleAlert(t.Context())

	handle(mqtt.Message{
		Topic:   "home_security/alerts",
		Payload: []byte(`{"object":"car","confidence":0.5}`),
	})

	records := store.stored()
	require.Len(t, records, 1)
	require.Equal(t, "car", records[0].Object)
}

func TestHandleAlert_MalformedGoesToDeadLetter(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	forwarder := &recordingForwarder{}
	handle := newTestService(store, forwarder).HandleAlert(t.Context())

	handle(mqtt.Message{Topic: "home_security/alerts", Payload: []byte(`{"object":"","confidence":0.5}`)})

	require.Empty(t, store.stored())
	require.Empty(t, forwarder.forwarded)
	require.Len(t, forwarder.dead, 1)
	require.Equal(t, "home_security/alerts", forwarder.dead[0].topic)
	require.ErrorIs(t, forwarder.dead[0].reason, detection.ErrMissingObject)
}

func TestHandleAlert_StoreFailureIsNotForwarded(t *testing.T) {
	t.Parallel()

	store := &memoryStore{err: errors.New("disk full")}
	forwarder := &recordingForwarder{}
	handle := newTestService(store, forwarder).HandleAlert(t.Context())

	handle(mqtt.Message{Topic: "alerts", Payload: []byte(`{"object":"dog","confidence":0.7}`)})

	require.Empty(t, forwarder.forwarded)
	require.Empty(t, forwarder.dead)
}

func TestHandleCommand_PauseAndResume(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	svc := newTestService(store, nil)
	alerts := svc.HandleAlert(t.Context())
	commands := svc.HandleCommand(t.Context())
	alert := mqtt.Message{Topic: "alerts", Payload: []byte(`{"object":"cat","confidence":0.4}`)}

	commands(mqtt.Message{Topic: "commands", Payload: []byte("stop")})
	alerts(alert)
	require.Empty(t, store.stored())

	// Controller commands share the topic and must not resume ingestion.
	commands(mqtt.Message{Topic: "commands", Payload: []byte("set_alarm freq=440 duration=1000")})
	alerts(alert)
	require.Empty(t, store.stored())

	commands(mqtt.Message{Topic: "commands", Payload: []byte(" start\n")})
	alerts(alert)
	require.Len(t, store.stored(), 1)
}

func TestHandleAlert_SQLiteStore(t *testing.T) {
	t.Parallel()

	store, err := logstore.Open(t.TempDir() + "/ingest.db")
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	handle := newTestService(store, nil).HandleAlert(t.Context())

	for range 3 {
		handle(mqtt.Message{Topic: "alerts", Payload: []byte(`{"object":"person","confidence":0.8}`)})
	}

	count, err := store.CountActive(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncate([]byte("short")))

	long := make([]byte, maxLoggedPayload+10)
	for i := range long {
		long[i] = 'x'
	}

	require.Len(t, truncate(long), maxLoggedPayload+3)
}
