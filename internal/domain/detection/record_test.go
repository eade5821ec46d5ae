package detection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseAlert_LegacyText parses the alert format published by the vision pipeline.
func TestParseAlert_LegacyText(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := []byte("Alert! Detected: person, Confidence: 0.87, Size: 5123.00, Timestamp: 2024-01-01 10:00:00")

	rec, err := ParseAlert(payload, now)
	require.NoError(t, err)
	require.Equal(t, "person", rec.Object)
	require.InDelta(t, 0.87, rec.Confidence, 1e-9)
	require.True(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local).Equal(rec.Timestamp))
	require.NotEmpty(t, rec.ID)
}

// TestParseAlert_JSON parses the structured alert form and defaults the timestamp.
func TestParseAlert_JSON(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rec, err := ParseAlert([]byte(`{"object":"car","confidence":0.6,"timestamp":"2023-12-31T23:59:00Z"}`), now)
	require.NoError(t, err)
	require.Equal(t, "car", rec.Object)
	require.True(t, time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC).Equal(rec.Timestamp))

	rec, err = ParseAlert([]byte(`{"object":"dog","confidence":0.9}`), now)
	require.NoError(t, err)
	require.Equal(t, now, rec.Timestamp)
}

// TestParseAlert_Rejects covers malformed alerts.
func TestParseAlert_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Now()

	_, err := ParseAlert([]byte("   "), now)
	require.ErrorIs(t, err, ErrEmptyAlert)

	_, err = ParseAlert([]byte(`{"confidence":0.5}`), now)
	require.ErrorIs(t, err, ErrMissingObject)

	_, err = ParseAlert([]byte(`{"object":"cat","confidence":1.5}`), now)
	require.ErrorIs(t, err, ErrConfidenceRange)

	_, err = ParseAlert([]byte("Alert! Detected: person, Confidence: NaN, Size: 10, Timestamp: 2024-01-01 10:00:00"), now)
	require.ErrorIs(t, err, ErrConfidenceRange)

	_, err = ParseAlert([]byte("Alert! Detected: person, Confidence: -Inf"), now)
	require.ErrorIs(t, err, ErrConfidenceRange)

	_, err = ParseAlert([]byte(`{"object":"cat","confidence":0.5,"timestamp":"1000-01-01T00:00:00Z"}`), now)
	require.ErrorIs(t, err, ErrTimestampRange)

	_, err = ParseAlert([]byte("Alert! Detected: cat, Confidence: 0.5, Timestamp: 3000-01-01 00:00:00"), now)
	require.ErrorIs(t, err, ErrTimestampRange)

	_, err = ParseAlert([]byte("Alert! Detected: cat, Confidence: high"), now)
	require.Error(t, err)

	_, err = ParseAlert([]byte("Alert! Detected: cat, Confidence: 0.5, Timestamp: yesterday"), now)
	require.Error(t, err)

	_, err = ParseAlert([]byte(`{"object":`), now)
	require.Error(t, err)
}

// TestTimestampInRange checks both ends of the storable range.
func TestTimestampInRange(t *testing.T) {
	t.Parallel()

	require.True(t, TimestampInRange(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, TimestampInRange(MinTimestamp))
	require.False(t, TimestampInRange(MaxTimestamp))
	require.False(t, TimestampInRange(time.Date(1000, time.January, 1, 0, 0, 0, 0, time.UTC)))
	require.False(t, TimestampInRange(time.Date(3000, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

// TestNewRecord_UniqueIDs ensures every record gets its own identity.
func TestNewRecord_UniqueIDs(t *testing.T) {
	t.Parallel()

	a := NewRecord("person", 0.5, time.Now())
	b := NewRecord("person", 0.5, time.Now())
	require.NotEqual(t, a.ID, b.ID)
}
