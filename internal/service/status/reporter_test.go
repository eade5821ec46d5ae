package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-security/internal/domain/device"
)

var errTestStoreDown = errors.New("store is down")

type fakeCounter struct {
	active   int64
	archived int64
	err      error
}

func (f *fakeCounter) CountActive(context.Context) (int64, error) {
	return f.active, f.err
}

func (f *fakeCounter) CountArchived(context.Context) (int64, error) {
	return f.archived, f.err
}

func newHolder() *device.Holder {
	return device.NewHolder(device.Settings{
		AlarmFrequencyHz:     440,
		AlarmDurationMs:      1000,
		FlashPeriodSeconds:   2,
		FlashDurationSeconds: 3,
	})
}

// TestReport reflects the live state and counts.
func TestReport(t *testing.T) {
	t.Parallel()

	var (
		holder  = newHolder()
		counter = &fakeCounter{active: 7, archived: 2}
		r       = NewReporter(holder, counter, time.Second)
	)

	holder.Update(func(state *device.State) {
		state.AlarmActive = true
		state.AlarmFrequencyHz = 2
	})

	m := r.Report(context.Background())
	require.True(t, m.AlarmActive)
	require.Equal(t, 2, m.Frequency)
	require.Equal(t, 1000, m.Duration)
	require.False(t, m.FlashActive)
	require.Equal(t, 2, m.FlashFreq)
	require.Equal(t, 3, m.FlashDuration)
	require.NotNil(t, m.LogCount)
	require.Equal(t, int64(7), *m.LogCount)
	require.Equal(t, int64(2), *m.ArchiveCount)
	require.Empty(t, m.LogCountError)

	// Counts are read at call time, not cached.
	counter.active = 8
	require.Equal(t, int64(8), *r.Report(context.Background()).LogCount)
}

// TestReport_StoreUnavailable still reports the state.
func TestReport_StoreUnavailable(t *testing.T) {
	t.Parallel()

	r := NewReporter(newHolder(), &fakeCounter{err: errTestStoreDown}, time.Second)

	m := r.Report(context.Background())
	require.Nil(t, m.LogCount)
	require.Nil(t, m.ArchiveCount)
	require.Equal(t, errTestStoreDown.Error(), m.LogCountError)
	require.Equal(t, 440, m.Frequency)

	data, err := m.JSON()
	require.NoError(t, err)
	require.Contains(t, string(data), `"log_count":null`)
}

// TestMessage_StructRoundtrip converts through the gRPC representation.
func TestMessage_StructRoundtrip(t *testing.T) {
	t.Parallel()

	count := int64(5)
	want := Message{
		AlarmActive:   true,
		Frequency:     2,
		Duration:      500,
		FlashActive:   true,
		FlashFreq:     1,
		FlashDuration: 1,
		LogCount:      &count,
		UpdatedAt:     "2024-01-01T00:00:00Z",
	}

	s, err := want.Struct()
	require.NoError(t, err)
	require.Equal(t, 2.0, s.GetFields()["frequency"].GetNumberValue())

	got, err := FromStruct(s)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
