package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/home-security/internal/domain/device"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_SaveLoad_Roundtrip keeps settings and flags but drops scheduler phases.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	ts := time.Now().UTC().Truncate(time.Second)
	want := &device.State{
		Settings: device.Settings{
			AlarmFrequencyHz:     2,
			AlarmDurationMs:      500,
			FlashPeriodSeconds:   3,
			FlashDurationSeconds: 4,
		},
		AlarmActive:        true,
		BuzzerOn:           true,
		NextBuzzerToggleAt: ts.Add(time.Second),
		UpdatedAt:          ts,
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Settings, got.Settings)
	require.True(t, got.AlarmActive)
	require.False(t, got.FlashActive)
	require.False(t, got.BuzzerOn)
	require.True(t, got.NextBuzzerToggleAt.IsZero())
	require.True(t, want.UpdatedAt.Equal(got.UpdatedAt))

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_InvalidSettings rejects a file with non-positive or oversized settings.
func TestFileRepository_InvalidSettings(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"frequency": 0, "duration": 10}`), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, os.WriteFile(file, []byte(
		`{"frequency": 440, "duration": 10000000000000, "flash_freq": 1, "flash_duration": 1}`), 0o600))

	_, err = NewFileRepository(file).Load(context.Background())
	require.ErrorIs(t, err, ErrInvalidState)
}

// TestFileRepository_Corrupted reports a decode error.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(file, []byte("not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
