package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, format validations and defaults.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)

	// Defaults for an empty file.
	settings := new(Config)
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultControlAddress, settings.ControlAddress)
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultTick, settings.Tick)
	require.Equal(t, "home_security/commands", settings.Topics.Commands)
	require.Equal(t, "home_security/status", settings.Topics.Status)
	require.Equal(t, 440, settings.Alarm.FrequencyHz)
	require.Equal(t, 1000, settings.Alarm.DurationMs)
	require.Equal(t, BackendSimulated, settings.Actuators.Backend)
	require.Equal(t, 14, settings.Actuators.BuzzerPin)
	require.Equal(t, byte(1), settings.Broker.QualityOfService())
	require.Empty(t, settings.Kafka.Topic)

	// Bad control address.
	settings = &Config{ControlAddress: "bad:address"}
	require.Error(t, Validate(settings))

	// Bad QoS.
	qos := byte(3)
	settings = &Config{Broker: Broker{QoS: &qos}}
	require.ErrorIs(t, Validate(settings), errInvalidQoS)

	// Negative alarm setting.
	settings = &Config{Alarm: Alarm{FrequencyHz: -5}}
	require.ErrorIs(t, Validate(settings), errNonPositiveSetting)

	// Durations that would overflow the scheduler phases.
	settings = &Config{Alarm: Alarm{DurationMs: 10_000_000_000_000}}
	require.ErrorIs(t, Validate(settings), errSettingTooLarge)

	settings = &Config{Flash: Flash{PeriodSeconds: 86_401}}
	require.ErrorIs(t, Validate(settings), errSettingTooLarge)

	// Unknown backend.
	settings = &Config{Actuators: Actuators{Backend: "pwm"}}
	require.ErrorIs(t, Validate(settings), errUnknownBackend)

	// Kafka topics default only when brokers are set.
	settings = &Config{Kafka: Kafka{Brokers: []string{"127.0.0.1:9092"}}}
	require.NoError(t, Validate(settings))
	require.Equal(t, "detections", settings.Kafka.Topic)
	require.Equal(t, "detections-dlq", settings.Kafka.DeadLetterTopic)
}

// TestValidate_KeepsExplicitPins ensures a custom pin map is not overwritten.
func TestValidate_KeepsExplicitPins(t *testing.T) {
	t.Parallel()

	settings := &Config{
		Actuators: Actuators{
			Backend:     BackendGPIO,
			BuzzerPin:   0,
			FirstRedPin: 5,
		},
	}

	require.NoError(t, Validate(settings))
	require.Equal(t, 0, settings.Actuators.BuzzerPin)
	require.Equal(t, 5, settings.Actuators.FirstRedPin)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	qos := byte(0)
	settings := &Config{
		Broker: Broker{
			URL:      "tcp://127.0.0.1:1883",
			ClientID: "controller-test",
			QoS:      &qos,
		},
		ControlAddress: "127.0.0.1:50061",
		Timeout:        2 * time.Second,
		Alarm:          Alarm{FrequencyHz: 2, DurationMs: 500},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.Broker.URL, loaded.Broker.URL)
	require.Equal(t, byte(0), loaded.Broker.QualityOfService())
	require.Equal(t, settings.ControlAddress, loaded.ControlAddress)
	require.Equal(t, 2*time.Second, loaded.Timeout)
	require.Equal(t, 2, loaded.Alarm.FrequencyHz)
	require.Equal(t, 500, loaded.Alarm.DurationMs)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_Missing verifies a missing file is reported.
func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
