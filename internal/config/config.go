package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/home-security/internal/domain/device"
)

// Config holds the settings shared by the home-security binaries.
type Config struct {
	// Broker describes the MQTT broker connection. An empty URL disables MQTT.
	Broker Broker `yaml:"broker"`
	// Topics names the MQTT topics the binaries read and write.
	Topics Topics `yaml:"topics"`
	// ControlAddress is the gRPC address of the controller's local control API.
	ControlAddress string `yaml:"control_address"`
	// Database is the path to the SQLite file holding the detection logs.
	Database string `yaml:"database"`
	// StateFile is the path to the JSON file storing device settings.
	StateFile string `yaml:"state_file"`
	// Timeout is the duration for store operations, network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// Tick is the period of the actuator scheduler.
	Tick time.Duration `yaml:"tick"`
	// Alarm holds boot defaults of the audible actuator.
	Alarm Alarm `yaml:"alarm"`
	// Flash holds boot defaults of the visual actuator.
	Flash Flash `yaml:"flash"`
	// Actuators selects and configures the physical output backend.
	Actuators Actuators `yaml:"actuators"`
	// Kafka configures optional forwarding of ingested detections.
	Kafka Kafka `yaml:"kafka"`
	// LogLevel is the minimum level of log messages.
	LogLevel string `yaml:"log_level"`
}

// Broker holds MQTT connection parameters.
type Broker struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// QoS is the MQTT quality of service; nil means at-least-once.
	QoS *byte `yaml:"qos,omitempty"`
}

// QualityOfService returns the configured QoS or the at-least-once default.
func (b Broker) QualityOfService() byte {
	if b.QoS == nil {
		return defaultQoS
	}

	return *b.QoS
}

// Topics names the logical channels of the system.
type Topics struct {
	// Commands is the inbound command channel.
	Commands string `yaml:"commands"`
	// Status is the outbound status channel.
	Status string `yaml:"status"`
	// Alerts is the producer-owned detection channel.
	Alerts string `yaml:"alerts"`
	// Devices is the prefix of trigger_device notifications.
	Devices string `yaml:"devices"`
}

// Alarm holds audible actuator parameters.
type Alarm struct {
	FrequencyHz int `yaml:"frequency_hz"`
	DurationMs  int `yaml:"duration_ms"`
}

// Flash holds visual actuator parameters.
type Flash struct {
	PeriodSeconds   int `yaml:"period_seconds"`
	DurationSeconds int `yaml:"duration_seconds"`
}

// Actuators configures the output backend and pin assignment.
type Actuators struct {
	// Backend is either BackendSimulated or BackendGPIO.
	Backend string `yaml:"backend"`
	// Chip is the GPIO character device name, e.g. gpiochip0.
	Chip string `yaml:"chip"`
	// ActiveLow inverts every output line.
	ActiveLow     bool `yaml:"active_low"`
	BuzzerPin     int  `yaml:"buzzer_pin"`
	FirstRedPin   int  `yaml:"first_red_pin"`
	FirstBluePin  int  `yaml:"first_blue_pin"`
	SecondRedPin  int  `yaml:"second_red_pin"`
	SecondBluePin int  `yaml:"second_blue_pin"`
}

// Kafka configures the detection forwarder. Empty Brokers disables it.
type Kafka struct {
	Brokers         []string `yaml:"brokers"`
	Topic           string   `yaml:"topic"`
	DeadLetterTopic string   `yaml:"dead_letter_topic"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "home-security-settings.yaml"

	// DefaultStateFilename is the default filename for persisted device settings.
	DefaultStateFilename = "home-security-state.json"

	// DefaultDatabaseFilename is the default SQLite file for detection logs.
	DefaultDatabaseFilename = "home-security.db"

	// DefaultControlAddress is the default gRPC control API address.
	DefaultControlAddress = "127.0.0.1:50061"

	// DefaultTimeout is the default duration for store and network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultTick is the default actuator scheduler period.
	DefaultTick = 100 * time.Millisecond

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600

	// BackendSimulated keeps actuator levels in memory and logs transitions.
	BackendSimulated = "simulated"
	// BackendGPIO drives Linux GPIO character-device lines.
	BackendGPIO = "gpio"
)

// Default values mirror the wiring of the reference board.
const (
	defaultClientID        = "homesec"
	defaultQoS             = 1
	defaultCommandsTopic   = "home_security/commands"
	defaultStatusTopic     = "home_security/status"
	defaultAlertsTopic     = "home_security/alerts"
	defaultDevicesTopic    = "home_security/devices"
	defaultFrequencyHz     = 440
	defaultDurationMs      = 1000
	defaultFlashPeriod     = 1
	defaultFlashDuration   = 1
	defaultChip            = "gpiochip0"
	defaultBuzzerPin       = 14
	defaultFirstRedPin     = 23
	defaultFirstBluePin    = 22
	defaultSecondRedPin    = 21
	defaultSecondBluePin   = 19
	defaultKafkaTopic      = "detections"
	defaultKafkaDeadLetter = "detections-dlq"
	maxQoS                 = 2
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidQoS is returned when the MQTT QoS is outside 0..2.
	errInvalidQoS = errors.New("broker qos must be 0, 1 or 2")
	// errNonPositiveSetting is returned when an alarm or flash default is not positive.
	errNonPositiveSetting = errors.New("alarm and flash settings must be positive")
	// errSettingTooLarge is returned when an alarm or flash default exceeds its bound.
	errSettingTooLarge = errors.New("alarm or flash setting is too large")
	// errUnknownBackend is returned for an unsupported actuator backend.
	errUnknownBackend = errors.New("unknown actuator backend")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold broker credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for formatting errors and fills defaults.
//
//nolint:cyclop,funlen // A flat list of defaults reads better than a table of closures.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.Broker.URL != "" {
		if _, err := url.Parse(settings.Broker.URL); err != nil {
			return fmt.Errorf("invalid broker url: %w", err)
		}
	}

	if settings.Broker.ClientID == "" {
		settings.Broker.ClientID = defaultClientID
	}

	if settings.Broker.QualityOfService() > maxQoS {
		return errInvalidQoS
	}

	if settings.Topics.Commands == "" {
		settings.Topics.Commands = defaultCommandsTopic
	}

	if settings.Topics.Status == "" {
		settings.Topics.Status = defaultStatusTopic
	}

	if settings.Topics.Alerts == "" {
		settings.Topics.Alerts = defaultAlertsTopic
	}

	if settings.Topics.Devices == "" {
		settings.Topics.Devices = defaultDevicesTopic
	}

	if settings.ControlAddress == "" {
		settings.ControlAddress = DefaultControlAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	if settings.Database == "" {
		settings.Database = DefaultDatabaseFilename
	}

	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.Tick <= 0 {
		settings.Tick = DefaultTick
	}

	if err := validateOutputs(settings); err != nil {
		return err
	}

	if len(settings.Kafka.Brokers) > 0 {
		if settings.Kafka.Topic == "" {
			settings.Kafka.Topic = defaultKafkaTopic
		}

		if settings.Kafka.DeadLetterTopic == "" {
			settings.Kafka.DeadLetterTopic = defaultKafkaDeadLetter
		}
	}

	return nil
}

// validateOutputs fills actuator defaults and checks alarm and flash parameters.
func validateOutputs(settings *Config) error {
	if settings.Alarm.FrequencyHz == 0 {
		settings.Alarm.FrequencyHz = defaultFrequencyHz
	}

	if settings.Alarm.DurationMs == 0 {
		settings.Alarm.DurationMs = defaultDurationMs
	}

	if settings.Flash.PeriodSeconds == 0 {
		settings.Flash.PeriodSeconds = defaultFlashPeriod
	}

	if settings.Flash.DurationSeconds == 0 {
		settings.Flash.DurationSeconds = defaultFlashDuration
	}

	if settings.Alarm.FrequencyHz < 0 || settings.Alarm.DurationMs < 0 ||
		settings.Flash.PeriodSeconds < 0 || settings.Flash.DurationSeconds < 0 {
		return errNonPositiveSetting
	}

	if settings.Alarm.FrequencyHz > device.MaxAlarmFrequencyHz || settings.Alarm.DurationMs > device.MaxAlarmDurationMs ||
		settings.Flash.PeriodSeconds > device.MaxFlashSeconds || settings.Flash.DurationSeconds > device.MaxFlashSeconds {
		return errSettingTooLarge
	}

	switch settings.Actuators.Backend {
	case "":
		settings.Actuators.Backend = BackendSimulated
	case BackendSimulated, BackendGPIO:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, settings.Actuators.Backend)
	}

	if settings.Actuators.Chip == "" {
		settings.Actuators.Chip = defaultChip
	}

	// Zero is a valid line offset, so only the whole unset block gets the board defaults.
	a := &settings.Actuators
	if a.BuzzerPin == 0 && a.FirstRedPin == 0 && a.FirstBluePin == 0 && a.SecondRedPin == 0 && a.SecondBluePin == 0 {
		a.BuzzerPin = defaultBuzzerPin
		a.FirstRedPin = defaultFirstRedPin
		a.FirstBluePin = defaultFirstBluePin
		a.SecondRedPin = defaultSecondRedPin
		a.SecondBluePin = defaultSecondBluePin
	}

	return nil
}
