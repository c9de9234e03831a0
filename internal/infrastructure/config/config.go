package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic TV Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig describes the television this bridge controls.
type DeviceConfig struct {
	// ID is the Gray Logic device identifier (e.g., "tv-lounge").
	ID string `yaml:"id"`

	// Name is the display name shown to users.
	Name string `yaml:"name"`

	// Path is the serial device path (e.g., "/dev/ttyUSB0").
	Path string `yaml:"path"`

	// BaudRate is the serial line speed. Default: 9600.
	BaudRate int `yaml:"baud_rate"`

	// Manufacturer, Model and SerialNumber identify the hardware; the
	// API reports them under /health so an installer can confirm which
	// panel a bridge instance is driving.
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	SerialNumber string `yaml:"serial_number"`

	// Inputs is the table of external inputs wired to the TV.
	Inputs []InputConfig `yaml:"inputs"`
}

// InputConfig describes one external input on the TV.
type InputConfig struct {
	// ID is the input selector (1..8).
	ID int `yaml:"id"`

	// Name is the display name (e.g., "Sky Box").
	Name string `yaml:"name"`

	// Type categorizes the source (e.g., "hdmi", "component").
	Type string `yaml:"type"`
}

// BridgeConfig contains command dispatch and polling settings.
type BridgeConfig struct {
	// CommandTimeoutSeconds bounds how long one command may wait for its
	// response line. Default: 3.
	CommandTimeoutSeconds int `yaml:"command_timeout_seconds"`

	// MQTTCommandTimeoutSeconds bounds MQTT-triggered command execution,
	// covering queue wait plus device response. Default: 10.
	MQTTCommandTimeoutSeconds int `yaml:"mqtt_command_timeout_seconds"`

	// PollIntervalSeconds is how often TV state is refreshed. The TV
	// volunteers nothing, so remote-control changes are only visible by
	// asking. 0 selects the default of 30; -1 disables polling.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`

	// HealthIntervalSeconds is how often health status is published.
	// Default: 30.
	HealthIntervalSeconds int `yaml:"health_interval_seconds"`

	// ReconnectIntervalSeconds is the initial delay between serial
	// reconnection attempts. Default: 5.
	ReconnectIntervalSeconds int `yaml:"reconnect_interval_seconds"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_TV_SECTION_KEY
// For example: GRAYLOGIC_TV_DEVICE_PATH, GRAYLOGIC_TV_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			BaudRate: 9600,
		},
		Bridge: BridgeConfig{
			CommandTimeoutSeconds:     3,
			MQTTCommandTimeoutSeconds: 10,
			PollIntervalSeconds:       30,
			HealthIntervalSeconds:     30,
			ReconnectIntervalSeconds:  5,
		},
		Database: DatabaseConfig{
			Path:        "./data/graylogic-tv.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-tv",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8093,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_TV_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GRAYLOGIC_TV_DEVICE_PATH"); v != "" {
		cfg.Device.Path = v
	}
	if v := os.Getenv("GRAYLOGIC_TV_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_TV_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_TV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_TV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_TV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_TV_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_TV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.Path == "" {
		errs = append(errs, "device.path is required")
	}
	if c.Device.BaudRate <= 0 {
		errs = append(errs, "device.baud_rate must be positive")
	}
	seen := make(map[int]bool, len(c.Device.Inputs))
	for _, in := range c.Device.Inputs {
		if in.ID < 1 || in.ID > 8 {
			errs = append(errs, fmt.Sprintf("device.inputs: id %d out of range 1..8", in.ID))
		}
		if in.Name == "" {
			errs = append(errs, fmt.Sprintf("device.inputs: input %d has no name", in.ID))
		}
		if seen[in.ID] {
			errs = append(errs, fmt.Sprintf("device.inputs: duplicate id %d", in.ID))
		}
		seen[in.ID] = true
	}

	// Bridge validation
	if c.Bridge.CommandTimeoutSeconds <= 0 {
		errs = append(errs, "bridge.command_timeout_seconds must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set GRAYLOGIC_TV_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCommandTimeout returns the per-command timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Bridge.CommandTimeoutSeconds) * time.Second
}

// GetMQTTCommandTimeout returns the MQTT command budget as a Duration.
func (c *Config) GetMQTTCommandTimeout() time.Duration {
	return time.Duration(c.Bridge.MQTTCommandTimeoutSeconds) * time.Second
}

// GetPollInterval returns the state poll interval as a Duration.
// A negative configured value disables polling.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Bridge.PollIntervalSeconds) * time.Second
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthIntervalSeconds) * time.Second
}

// GetReconnectInterval returns the serial reconnect delay as a Duration.
func (c *Config) GetReconnectInterval() time.Duration {
	return time.Duration(c.Bridge.ReconnectIntervalSeconds) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
