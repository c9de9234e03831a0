package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
device:
  id: "tv-lounge"
  name: "Lounge TV"
  path: "/dev/ttyUSB0"
  inputs:
    - id: 1
      name: "Sky Box"
      type: "hdmi"
    - id: 2
      name: "Blu-ray"
      type: "hdmi"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8093
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "tv-lounge" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "tv-lounge")
	}

	if cfg.Device.Path != "/dev/ttyUSB0" {
		t.Errorf("Device.Path = %q, want %q", cfg.Device.Path, "/dev/ttyUSB0")
	}

	// File did not set baud rate; the default must hold
	if cfg.Device.BaudRate != 9600 {
		t.Errorf("Device.BaudRate = %d, want 9600", cfg.Device.BaudRate)
	}

	if len(cfg.Device.Inputs) != 2 || cfg.Device.Inputs[1].Name != "Blu-ray" {
		t.Errorf("Device.Inputs = %+v", cfg.Device.Inputs)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  id: ""
  path: "/dev/ttyUSB0"
database:
  path: "/tmp/test.db"
api:
  port: 8093
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty device.id, got nil")
	}
}

// validBase returns a config that passes validation, for per-field mutation.
func validBase() *Config {
	cfg := defaultConfig()
	cfg.Device.ID = "tv-lounge"
	cfg.Device.Path = "/dev/ttyUSB0"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing serial path",
			mutate:  func(c *Config) { c.Device.Path = "" },
			wantErr: true,
		},
		{
			name:    "zero baud rate",
			mutate:  func(c *Config) { c.Device.BaudRate = 0 },
			wantErr: true,
		},
		{
			name:    "input id out of range",
			mutate:  func(c *Config) { c.Device.Inputs = []InputConfig{{ID: 9, Name: "Ghost"}} },
			wantErr: true,
		},
		{
			name:    "input without name",
			mutate:  func(c *Config) { c.Device.Inputs = []InputConfig{{ID: 1}} },
			wantErr: true,
		},
		{
			name: "duplicate input id",
			mutate: func(c *Config) {
				c.Device.Inputs = []InputConfig{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}
			},
			wantErr: true,
		},
		{
			name:    "zero command timeout",
			mutate:  func(c *Config) { c.Bridge.CommandTimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:   "invalid port ignored when API disabled",
			mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
		},
		{
			name:    "influxdb enabled without token",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "http://localhost:8086" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetDurations(t *testing.T) {
	cfg := &Config{
		Bridge: BridgeConfig{
			CommandTimeoutSeconds:     3,
			MQTTCommandTimeoutSeconds: 10,
			PollIntervalSeconds:       30,
			HealthIntervalSeconds:     15,
			ReconnectIntervalSeconds:  5,
		},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetCommandTimeout().Seconds(); got != 3 {
		t.Errorf("GetCommandTimeout() = %v, want 3", got)
	}
	if got := cfg.GetMQTTCommandTimeout().Seconds(); got != 10 {
		t.Errorf("GetMQTTCommandTimeout() = %v, want 10", got)
	}
	if got := cfg.GetPollInterval().Seconds(); got != 30 {
		t.Errorf("GetPollInterval() = %v, want 30", got)
	}
	if got := cfg.GetHealthInterval().Seconds(); got != 15 {
		t.Errorf("GetHealthInterval() = %v, want 15", got)
	}
	if got := cfg.GetReconnectInterval().Seconds(); got != 5 {
		t.Errorf("GetReconnectInterval() = %v, want 5", got)
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYLOGIC_TV_DEVICE_PATH", "/dev/ttyS1")
	t.Setenv("GRAYLOGIC_TV_DEVICE_ID", "tv-bedroom")
	t.Setenv("GRAYLOGIC_TV_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYLOGIC_TV_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYLOGIC_TV_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYLOGIC_TV_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYLOGIC_TV_API_HOST", "192.168.1.1")
	t.Setenv("GRAYLOGIC_TV_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Device.Path != "/dev/ttyS1" {
		t.Errorf("Device.Path = %q, want %q", cfg.Device.Path, "/dev/ttyS1")
	}

	if cfg.Device.ID != "tv-bedroom" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "tv-bedroom")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.BaudRate != 9600 {
		t.Errorf("defaultConfig Device.BaudRate = %d, want 9600", cfg.Device.BaudRate)
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8093 {
		t.Errorf("defaultConfig API.Port = %d, want 8093", cfg.API.Port)
	}

	if cfg.Bridge.CommandTimeoutSeconds != 3 {
		t.Errorf("defaultConfig Bridge.CommandTimeoutSeconds = %d, want 3", cfg.Bridge.CommandTimeoutSeconds)
	}
}
