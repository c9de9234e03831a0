package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("GRAYLOGIC_TV_CONFIG")
	defer os.Setenv("GRAYLOGIC_TV_CONFIG", originalEnv)

	os.Setenv("GRAYLOGIC_TV_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}

	if os.IsNotExist(err) || err.Error() == "" {
		t.Logf("Got expected error type: %v", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
device:
  id: tv-test
  path: "/dev/nonexistent-tty"
  baud_rate: 9600
  inputs:
    - id: 1
      name: "Sky Box"

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 60

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("GRAYLOGIC_TV_CONFIG")
	defer os.Setenv("GRAYLOGIC_TV_CONFIG", originalEnv)
	os.Setenv("GRAYLOGIC_TV_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
	if !strings.Contains(err.Error(), "database.path") {
		t.Errorf("error should mention database.path, got: %v", err)
	}
}

// TestRun_MissingDevice verifies run fails cleanly when the serial device
// does not exist. The transport requires a successful initial open.
func TestRun_MissingDevice(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
device:
  id: tv-test
  path: "` + filepath.Join(tmpDir, "no-such-tty") + `"
  baud_rate: 9600
  inputs:
    - id: 1
      name: "Sky Box"
    - id: 2
      name: "Apple TV"

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-missing-device"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("GRAYLOGIC_TV_CONFIG")
	defer os.Setenv("GRAYLOGIC_TV_CONFIG", originalEnv)
	os.Setenv("GRAYLOGIC_TV_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when the serial device cannot be opened")
	}
	if !strings.Contains(err.Error(), "serial") {
		t.Errorf("error should mention the serial transport, got: %v", err)
	}

	// Migrations run before the transport opens, so the database should exist
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("database file should have been created: %v", statErr)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("GRAYLOGIC_TV_CONFIG")
	defer os.Setenv("GRAYLOGIC_TV_CONFIG", originalEnv)

	os.Unsetenv("GRAYLOGIC_TV_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("GRAYLOGIC_TV_CONFIG")
	defer os.Setenv("GRAYLOGIC_TV_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("GRAYLOGIC_TV_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_ContextCancelledDuringStartup verifies cancellation during startup.
// MQTT connect to an unreachable port blocks until its timeout, so a short
// context exercises the shutdown path mid-initialisation.
func TestRun_ContextCancelledDuringStartup(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	// A PTY would be needed to get past the transport open on most
	// systems, so point at a regular file; go.bug.st/serial rejects it
	// and the run exits during startup either way.
	devicePath := filepath.Join(tmpDir, "fake-tty")
	if err := os.WriteFile(devicePath, nil, 0600); err != nil {
		t.Fatalf("failed to create fake device: %v", err)
	}

	configContent := `
device:
  id: tv-test
  path: "` + devicePath + `"
  baud_rate: 9600
  inputs:
    - id: 1
      name: "Sky Box"

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout

api:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("GRAYLOGIC_TV_CONFIG")
	defer os.Setenv("GRAYLOGIC_TV_CONFIG", originalEnv)
	os.Setenv("GRAYLOGIC_TV_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx)

	if err == nil {
		t.Log("run() completed without error (may have cancelled cleanly)")
	} else {
		t.Logf("run() returned error (expected): %v", err)
	}
}
