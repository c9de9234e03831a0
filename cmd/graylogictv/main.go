// Gray Logic TV Bridge - Sharp Aquos serial control
//
// This is the main entry point for the Gray Logic TV Bridge daemon.
// The bridge connects a Sharp Aquos television (RS-232 control port)
// to the Gray Logic MQTT bus:
//   - Serialised command dispatch over the serial link
//   - Retained state and health publishing on MQTT
//   - Command history in SQLite, optional telemetry in InfluxDB
//   - Local HTTP API for direct control and diagnostics
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-tv/migrations"

	"github.com/nerrad567/gray-logic-tv/internal/api"
	"github.com/nerrad567/gray-logic-tv/internal/bridges/aquos"
	"github.com/nerrad567/gray-logic-tv/internal/history"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tv/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic TV Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Command history repository
	histRepo := history.NewSQLiteRepository(db.DB)

	// Open the serial transport to the TV. The transport reconnects on
	// its own after read failures, but the initial open must succeed.
	transport, err := aquos.OpenTransport(aquos.TransportConfig{
		Path:              cfg.Device.Path,
		BaudRate:          cfg.Device.BaudRate,
		ReconnectInterval: cfg.GetReconnectInterval(),
	})
	if err != nil {
		return fmt.Errorf("opening serial transport: %w", err)
	}
	transport.SetLogger(log)
	defer func() {
		log.Info("closing serial transport")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing serial transport", "error", closeErr)
		}
	}()
	log.Info("serial transport open",
		"path", cfg.Device.Path,
		"baud_rate", cfg.Device.BaudRate,
	)

	// Dispatcher serialises command/response traffic over the transport
	dispatcher := aquos.NewDispatcher(transport, cfg.GetCommandTimeout())
	dispatcher.SetLogger(log)
	defer func() {
		log.Info("closing dispatcher")
		if closeErr := dispatcher.Close(); closeErr != nil {
			log.Error("error closing dispatcher", "error", closeErr)
		}
	}()

	// Every line the TV sends is handed to the dispatcher, which matches
	// it against the in-flight command or discards it as unsolicited.
	transport.SetOnLine(dispatcher.HandleLine)

	// Connect to MQTT broker with the bridge's health topic as LWT, so
	// the broker announces us offline if the process dies uncleanly.
	lwtPayload, err := aquos.LWTPayload()
	if err != nil {
		return fmt.Errorf("building LWT payload: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
		Topic:   aquos.HealthTopic(),
		Payload: lwtPayload,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Emit a link point on every serial drop and reconnect
		transport.SetOnStateChange(func(connected bool) {
			influxClient.WriteLinkStatus(cfg.Device.ID, connected)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the Aquos bridge
	bridge, err := startBridge(ctx, cfg, dispatcher, transport, mqttClient, histRepo, influxClient, log)
	if err != nil {
		return fmt.Errorf("starting Aquos bridge: %w", err)
	}
	defer func() {
		log.Info("stopping Aquos bridge")
		bridge.Stop()
	}()

	// Start HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Device:  cfg.Device,
			Logger:  log,
			TV:      bridge,
			Sender:  dispatcher,
			Link:    transport,
			MQTT:    mqttClient,
			DB:      db,
			History: histRepo,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started",
			"host", cfg.API.Host,
			"port", cfg.API.Port,
		)
	} else {
		log.Info("API server disabled")
	}

	// Verify all infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server (if enabled)
	// 2. Aquos bridge
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Dispatcher
	// 6. Serial transport
	// 7. Database

	log.Info("Gray Logic TV Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_TV_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_TV_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startBridge wires up and starts the Aquos protocol bridge.
//
// Parameters:
//   - ctx: Context for startup/cancellation
//   - cfg: Application configuration
//   - dispatcher: Command dispatcher bound to the serial transport
//   - transport: Serial transport (link status source)
//   - mqttClient: MQTT client for publishing/subscribing
//   - histRepo: Command history repository
//   - influxClient: InfluxDB client (may be nil if disabled)
//   - log: Logger instance
//
// Returns:
//   - *aquos.Bridge: Running bridge
//   - error: If bridge fails to start
func startBridge(ctx context.Context, cfg *config.Config, dispatcher *aquos.Dispatcher, transport *aquos.Transport, mqttClient *mqtt.Client, histRepo history.Repository, influxClient *influxdb.Client, log *logging.Logger) (*aquos.Bridge, error) {
	// Convert configured inputs to the bridge's input table
	inputs := make([]aquos.Input, 0, len(cfg.Device.Inputs))
	for _, in := range cfg.Device.Inputs {
		inputs = append(inputs, aquos.Input{ID: in.ID, Name: in.Name})
	}

	// A nil *influxdb.Client stored in the MetricsWriter interface would
	// not compare equal to nil, so only assign when telemetry is enabled.
	var metrics aquos.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
	}

	bridge, err := aquos.NewBridge(aquos.BridgeOptions{
		Config: aquos.BridgeConfig{
			DeviceID:       cfg.Device.ID,
			SerialPath:     cfg.Device.Path,
			Inputs:         inputs,
			CommandTimeout: cfg.GetMQTTCommandTimeout(),
			PollInterval:   cfg.GetPollInterval(),
			HealthInterval: cfg.GetHealthInterval(),
			Version:        version,
		},
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Sender:     dispatcher,
		Link:       transport,
		Logger:     log,
		Recorder:   &historyRecorder{repo: histRepo, log: log},
		Metrics:    metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Aquos bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting Aquos bridge: %w", err)
	}
	log.Info("Aquos bridge started",
		"device_id", cfg.Device.ID,
		"inputs", len(inputs),
	)

	return bridge, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Serial link health is the bridge's concern: the transport reconnects
	// in the background and the bridge reports link status over MQTT.

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the Aquos
// bridge's MQTTClient interface. The difference is the Subscribe handler
// signature:
//   - Infrastructure mqtt: func(topic string, payload []byte) error
//   - Aquos bridge expects: func(topic string, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements aquos.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements aquos.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	// Wrap the void handler to return nil error (bridge handlers don't return errors)
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements aquos.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// historyRecorder adapts the history repository to the bridge's
// CommandRecorder interface. Recording is best-effort: a failed insert
// is logged and dropped rather than failing the command it describes.
type historyRecorder struct {
	repo history.Repository
	log  *logging.Logger
}

// Record implements aquos.CommandRecorder.
func (r *historyRecorder) Record(ctx context.Context, rec aquos.CommandRecord) {
	entry := &history.CommandLog{
		DeviceID:  rec.DeviceID,
		Command:   rec.Command,
		Frame:     rec.Frame,
		Response:  rec.Response,
		Status:    rec.Status,
		LatencyMS: rec.Latency.Milliseconds(),
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.log.Error("recording command history", "error", err, "command", rec.Command)
	}
}
