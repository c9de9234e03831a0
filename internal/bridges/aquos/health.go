package aquos

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is how often health status is published.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// SerialPath is the serial device path, included in connection status.
	SerialPath string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Link provides serial connection statistics.
	Link Link

	// Sender provides command dispatch statistics.
	Sender Sender
}

// HealthReporter manages periodic health status reporting.
// It publishes health messages to MQTT at regular intervals.
type HealthReporter struct {
	bridgeID   string
	version    string
	serialPath string
	startTime  time.Time
	interval   time.Duration
	publisher  HealthPublisher
	link       Link
	sender     Sender

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		bridgeID:   cfg.BridgeID,
		version:    cfg.Version,
		serialPath: cfg.SerialPath,
		startTime:  time.Now(),
		interval:   interval,
		publisher:  cfg.Publisher,
		link:       cfg.Link,
		sender:     cfg.Sender,
		done:       make(chan struct{}),
	}
}

// Start begins periodic health reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		// Best-effort during shutdown, nothing we can do if it fails
		//nolint:errcheck
		h.publishStatus(HealthStopping, "")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
// Called during bridge initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// GetLWTPayload returns the Last Will and Testament message payload.
// This should be set as the MQTT will message during connection.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	msg := NewLWTMessage(h.bridgeID)
	return json.Marshal(msg)
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return HealthTopic()
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.link == nil || !h.link.IsConnected() {
		return HealthDegraded, "serial link down"
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message (QoS 1, retained).
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	var tStats TransportStats
	if h.link != nil {
		tStats = h.link.Stats()
	}
	var dStats DispatcherStats
	if h.sender != nil {
		dStats = h.sender.Stats()
	}

	msg := NewHealthMessage(h.bridgeID, h.version, status, tStats, dStats, h.startTime)
	if reason != "" {
		msg.Reason = reason
	}
	if msg.Connection != nil {
		msg.Connection.Path = h.serialPath
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
