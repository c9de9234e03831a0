package aquos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of parts in a valid MQTT topic.
	minTopicParts = 3

	// defaultMQTTCommandTimeout bounds command execution triggered over
	// MQTT, covering queue wait plus the device response.
	defaultMQTTCommandTimeout = 10 * time.Second

	// defaultPollInterval is how often the bridge refreshes TV state
	// when no commands are flowing. The TV volunteers nothing, so state
	// changes made with the infrared remote are only visible by asking.
	defaultPollInterval = 30 * time.Second
)

// Sender executes one command against the TV and returns its response
// line. *Dispatcher satisfies it; tests substitute fakes.
type Sender interface {
	Do(ctx context.Context, frame []byte) (string, error)
	Stats() DispatcherStats
	PendingCount() int
}

// Link exposes the serial connection state for health reporting.
// *Transport satisfies it.
type Link interface {
	IsConnected() bool
	Stats() TransportStats
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// CommandRecord captures one executed command for the history log.
type CommandRecord struct {
	DeviceID string
	Command  string
	Frame    string
	Response string
	Status   string
	Latency  time.Duration
}

// CommandRecorder persists executed commands. Optional; if nil the
// bridge operates without history.
type CommandRecorder interface {
	Record(ctx context.Context, rec CommandRecord)
}

// MetricsWriter receives command latency and state change points.
// Optional; if nil the bridge operates without telemetry.
type MetricsWriter interface {
	WriteCommandLatency(deviceID, command string, latency time.Duration)
	WriteStateChange(deviceID, field string, value any)
}

// TVState is the bridge's cached view of the TV.
type TVState struct {
	// Power is true when the TV is on.
	Power bool `json:"power"`

	// Input is the active input id (1..8), or 0 when unknown or the TV
	// is in standby.
	Input int `json:"input"`

	// InputName is the configured display name for Input, if any.
	InputName string `json:"input_name,omitempty"`

	// UpdatedAt is when the state was last confirmed by the TV.
	UpdatedAt time.Time `json:"updated_at"`
}

// BridgeConfig holds the bridge's device configuration.
type BridgeConfig struct {
	// DeviceID is the Gray Logic device identifier for the TV.
	DeviceID string

	// SerialPath is the serial device path, reported in health messages.
	SerialPath string

	// Inputs is the configured input table (validated at load time).
	Inputs []Input

	// CommandTimeout bounds MQTT-triggered command execution.
	// Default: 10 seconds.
	CommandTimeout time.Duration

	// PollInterval is how often the bridge refreshes state.
	// Zero selects the default of 30 seconds; negative disables polling.
	PollInterval time.Duration

	// HealthInterval is how often health status is published.
	// Default: 30 seconds.
	HealthInterval time.Duration

	// Version is the bridge software version for health messages.
	Version string
}

// BridgeOptions holds dependencies for creating a bridge.
type BridgeOptions struct {
	// Config is the bridge device configuration.
	Config BridgeConfig

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Sender executes commands against the TV.
	Sender Sender

	// Link exposes serial connection state for health reporting.
	Link Link

	// Logger is optional structured logger.
	Logger Logger

	// Recorder is optional command history persistence.
	Recorder CommandRecorder

	// Metrics is optional telemetry output.
	Metrics MetricsWriter
}

// Bridge orchestrates bidirectional translation between the TV's serial
// protocol and MQTT. It handles:
//   - Receiving commands from Core via MQTT and executing them on the TV
//   - Publishing state updates when the TV's state changes
//   - Periodic state polling (the TV never volunteers state)
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use. Command
// serialization is the Sender's job; the bridge may issue commands from
// MQTT handlers, the poll loop, and API calls concurrently.
type Bridge struct {
	cfg      BridgeConfig
	mqtt     MQTTClient
	sender   Sender
	link     Link
	health   *HealthReporter
	recorder CommandRecorder
	metrics  MetricsWriter

	// State cache for change detection
	state   TVState
	stateMu sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if opts.Config.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if err := ValidateInputs(opts.Config.Inputs); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultMQTTCommandTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}

	// Bridge-level context aborts in-flight commands on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       cfg,
		mqtt:      opts.MQTTClient,
		sender:    opts.Sender,
		link:      opts.Link,
		recorder:  opts.Recorder,
		metrics:   opts.Metrics,
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:   protocolID,
		Version:    cfg.Version,
		SerialPath: cfg.SerialPath,
		Interval:   cfg.HealthInterval,
		Publisher:  opts.MQTTClient,
		Link:       opts.Link,
		Sender:     opts.Sender,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation.
// This subscribes to MQTT command topics, starts health reporting and
// the state poll loop, and performs an initial state refresh.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.health.Start(ctx)

	if b.cfg.PollInterval > 0 {
		b.wg.Add(1)
		go b.pollLoop()
	}

	// Initial refresh in background so a dark TV does not stall startup
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.RefreshState(b.ctx); err != nil {
			b.logWarn("initial state refresh failed", "error", err)
		}
	}()

	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"device_id", b.cfg.DeviceID,
		"inputs", len(b.cfg.Inputs))

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Cancel bridge context to abort in-flight commands
		b.ctxCancel()

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		b.wg.Wait()

		b.logInfo("bridge stopped")
	})
}

// State returns the cached TV state.
func (b *Bridge) State() TVState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// Inputs returns the configured input table.
func (b *Bridge) Inputs() []Input {
	return b.cfg.Inputs
}

// DeviceID returns the configured device identifier.
func (b *Bridge) DeviceID() string {
	return b.cfg.DeviceID
}

// PowerOn switches the TV on.
func (b *Bridge) PowerOn(ctx context.Context) error {
	return b.setPower(ctx, true, "api")
}

// PowerOff puts the TV into standby.
func (b *Bridge) PowerOff(ctx context.Context) error {
	return b.setPower(ctx, false, "api")
}

func (b *Bridge) setPower(ctx context.Context, on bool, source string) error {
	frame := PowerSetFrame(on)
	cmdName := CmdPowerOff
	if on {
		cmdName = CmdPowerOn
	}

	line, err := b.execute(ctx, cmdName, frame, source)
	if err != nil {
		return err
	}
	if !IsOK(line) {
		return fmt.Errorf("%w: power set answered %q", ErrUnexpectedResponse, line)
	}

	b.updateState(func(s *TVState) {
		s.Power = on
		if !on {
			s.Input = 0
			s.InputName = ""
		}
	})
	return nil
}

// PowerState queries the TV and returns the confirmed power state.
func (b *Bridge) PowerState(ctx context.Context) (bool, error) {
	line, err := b.execute(ctx, CmdPowerGet, PowerQueryFrame(), "api")
	if err != nil {
		return false, err
	}
	on, err := ParsePowerState(line)
	if err != nil {
		return false, err
	}

	b.updateState(func(s *TVState) {
		s.Power = on
		if !on {
			s.Input = 0
			s.InputName = ""
		}
	})
	return on, nil
}

// SelectInput switches the TV to input id. The id must be in the
// configured input table.
func (b *Bridge) SelectInput(ctx context.Context, id int) error {
	input, ok := FindInput(b.cfg.Inputs, id)
	if !ok {
		return fmt.Errorf("%w: input %d is not configured", ErrInvalidInput, id)
	}

	frame, err := InputSelectFrame(id)
	if err != nil {
		return err
	}

	line, err := b.execute(ctx, CmdInputSelect, frame, "api")
	if err != nil {
		return err
	}
	if !IsOK(line) {
		// The TV rejects input selection while in standby
		return fmt.Errorf("%w: input select answered %q", ErrUnexpectedResponse, line)
	}

	b.updateState(func(s *TVState) {
		s.Power = true
		s.Input = id
		s.InputName = input.Name
	})
	return nil
}

// CurrentInput queries the TV and returns the active input id.
func (b *Bridge) CurrentInput(ctx context.Context) (int, error) {
	line, err := b.execute(ctx, CmdInputGet, InputQueryFrame(), "api")
	if err != nil {
		return 0, err
	}
	id, err := ParseInputID(line)
	if err != nil {
		return 0, err
	}

	name := ""
	if input, ok := FindInput(b.cfg.Inputs, id); ok {
		name = input.Name
	}
	b.updateState(func(s *TVState) {
		s.Power = true
		s.Input = id
		s.InputName = name
	})
	return id, nil
}

// RefreshState queries power and, when on, the active input, updating
// the cache and publishing any change.
func (b *Bridge) RefreshState(ctx context.Context) error {
	on, err := b.PowerState(ctx)
	if err != nil {
		return err
	}
	if !on {
		return nil
	}

	// In standby the input query answers ERR; when on it may still be
	// rejected briefly during input switching, which is not fatal.
	if _, err := b.CurrentInput(ctx); err != nil && !isRejected(err) {
		return err
	}
	return nil
}

// pollLoop refreshes TV state on a fixed interval.
func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if err := b.RefreshState(b.ctx); err != nil {
				b.logWarn("state poll failed", "error", err)
			}
		}
	}
}

// execute sends one frame through the dispatcher, records it in the
// history log, and emits latency telemetry.
func (b *Bridge) execute(ctx context.Context, cmdName string, frame []byte, source string) (string, error) {
	start := time.Now()
	line, err := b.sender.Do(ctx, frame)
	latency := time.Since(start)

	status := "ok"
	response := line
	if err != nil {
		response = err.Error()
		switch {
		case isTimeout(err):
			status = "timeout"
		default:
			status = "failed"
		}
	} else if IsErr(line) {
		status = "rejected"
	}

	if b.recorder != nil {
		b.recorder.Record(ctx, CommandRecord{
			DeviceID: b.cfg.DeviceID,
			Command:  cmdName,
			Frame:    strings.TrimSuffix(string(frame), "\r"),
			Response: response,
			Status:   status,
			Latency:  latency,
		})
	}
	if b.metrics != nil {
		b.metrics.WriteCommandLatency(b.cfg.DeviceID, cmdName, latency)
	}

	b.logDebug("command executed",
		"command", cmdName,
		"status", status,
		"latency_ms", latency.Milliseconds(),
		"source", source)

	return line, err
}

// updateState applies a mutation to the cached state and publishes a
// retained state message if anything changed.
func (b *Bridge) updateState(mutate func(*TVState)) {
	b.stateMu.Lock()
	before := b.state
	mutate(&b.state)
	b.state.UpdatedAt = time.Now().UTC()
	after := b.state
	b.stateMu.Unlock()

	if before.Power == after.Power && before.Input == after.Input {
		return
	}

	b.publishState(after)

	if b.metrics != nil {
		if before.Power != after.Power {
			b.metrics.WriteStateChange(b.cfg.DeviceID, "power", after.Power)
		}
		if before.Input != after.Input {
			b.metrics.WriteStateChange(b.cfg.DeviceID, "input", after.Input)
		}
	}
}

// publishState publishes the current state (QoS 1, retained).
func (b *Bridge) publishState(state TVState) {
	stateMap := map[string]any{
		"power": state.Power,
	}
	if state.Input != 0 {
		stateMap["input"] = state.Input
		if state.InputName != "" {
			stateMap["input_name"] = state.InputName
		}
	}

	msg := NewStateMessage(b.cfg.DeviceID, stateMap)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	topic := StateTopic(b.cfg.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
	}
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	messageType := parts[1]
	switch messageType {
	case "command":
		b.handleCommand(payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", messageType))
	}
}

// handleCommand processes a command message from Core.
func (b *Bridge) handleCommand(payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	if cmd.DeviceID != b.cfg.DeviceID {
		b.publishAckError(cmd, ErrCodeInvalidParameters,
			fmt.Sprintf("unknown device %s", cmd.DeviceID))
		return
	}

	// Derive timeout from bridge context so commands are cancelled on
	// shutdown. The budget covers queue wait plus device response.
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.CommandTimeout)
	defer cancel()

	var err error
	switch cmd.Command {
	case CmdPowerOn:
		err = b.setPower(ctx, true, cmd.Source)
	case CmdPowerOff:
		err = b.setPower(ctx, false, cmd.Source)
	case CmdPowerGet:
		_, err = b.PowerState(ctx)
	case CmdInputSelect:
		var id int
		id, err = b.inputParameter(cmd)
		if err != nil {
			b.publishAckError(cmd, ErrCodeInvalidParameters, err.Error())
			return
		}
		err = b.SelectInput(ctx, id)
	case CmdInputGet:
		_, err = b.CurrentInput(ctx)
	default:
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command))
		return
	}

	if err != nil {
		b.publishAckError(cmd, ackCodeForError(err), err.Error())
		return
	}

	b.publishAck(cmd, AckAccepted)
}

// inputParameter extracts the target input id from an input_select
// command. Commands name the input either by id ("input", a JSON
// number) or by its configured display name ("input_name").
func (b *Bridge) inputParameter(cmd CommandMessage) (int, error) {
	if raw, ok := cmd.Parameters["input"]; ok {
		f, ok := raw.(float64)
		if !ok || f != float64(int(f)) {
			return 0, fmt.Errorf("'input' must be an integer")
		}
		return int(f), nil
	}
	if raw, ok := cmd.Parameters["input_name"]; ok {
		name, ok := raw.(string)
		if !ok {
			return 0, fmt.Errorf("'input_name' must be a string")
		}
		input, ok := FindInputByName(b.cfg.Inputs, name)
		if !ok {
			return 0, fmt.Errorf("unknown input name %q", name)
		}
		return input.ID, nil
	}
	return 0, fmt.Errorf("missing 'input' or 'input_name' parameter")
}

// ackCodeForError maps an execution error to an ack error code.
func ackCodeForError(err error) string {
	switch {
	case isTimeout(err):
		return ErrCodeTimeout
	case isInvalidInput(err):
		return ErrCodeInvalidParameters
	case isRejected(err) || isUnexpectedResponse(err):
		return ErrCodeDeviceRejected
	case isNotConnected(err) || isWriteFailed(err):
		return ErrCodeDeviceUnreachable
	default:
		return ErrCodeBridgeError
	}
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	ack := NewAckMessage(cmd, status)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	topic := AckTopic(cmd.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	ack := NewAckError(cmd, code, message)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack error", err)
		return
	}

	topic := AckTopic(cmd.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish ack error", err)
	}

	b.logError("command failed",
		fmt.Errorf("code=%s message=%s", code, message))
}

// Health returns the health reporter, for LWT wiring during MQTT setup.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if logger is set.
func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
