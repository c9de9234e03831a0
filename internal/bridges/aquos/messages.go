package aquos

import (
	"encoding/json"
	"fmt"
	"time"
)

// MQTT message types for communication between Gray Logic Core and the
// TV Bridge. These types implement the bridge interface specification
// (docs/architecture/bridge-interface.md).

// protocolID identifies this bridge's protocol in messages and topics.
const protocolID = "tv"

// Command names accepted on the command topic.
const (
	CmdPowerOn     = "power_on"
	CmdPowerOff    = "power_off"
	CmdPowerGet    = "power_get"
	CmdInputSelect = "input_select"
	CmdInputGet    = "input_get"
)

// CommandMessage is sent from Core to Bridge to execute a device command.
// Topic: graylogic/command/tv/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "power_on", "input_select").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Example: {"input": 2} for input_select.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was sent and the TV confirmed it.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the TV did not respond within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/tv/{device_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("tv").
	Protocol string `json:"protocol"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeDeviceRejected    = "DEVICE_REJECTED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from Bridge to Core when device state changes.
// Topic: graylogic/state/tv/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the current device state.
	// Example: {"power": true, "input": 2, "input_name": "Sky Box"}
	State map[string]any `json:"state"`

	// Protocol is the protocol identifier ("tv").
	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from Bridge to Core to report operational status.
// Topic: graylogic/health/tv
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier (e.g., "tv").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains serial link details.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the serial link state.
type ConnectionStatus struct {
	// Status is the connection status ("connected", "disconnected").
	Status string `json:"status"`

	// Path is the serial device path.
	Path string `json:"path"`

	// LastActivity is when the link last carried traffic.
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// CommandsSent is the total number of frames sent to the TV.
	CommandsSent uint64 `json:"commands_sent"`

	// ResponsesMatched is the total number of responses correlated.
	ResponsesMatched uint64 `json:"responses_matched"`

	// Timeouts is the total number of commands that timed out.
	Timeouts uint64 `json:"timeouts"`

	// LinesDiscarded is the total number of unsolicited lines dropped.
	LinesDiscarded uint64 `json:"lines_discarded"`

	// Errors is the total number of transport errors encountered.
	Errors uint64 `json:"errors"`
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  protocolID,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  protocolID,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  protocolID,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, tStats TransportStats, dStats DispatcherStats, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Bridge:        bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
	}

	if tStats.Connected {
		lastActivity := tStats.LastActivity
		msg.Connection = &ConnectionStatus{
			Status:       "connected",
			LastActivity: &lastActivity,
		}
	} else {
		msg.Connection = &ConnectionStatus{
			Status: "disconnected",
		}
	}

	msg.Statistics = &BridgeStatistics{
		CommandsSent:     dStats.CommandsSent,
		ResponsesMatched: dStats.ResponsesMatched,
		Timeouts:         dStats.TimeoutsTotal,
		LinesDiscarded:   dStats.LinesDiscarded,
		Errors:           tStats.ErrorsTotal,
	}

	return msg
}

// NewLWTMessage creates a Last Will and Testament message for MQTT.
// This message is published by the broker if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

// LWTPayload returns the marshalled offline health message for use as
// the MQTT will. It exists so the MQTT connection can register the will
// before the bridge itself is constructed.
func LWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(protocolID))
}

// Topic construction

const (
	// TopicPrefix is the base topic for all Gray Logic messages.
	TopicPrefix = "graylogic"
)

// CommandTopic returns the command topic for a device.
// Format: graylogic/command/tv/{device_id}
func CommandTopic(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocolID, deviceID)
}

// CommandSubscribeTopic returns the wildcard topic for subscribing to
// all TV commands.
func CommandSubscribeTopic() string {
	return fmt.Sprintf("%s/command/%s/#", TopicPrefix, protocolID)
}

// AckTopic returns the acknowledgment topic for a device.
// Format: graylogic/ack/tv/{device_id}
func AckTopic(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocolID, deviceID)
}

// StateTopic returns the state topic for a device.
// Format: graylogic/state/tv/{device_id}
func StateTopic(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocolID, deviceID)
}

// HealthTopic returns the bridge health topic.
// Format: graylogic/health/tv
func HealthTopic() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocolID)
}
