package aquos

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "command", got: CommandTopic("tv-lounge"), want: "graylogic/command/tv/tv-lounge"},
		{name: "command subscribe", got: CommandSubscribeTopic(), want: "graylogic/command/tv/#"},
		{name: "ack", got: AckTopic("tv-lounge"), want: "graylogic/ack/tv/tv-lounge"},
		{name: "state", got: StateTopic("tv-lounge"), want: "graylogic/state/tv/tv-lounge"},
		{name: "health", got: HealthTopic(), want: "graylogic/health/tv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewAckMessage(t *testing.T) {
	cmd := CommandMessage{
		ID:       "cmd-123",
		DeviceID: "tv-lounge",
		Command:  CmdPowerOn,
	}

	ack := NewAckMessage(cmd, AckAccepted)
	if ack.CommandID != "cmd-123" {
		t.Errorf("CommandID = %q, want cmd-123", ack.CommandID)
	}
	if ack.DeviceID != "tv-lounge" {
		t.Errorf("DeviceID = %q, want tv-lounge", ack.DeviceID)
	}
	if ack.Status != AckAccepted {
		t.Errorf("Status = %q, want accepted", ack.Status)
	}
	if ack.Protocol != "tv" {
		t.Errorf("Protocol = %q, want tv", ack.Protocol)
	}
	if ack.Error != nil {
		t.Error("accepted ack must carry no error")
	}
}

func TestNewAckError(t *testing.T) {
	cmd := CommandMessage{ID: "cmd-123", DeviceID: "tv-lounge"}

	ack := NewAckError(cmd, ErrCodeDeviceRejected, "input select answered ERR")
	if ack.Status != AckFailed {
		t.Errorf("Status = %q, want failed", ack.Status)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeDeviceRejected {
		t.Errorf("Error = %+v, want code DEVICE_REJECTED", ack.Error)
	}

	// Timeout code selects the timeout status
	ack = NewAckError(cmd, ErrCodeTimeout, "no response")
	if ack.Status != AckTimeout {
		t.Errorf("Status = %q, want timeout", ack.Status)
	}
}

func TestNewHealthMessage(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tStats := TransportStats{
		Connected:    true,
		LastActivity: time.Now(),
		ErrorsTotal:  2,
	}
	dStats := DispatcherStats{
		CommandsSent:     10,
		ResponsesMatched: 9,
		TimeoutsTotal:    1,
		LinesDiscarded:   3,
	}

	msg := NewHealthMessage("tv", "1.0.0", HealthHealthy, tStats, dStats, start)

	if msg.Bridge != "tv" || msg.Status != HealthHealthy {
		t.Errorf("msg = %+v", msg)
	}
	if msg.UptimeSeconds < 89 || msg.UptimeSeconds > 91 {
		t.Errorf("UptimeSeconds = %d, want ~90", msg.UptimeSeconds)
	}
	if msg.Connection == nil || msg.Connection.Status != "connected" {
		t.Errorf("Connection = %+v, want connected", msg.Connection)
	}
	if msg.Statistics == nil ||
		msg.Statistics.CommandsSent != 10 ||
		msg.Statistics.ResponsesMatched != 9 ||
		msg.Statistics.Timeouts != 1 ||
		msg.Statistics.LinesDiscarded != 3 ||
		msg.Statistics.Errors != 2 {
		t.Errorf("Statistics = %+v", msg.Statistics)
	}

	// Disconnected link reports as such with no activity timestamp
	msg = NewHealthMessage("tv", "1.0.0", HealthDegraded, TransportStats{}, dStats, start)
	if msg.Connection == nil || msg.Connection.Status != "disconnected" {
		t.Errorf("Connection = %+v, want disconnected", msg.Connection)
	}
	if msg.Connection.LastActivity != nil {
		t.Error("disconnected link must not report last activity")
	}
}

func TestLWTMessageRoundTrip(t *testing.T) {
	msg := NewLWTMessage("tv")

	payload, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded HealthMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.Status != HealthOffline {
		t.Errorf("Status = %q, want offline", decoded.Status)
	}
	if decoded.Reason != "unexpected_disconnect" {
		t.Errorf("Reason = %q", decoded.Reason)
	}
}

func TestCommandMessageDecoding(t *testing.T) {
	payload := []byte(`{
		"id": "cmd-42",
		"timestamp": "2026-03-01T10:00:00Z",
		"device_id": "tv-lounge",
		"command": "input_select",
		"parameters": {"input": 2},
		"source": "api"
	}`)

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if cmd.ID != "cmd-42" || cmd.Command != CmdInputSelect {
		t.Errorf("cmd = %+v", cmd)
	}
	id, err := (&Bridge{}).inputParameter(cmd)
	if err != nil {
		t.Fatalf("inputParameter failed: %v", err)
	}
	if id != 2 {
		t.Errorf("input = %d, want 2", id)
	}
}
