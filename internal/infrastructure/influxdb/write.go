package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommandLatency records the round-trip time of a command sent to
// the display.
//
// This is the primary telemetry for the serial link: latency trends
// reveal a degrading cable or a display that is slow to respond.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Bridge device identifier (e.g., "tv-living")
//   - command: Logical command name (e.g., "power_on", "input_select")
//   - latency: Time from frame write to response line (or timeout)
//
// Example:
//
//	client.WriteCommandLatency("tv-living", "power_on", 120*time.Millisecond)
func (c *Client) WriteCommandLatency(deviceID string, command string, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"tv_command",
		map[string]string{
			"device_id": deviceID,
			"command":   command,
		},
		map[string]interface{}{
			"latency_ms": latency.Seconds() * millisecondsPerSecond,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStateChange records an observed change in the display's state.
//
// Called when the cached state transitions (power toggles, input
// switches), whether driven by a command or discovered by polling.
//
// Parameters:
//   - deviceID: Bridge device identifier
//   - field: State field that changed (e.g., "power", "input")
//   - value: New value (bool for power, int for input)
func (c *Client) WriteStateChange(deviceID string, field string, value any) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"tv_state",
		map[string]string{
			"device_id": deviceID,
			"field":     field,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLinkStatus records serial link connectivity transitions.
//
// Parameters:
//   - deviceID: Bridge device identifier
//   - connected: Whether the serial link is up
func (c *Client) WriteLinkStatus(deviceID string, connected bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"tv_link",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"connected": connected,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"bridge": "tv"},
//	    map[string]interface{}{"timeouts": 3, "lines_discarded": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
