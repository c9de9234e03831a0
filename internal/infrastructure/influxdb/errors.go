package influxdb

import "errors"

// Sentinel errors for telemetry operations, checked with errors.Is.
// Write failures are not represented here: the batched write API
// reports them asynchronously through the SetOnError callback.
var (
	// ErrNotConnected indicates the client is not connected to InfluxDB.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is switched off in config. The
	// daemon treats this as "run without metrics", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
