package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Serial        *SerialMetrics   `json:"serial,omitempty"`
	Commands      *CommandMetrics  `json:"commands,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// SerialMetrics contains serial transport statistics.
type SerialMetrics struct {
	Connected    bool   `json:"connected"`
	FramesTx     uint64 `json:"frames_tx"`
	LinesRx      uint64 `json:"lines_rx"`
	Reconnects   uint64 `json:"reconnects"`
	Errors       uint64 `json:"errors"`
	LastActivity string `json:"last_activity,omitempty"`
}

// CommandMetrics contains dispatcher statistics.
type CommandMetrics struct {
	Sent           uint64 `json:"sent"`
	Matched        uint64 `json:"matched"`
	Timeouts       uint64 `json:"timeouts"`
	LinesDiscarded uint64 `json:"lines_discarded"`
	WriteFailures  uint64 `json:"write_failures"`
	Pending        int    `json:"pending"`
	InFlight       bool   `json:"in_flight"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	if s.link != nil {
		linkStats := s.link.Stats()
		serial := &SerialMetrics{
			Connected:  linkStats.Connected,
			FramesTx:   linkStats.FramesTx,
			LinesRx:    linkStats.LinesRx,
			Reconnects: linkStats.ReconnectsTotal,
			Errors:     linkStats.ErrorsTotal,
		}
		if !linkStats.LastActivity.IsZero() {
			serial.LastActivity = linkStats.LastActivity.UTC().Format(time.RFC3339)
		}
		metrics.Serial = serial
	}

	if s.sender != nil {
		cmdStats := s.sender.Stats()
		metrics.Commands = &CommandMetrics{
			Sent:           cmdStats.CommandsSent,
			Matched:        cmdStats.ResponsesMatched,
			Timeouts:       cmdStats.TimeoutsTotal,
			LinesDiscarded: cmdStats.LinesDiscarded,
			WriteFailures:  cmdStats.WriteFailures,
			Pending:        cmdStats.Pending,
			InFlight:       cmdStats.InFlight,
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
