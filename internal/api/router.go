package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/tv", func(r chi.Router) {
			r.Get("/state", s.handleGetState)
			r.Put("/power", s.handleSetPower)
			r.Put("/input", s.handleSelectInput)
			r.Get("/inputs", s.handleListInputs)
			r.Post("/refresh", s.handleRefresh)
		})

		r.Get("/history", s.handleListHistory)
	})

	return r
}

// deviceInfo is the hardware identity block in the health response.
type deviceInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Path         string `json:"path,omitempty"`
}

// handleHealth returns the server health status plus link and broker state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"version":   s.version,
		"device_id": s.tv.DeviceID(),
	}

	if s.device.ID != "" {
		resp["device"] = deviceInfo{
			ID:           s.device.ID,
			Name:         s.device.Name,
			Manufacturer: s.device.Manufacturer,
			Model:        s.device.Model,
			SerialNumber: s.device.SerialNumber,
			Path:         s.device.Path,
		}
	}
	if s.link != nil {
		resp["serial_connected"] = s.link.IsConnected()
	}
	if s.mqtt != nil {
		resp["mqtt_connected"] = s.mqtt.IsConnected()
	}

	writeJSON(w, http.StatusOK, resp)
}
