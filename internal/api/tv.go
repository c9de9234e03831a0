package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/gray-logic-tv/internal/bridges/aquos"
)

// PowerRequest is the body for PUT /api/v1/tv/power.
type PowerRequest struct {
	On bool `json:"on"`
}

// InputRequest is the body for PUT /api/v1/tv/input. The target is
// given either by id or by the configured display name.
type InputRequest struct {
	Input int    `json:"input,omitempty"`
	Name  string `json:"name,omitempty"`
}

// handleGetState returns the cached display state.
//
// The cache reflects the last confirmed command or poll; it does not
// query the display. Use POST /tv/refresh to force a query.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tv.State())
}

// handleSetPower switches the display on or off.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var err error
	if req.On {
		err = s.tv.PowerOn(r.Context())
	} else {
		err = s.tv.PowerOff(r.Context())
	}
	if err != nil {
		s.writeCommandError(w, "power", err)
		return
	}

	writeJSON(w, http.StatusOK, s.tv.State())
}

// handleSelectInput switches the display to the requested input.
func (s *Server) handleSelectInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := req.Input
	if id == 0 && req.Name != "" {
		input, ok := aquos.FindInputByName(s.tv.Inputs(), req.Name)
		if !ok {
			writeBadRequest(w, fmt.Sprintf("unknown input name %q", req.Name))
			return
		}
		id = input.ID
	}

	if err := s.tv.SelectInput(r.Context(), id); err != nil {
		s.writeCommandError(w, "input", err)
		return
	}

	writeJSON(w, http.StatusOK, s.tv.State())
}

// handleListInputs returns the configured input table.
func (s *Server) handleListInputs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"inputs": s.tv.Inputs(),
	})
}

// handleRefresh queries the display and updates the cached state.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.tv.RefreshState(r.Context()); err != nil {
		s.writeCommandError(w, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, s.tv.State())
}

// writeCommandError maps bridge errors to HTTP status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, op string, err error) {
	s.logger.Warn("tv command failed", "operation", op, "error", err)

	switch {
	case errors.Is(err, aquos.ErrInvalidInput), errors.Is(err, aquos.ErrInvalidFrame):
		writeBadRequest(w, err.Error())
	case errors.Is(err, aquos.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeDeviceTimeout, "display did not respond")
	case errors.Is(err, aquos.ErrNotConnected), errors.Is(err, aquos.ErrWriteFailed), errors.Is(err, aquos.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeDeviceUnreachable, "serial link unavailable")
	case errors.Is(err, aquos.ErrCommandRejected), errors.Is(err, aquos.ErrUnexpectedResponse):
		writeError(w, http.StatusBadGateway, ErrCodeDeviceRejected, "display rejected the command")
	default:
		writeInternalError(w, "command failed")
	}
}
