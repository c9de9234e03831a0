package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-tv/internal/history"
)

// handleListHistory returns paginated command log entries with optional filters.
//
// Query parameters:
//   - device_id: filter by device
//   - command: filter by command name (power_on, input_select, ...)
//   - status: filter by outcome (ok, timeout, failed, rejected)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.histRepo == nil {
		writeInternalError(w, "command history not configured")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		DeviceID: q.Get("device_id"),
		Command:  q.Get("command"),
		Status:   q.Get("status"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.histRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list command history", "error", err)
		writeInternalError(w, "failed to list command history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
