package api

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-switchbot/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var (
	errHistoryLimit = errors.New("limit must be an integer between 1 and 200")
	errHistorySince = errors.New("since must be an RFC3339 timestamp")
)

// historyQuery is the parsed ?limit=&since= of a history request.
type historyQuery struct {
	limit int
	since time.Time
}

type historyResponse struct {
	DeviceID string                     `json:"device_id"`
	History  []device.StateHistoryEntry `json:"history"`
	Count    int                        `json:"count"`
}

// handleGetDeviceHistory serves GET /api/v1/devices/{id}/history, newest
// sample first. limit defaults to 50 (max 200); since drops samples at or
// before the given instant.
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}
	q, err := parseHistoryQuery(r.URL.Query())
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if _, err := s.bridge.Snapshot(id); err != nil {
		writeBridgeError(w, err)
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history unavailable")
		return
	}

	entries, err := s.history.GetHistory(r.Context(), id, q.limit)
	if err != nil {
		s.logger.Error("history query failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device history")
		return
	}
	if !q.since.IsZero() {
		entries = slices.DeleteFunc(entries, func(e device.StateHistoryEntry) bool {
			return !e.CreatedAt.After(q.since)
		})
	}

	writeJSON(w, http.StatusOK, historyResponse{DeviceID: id, History: entries, Count: len(entries)})
}

func parseHistoryQuery(v url.Values) (historyQuery, error) {
	q := historyQuery{limit: defaultHistoryLimit}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return q, errHistoryLimit
		}
		q.limit = n
	}
	if raw := v.Get("since"); raw != "" {
		// RFC3339Nano also accepts timestamps without fractional seconds.
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return q, errHistorySince
		}
		q.since = t
	}
	return q, nil
}
