package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
)

// maxQueryParamLen bounds ids and filter values taken from the URL.
const maxQueryParamLen = 100

// handleListDevices returns a snapshot of every device.
//
// Query parameters:
//   - type: filter by device type (bulb, lock, curtain, ...)
//   - offline: "true" or "false" to filter by offline flag
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")
	if len(typeFilter) > maxQueryParamLen {
		writeBadRequest(w, "type exceeds maximum length")
		return
	}

	var offlineFilter *bool
	if raw := r.URL.Query().Get("offline"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "offline must be true or false")
			return
		}
		offlineFilter = &v
	}

	all := s.bridge.Snapshots()
	devices := make([]reconcile.Snapshot, 0, len(all))
	for _, snap := range all {
		if typeFilter != "" && string(snap.Type) != typeFilter {
			continue
		}
		if offlineFilter != nil && snap.Offline != *offlineFilter {
			continue
		}
		devices = append(devices, snap)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	snap, err := s.bridge.Snapshot(id)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSetDeviceState applies hub set-commands. The body is a JSON object
// of property name to value, e.g. {"On": true, "Brightness": 60}.
//
// The write is accepted once the state machine has staged it; the radio or
// cloud push happens asynchronously and its result arrives on the state
// topic and WebSocket.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.bridge.Set(id, values); err != nil {
		s.logger.Debug("set-command rejected",
			"device_id", id,
			"subject", subjectFromContext(r.Context()),
			"error", err,
		)
		writeBridgeError(w, err)
		return
	}

	s.logger.Info("set-command accepted",
		"device_id", id,
		"subject", subjectFromContext(r.Context()),
		"properties", len(values),
	)

	snap, err := s.bridge.Snapshot(id)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// handleRefreshDevice forces a status refresh and returns the resulting
// snapshot.
func (s *Server) handleRefreshDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if len(id) > maxQueryParamLen {
		writeBadRequest(w, "invalid device ID")
		return
	}

	if err := s.bridge.Refresh(r.Context(), id); err != nil {
		writeBridgeError(w, err)
		return
	}

	snap, err := s.bridge.Snapshot(id)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleWebhook accepts a SwitchBot cloud change report.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.bridge.HandleWebhook(body); err != nil {
		s.logger.Debug("webhook rejected", "error", err)
		writeBridgeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
