package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-switchbot/internal/bridge"
	"github.com/nerrad567/gray-logic-switchbot/internal/reconcile"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in Error.Code.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// bridgeErrorRule maps a sentinel to a response. A non-empty message
// replaces err.Error() in the body.
type bridgeErrorRule struct {
	target  error
	status  int
	code    string
	message string
}

// bridgeErrorRules is checked in order by writeBridgeError.
var bridgeErrorRules = []bridgeErrorRule{
	{bridge.ErrUnknownDevice, http.StatusNotFound, ErrCodeNotFound, "device not found"},
	{bridge.ErrInvalidCommand, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{bridge.ErrInvalidWebhook, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{reconcile.ErrReadOnly, http.StatusUnprocessableEntity, ErrCodeValidation, ""},
	{reconcile.ErrInvalidValue, http.StatusUnprocessableEntity, ErrCodeValidation, ""},
	{reconcile.ErrOffline, http.StatusConflict, ErrCodeConflict, ""},
	{reconcile.ErrNoChannel, http.StatusConflict, ErrCodeConflict, ""},
	{reconcile.ErrStopped, http.StatusConflict, ErrCodeConflict, ""},
	{reconcile.ErrRefreshSkipped, http.StatusConflict, ErrCodeConflict, ""},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may be gone
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError answers with the first matching rule, or 500.
func writeBridgeError(w http.ResponseWriter, err error) {
	for _, rule := range bridgeErrorRules {
		if !errors.Is(err, rule.target) {
			continue
		}
		msg := rule.message
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, rule.status, rule.code, msg)
		return
	}
	writeInternalError(w, err.Error())
}
