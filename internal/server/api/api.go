// Package api provides HTTP API handlers for the facegate service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/identity"
	"github.com/ayusman/facegate/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps a service error to its HTTP status.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, identity.ErrNoReferences):
		return http.StatusUnprocessableEntity
	case errors.Is(err, identity.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
