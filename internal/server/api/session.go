package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/facegate/internal/app"
)

// Sessions starts and stops registration and verification sessions.
type Sessions interface {
	StartRegistration(name string) (*app.Session, error)
	StartVerification(enrollmentID string) (*app.Session, error)
	Cancel() error
	Status() app.Status
}

// SessionHandler handles /api/session requests.
type SessionHandler struct {
	sessions Sessions
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s Sessions) *SessionHandler {
	return &SessionHandler{sessions: s}
}

// ServeHTTP routes /api/session, /api/session/register, /api/session/verify
// and /api/session/cancel.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")

	if action == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.sessions.Status())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch action {
	case "register":
		h.register(w, r)
	case "verify":
		h.verify(w, r)
	case "cancel":
		h.cancel(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type registerRequest struct {
	Name string `json:"name"`
}

type verifyRequest struct {
	EnrollmentID string `json:"enrollment_id"`
}

func (h *SessionHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	session, err := h.sessions.StartRegistration(strings.TrimSpace(req.Name))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, session)
}

func (h *SessionHandler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.EnrollmentID == "" {
		writeError(w, http.StatusBadRequest, "Enrollment ID is required")
		return
	}

	session, err := h.sessions.StartVerification(req.EnrollmentID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, session)
}

func (h *SessionHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Cancel(); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
