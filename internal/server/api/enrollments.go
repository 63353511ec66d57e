package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/store"
)

// EnrollmentHandler handles HTTP requests for enrollment resources.
type EnrollmentHandler struct {
	enrollments *app.Enrollments
}

// NewEnrollmentHandler creates a new EnrollmentHandler.
func NewEnrollmentHandler(e *app.Enrollments) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: e}
}

// ServeHTTP routes requests. Expected paths: /api/enrollments,
// /api/enrollments/{id}, /api/enrollments/{id}/descriptors and
// /api/enrollments/{id}/verifications.
func (h *EnrollmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/enrollments"), "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.importSet(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "descriptors":
			h.export(w, r, id)
		case "verifications":
			h.verifications(w, r, id)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
		return
	}
	if len(parts) > 2 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.rename(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type importRequest struct {
	Name        string          `json:"name"`
	Descriptors json.RawMessage `json:"descriptors"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type enrollmentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Captures  int    `json:"captures"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listEnrollmentsResponse struct {
	Enrollments []enrollmentResponse `json:"enrollments"`
}

type importResponse struct {
	Enrollment enrollmentResponse `json:"enrollment"`
	Imported   int                `json:"imported"`
}

type verificationResponse struct {
	ID        string  `json:"id"`
	Distance  float64 `json:"distance"`
	Matched   bool    `json:"matched"`
	CreatedAt string  `json:"created_at"`
}

type listVerificationsResponse struct {
	Verifications []verificationResponse `json:"verifications"`
}

func toResponse(e *store.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:        e.ID,
		Name:      e.Name,
		Captures:  e.Captures,
		CreatedAt: formatTime(e.CreatedAt),
		UpdatedAt: formatTime(e.UpdatedAt),
	}
}

// list handles GET /api/enrollments.
func (h *EnrollmentHandler) list(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.enrollments.List()
	if err != nil {
		writeErr(w, err)
		return
	}

	resp := listEnrollmentsResponse{Enrollments: make([]enrollmentResponse, 0, len(enrollments))}
	for _, e := range enrollments {
		resp.Enrollments = append(resp.Enrollments, toResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// importSet handles POST /api/enrollments with a descriptor document.
func (h *EnrollmentHandler) importSet(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if len(req.Descriptors) == 0 {
		writeError(w, http.StatusBadRequest, "Descriptors are required")
		return
	}

	enr, n, err := h.enrollments.Import(r.Context(), strings.TrimSpace(req.Name), req.Descriptors)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Enrollment: toResponse(enr), Imported: n})
}

// get handles GET /api/enrollments/{id}.
func (h *EnrollmentHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	enr, err := h.enrollments.Get(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(enr))
}

// rename handles PUT /api/enrollments/{id}.
func (h *EnrollmentHandler) rename(w http.ResponseWriter, r *http.Request, id string) {
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	enr, err := h.enrollments.Rename(id, strings.TrimSpace(req.Name))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(enr))
}

// delete handles DELETE /api/enrollments/{id}.
func (h *EnrollmentHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.enrollments.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// export handles GET /api/enrollments/{id}/descriptors.
func (h *EnrollmentHandler) export(w http.ResponseWriter, r *http.Request, id string) {
	data, err := h.enrollments.Export(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", app.ExportFilename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// verifications handles GET /api/enrollments/{id}/verifications.
func (h *EnrollmentHandler) verifications(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.enrollments.Get(id); err != nil {
		writeErr(w, err)
		return
	}

	history, err := h.enrollments.Verifications(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	resp := listVerificationsResponse{Verifications: make([]verificationResponse, 0, len(history))}
	for _, v := range history {
		resp.Verifications = append(resp.Verifications, verificationResponse{
			ID:        v.ID,
			Distance:  v.Distance,
			Matched:   v.Matched,
			CreatedAt: formatTime(v.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
