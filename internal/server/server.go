// Package server provides the HTTP server for the facegate service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/render"
	"github.com/ayusman/facegate/internal/server/api"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	// Enrollments defaults to App.Enrollments().
	Enrollments *app.Enrollments
	Overlay     *render.Overlay
	Hub         *DetectionsHub
}

// Server represents the HTTP server for the facegate service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Enrollments == nil && config.App != nil {
		config.Enrollments = config.App.Enrollments()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		sessions := api.NewSessionHandler(s.config.App)
		s.mux.Handle("/api/session", sessions)
		s.mux.Handle("/api/session/", sessions)
		s.mux.Handle("/api/detector/options", api.NewOptionsHandler(s.config.App))
	}

	if s.config.Enrollments != nil {
		enrollments := api.NewEnrollmentHandler(s.config.Enrollments)
		s.mux.Handle("/api/enrollments", enrollments)
		s.mux.Handle("/api/enrollments/", enrollments)
	}

	if s.config.Overlay != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Overlay))
		s.mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/detections", s.config.Hub)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		st := s.config.App.Status()
		response["running"] = st.Running
		response["models_ready"] = st.Ready
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleSnapshot serves the most recent face crop.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.config.Overlay.Snapshot()
	if len(snap) == 0 {
		http.Error(w, "No snapshot available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(snap)
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
