// Package plugin runs external executables as hooks on facegate session events.
package plugin

import (
	"encoding/json"
	"time"
)

// Manifest describes a plugin's metadata and the events it subscribes to.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Events       []string        `json:"events"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Subscribes reports whether the manifest lists the event kind. A "*"
// entry subscribes to every event.
func (m Manifest) Subscribes(kind string) bool {
	for _, e := range m.Events {
		if e == kind || e == "*" {
			return true
		}
	}
	return false
}

// Request is the event payload written to a plugin's stdin.
type Request struct {
	Event        string          `json:"event"`
	EnrollmentID string          `json:"enrollment_id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Distance     float64         `json:"distance,omitempty"`
	Captures     int             `json:"captures,omitempty"`
	Message      string          `json:"message,omitempty"`
	At           time.Time       `json:"at"`
	Config       json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
