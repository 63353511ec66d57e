// Package notify delivers session events to the log, MQTT and plugins.
package notify

import (
	"log"
	"strconv"
	"time"
)

// Kind identifies an event.
type Kind string

const (
	KindCaptured              Kind = "captured"
	KindRegistered            Kind = "registered"
	KindVerified              Kind = "verified"
	KindModelsReady           Kind = "models-ready"
	KindCapabilityUnavailable Kind = "capability-unavailable"
)

// Event is emitted by the app when a session makes progress.
type Event struct {
	Kind         Kind      `json:"kind"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	Distance     float64   `json:"distance,omitempty"`
	Captures     int       `json:"captures,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// Notifier receives events. Notify must not block the caller for long.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// Multi fans an event out to several notifiers.
type Multi []Notifier

// Notify delivers e to every non-nil notifier in order.
func (m Multi) Notify(e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(e)
		}
	}
}

// LogNotifier writes events to the standard logger.
type LogNotifier struct{}

// Notify logs the event.
func (LogNotifier) Notify(e Event) {
	switch e.Kind {
	case KindRegistered:
		log.Printf("Registration completed: %s (%d captures)", e.Name, e.Captures)
	case KindVerified:
		log.Printf("Face Verified: Same Person, distance : %v", e.Distance)
	case KindCaptured:
		log.Printf("captured descriptor %d for %s", e.Captures, e.Name)
	case KindCapabilityUnavailable:
		log.Printf("face detection unavailable: %s", e.Message)
	default:
		log.Printf("event %s", e.Kind)
	}
}

// Alert returns the user-facing alert text for terminal events, or "".
func Alert(e Event) string {
	switch e.Kind {
	case KindRegistered:
		return "Registration completed"
	case KindVerified:
		return "Face Verified: Same Person, distance : " + formatDistance(e.Distance)
	}
	return ""
}

func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'g', -1, 64)
}
