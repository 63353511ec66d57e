package tray

import (
	"fmt"

	"github.com/ayusman/facegate/internal/notify"
)

// StatusLine returns the menu status text for an event, and whether a
// session is still running after it.
func StatusLine(e notify.Event, maxCaptures int) (string, bool) {
	switch e.Kind {
	case notify.KindModelsReady:
		return "Ready", false
	case notify.KindCapabilityUnavailable:
		return "Face models unavailable", false
	case notify.KindCaptured:
		return fmt.Sprintf("Registering: %d/%d", e.Captures, maxCaptures), true
	case notify.KindRegistered:
		return "Registered " + e.Name, false
	case notify.KindVerified:
		return fmt.Sprintf("Verified %s (%.3f)", e.Name, e.Distance), false
	default:
		return string(e.Kind), false
	}
}
