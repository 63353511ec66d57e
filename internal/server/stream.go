package server

import (
	"fmt"
	"net/http"

	"github.com/ayusman/facegate/internal/render"
)

// StreamHandler serves the annotated frames of an Overlay as MJPEG.
type StreamHandler struct {
	overlay *render.Overlay
}

// NewStreamHandler creates a new StreamHandler for the given overlay.
func NewStreamHandler(overlay *render.Overlay) *StreamHandler {
	return &StreamHandler{overlay: overlay}
}

// ServeHTTP streams a frame each time the overlay renders one.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		updated := h.overlay.Updated()

		if frame := h.overlay.Latest(); len(frame) > 0 {
			if err := writePart(w, frame); err != nil {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-updated:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
