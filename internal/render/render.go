// Package render draws detection results onto video frames and fans results
// out to the sinks that display them.
package render

import (
	"image/color"
	"time"

	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
)

// Result is one routed inference result.
type Result struct {
	Seq        uint64
	Frame      capture.Frame
	Detections []detector.Detection
	// Fault is set when inference failed; Detections is then empty.
	Fault    bool
	Mode     string
	Captures int
	At       time.Time
}

// Primary returns the authoritative (first) detection.
func (r Result) Primary() (detector.Detection, bool) {
	if len(r.Detections) == 0 {
		return detector.Detection{}, false
	}
	return r.Detections[0], true
}

// Sink consumes routed results. Render must not block the caller for long.
type Sink interface {
	Render(Result)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result)

// Render calls f(r).
func (f SinkFunc) Render(r Result) {
	f(r)
}

// Sinks fans a result out to every sink in order.
type Sinks []Sink

// Render forwards r to each sink.
func (s Sinks) Render(r Result) {
	for _, sink := range s {
		if sink != nil {
			sink.Render(r)
		}
	}
}

// Box colours by detection confidence.
var (
	ColorHigh   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	ColorMedium = color.RGBA{R: 230, G: 210, B: 0, A: 255}
	ColorLow    = color.RGBA{R: 220, G: 0, B: 0, A: 255}
)

// BoxColor returns green for scores >= 0.8, yellow for >= 0.5, red otherwise.
func BoxColor(score float64) color.RGBA {
	switch {
	case score >= 0.8:
		return ColorHigh
	case score >= 0.5:
		return ColorMedium
	default:
		return ColorLow
	}
}
