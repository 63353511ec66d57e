package detector

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/facegate/internal/capture"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	err        error
	loadErr    error
	delay      time.Duration
	loaded     bool
	loads      int
	calls      int
	lastOpts   Options
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetLoadError sets the error that will be returned by Load.
func (m *MockDetector) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

// SetDelay makes Detect block for d or until its context is done.
func (m *MockDetector) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Load marks the models loaded unless a load error is set.
func (m *MockDetector) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return m.loadErr
	}
	m.loaded = true
	return nil
}

// Detect returns the pre-configured detections or error.
func (m *MockDetector) Detect(ctx context.Context, frame capture.Frame, opts Options) ([]Detection, error) {
	m.mu.Lock()
	m.calls++
	m.lastOpts = opts
	delay, dets, err := m.delay, m.detections, m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	out := make([]Detection, len(dets))
	copy(out, dets)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Loads returns how many times Load was called.
func (m *MockDetector) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastOptions returns the options passed to the most recent Detect call.
func (m *MockDetector) LastOptions() Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

// SampleFace returns a frontal face detection centred in a 640x480 frame
// carrying the given descriptor.
func SampleFace(descriptor []float64, score float64) Detection {
	det := Detection{
		Box:        Box{X: 220, Y: 130, Width: 200, Height: 220},
		Landmarks:  make([]Point, NumLandmarks),
		Descriptor: descriptor,
		Score:      score,
	}

	// Jaw along the lower half of an ellipse
	for i := Jaw.Start; i < Jaw.End; i++ {
		t := float64(i) / float64(Jaw.End-1)
		det.Landmarks[i] = Point{X: 230 + 180*t, Y: 200 + 140*(1-4*(t-0.5)*(t-0.5))}
	}
	for i := LeftBrow.Start; i < LeftBrow.End; i++ {
		det.Landmarks[i] = Point{X: 255 + float64(i-LeftBrow.Start)*12, Y: 185}
	}
	for i := RightBrow.Start; i < RightBrow.End; i++ {
		det.Landmarks[i] = Point{X: 337 + float64(i-RightBrow.Start)*12, Y: 185}
	}
	for i := NoseBridge.Start; i < NoseBridge.End; i++ {
		det.Landmarks[i] = Point{X: 320, Y: 200 + float64(i-NoseBridge.Start)*12}
	}
	for i := NoseBottom.Start; i < NoseBottom.End; i++ {
		det.Landmarks[i] = Point{X: 304 + float64(i-NoseBottom.Start)*8, Y: 250}
	}
	for i := LeftEye.Start; i < LeftEye.End; i++ {
		det.Landmarks[i] = Point{X: 265 + float64(i-LeftEye.Start)*6, Y: 210}
	}
	for i := RightEye.Start; i < RightEye.End; i++ {
		det.Landmarks[i] = Point{X: 345 + float64(i-RightEye.Start)*6, Y: 210}
	}
	for i := OuterLips.Start; i < OuterLips.End; i++ {
		det.Landmarks[i] = Point{X: 290 + float64(i-OuterLips.Start)*5, Y: 285}
	}
	for i := InnerLips.Start; i < InnerLips.End; i++ {
		det.Landmarks[i] = Point{X: 300 + float64(i-InnerLips.Start)*5, Y: 287}
	}

	return det
}
