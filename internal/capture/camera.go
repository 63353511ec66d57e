// Package capture provides camera capture and the frame sources the pump reads from.
package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when reading from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrReadFailed is returned when the device delivers no frame.
	ErrReadFailed = errors.New("failed to read frame from camera")

	// ErrEmptyFrame is returned when the device delivers an empty frame.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera is a frame-producing capture device.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Device selects a capture device and the mode requested from it.
// Zero fields take the package defaults.
type Device struct {
	ID     int
	Width  int
	Height int
	FPS    int
}

func (d Device) withDefaults() Device {
	if d.Width <= 0 || d.Height <= 0 {
		d.Width, d.Height = DefaultWidth, DefaultHeight
	}
	if d.FPS <= 0 {
		d.FPS = DefaultFPS
	}
	return d
}

// deviceCamera captures from a local video device through GoCV.
type deviceCamera struct {
	mu      sync.Mutex
	dev     Device
	capture *gocv.VideoCapture
}

// NewCamera returns a closed Camera for dev.
func NewCamera(dev Device) Camera {
	return &deviceCamera{dev: dev.withDefaults()}
}

// Open opens the device and requests the configured mode. Devices are free
// to pick another resolution; the one delivered is logged.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.dev.ID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.dev.ID, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.dev.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.dev.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(c.dev.FPS))

	w, h := int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight))
	if w != c.dev.Width || h != c.dev.Height {
		log.Printf("camera %d: requested %dx%d, got %dx%d", c.dev.ID, c.dev.Width, c.dev.Height, w, h)
	}

	c.capture = vc
	return nil
}

func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if !c.capture.Read(&mat) {
		mat.Close()
		return nil, ErrReadFailed
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &mat, nil
}

// SetFPS changes the requested frame rate. Non-positive values are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dev.FPS = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dev.FPS
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
