package capture

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNoFrames is returned by MockCamera once a non-looping sequence ends.
var ErrNoFrames = errors.New("no more frames")

// MockCamera plays back in-memory frames in place of a device. Opening it
// restarts the sequence, the way a camera restarts its stream.
type MockCamera struct {
	frames []*gocv.Mat
	index  int
	loop   bool
	fps    int
	opens  int
	reads  int

	mu      sync.Mutex
	running bool
}

// NewMockCamera creates a MockCamera over frames. The frames are cloned on
// read and stay owned by the caller.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

// NewTestPatternCamera returns a looping MockCamera showing a single
// synthetic frame, for running without a camera device.
func NewTestPatternCamera(width, height int) *MockCamera {
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(64, 64, 64, 0), height, width, gocv.MatTypeCV8UC3)
	center := image.Pt(width/2, height/2)
	gocv.Circle(&frame, center, height/4, color.RGBA{R: 200, G: 180, B: 160, A: 255}, -1)
	gocv.PutText(&frame, "no camera", image.Pt(10, height-16), gocv.FontHersheySimplex, 0.6, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)

	return NewMockCamera([]*gocv.Mat{&frame}, true)
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	c.opens++
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		return nil, ErrNoFrames
	}

	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, ErrNoFrames
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++
	c.reads++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps > 0 {
		c.fps = fps
	}
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns how often the camera was opened and read.
func (c *MockCamera) Stats() (opens, reads int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens, c.reads
}
