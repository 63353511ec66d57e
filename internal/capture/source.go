package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrNotPlaying is returned by Grab when the source is stopped.
var ErrNotPlaying = errors.New("source is not playing")

// Frame is an encoded video frame handed to the inference worker.
type Frame struct {
	Data      []byte // JPEG
	Width     int
	Height    int
	Timestamp int64 // unix milliseconds
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Source is a live video source the frame pump samples from.
type Source interface {
	// Playing reports whether the source is currently producing frames.
	Playing() bool
	// Grab captures the current frame.
	Grab() (Frame, error)
}

// Player is a Source that can be started and stopped.
type Player interface {
	Source
	Play() error
	Stop() error
}

// EncodeFrame encodes a Mat as a JPEG Frame. The Mat is not closed.
func EncodeFrame(mat gocv.Mat) (Frame, error) {
	if mat.Empty() {
		return Frame{}, errors.New("cannot encode empty frame")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// NativeByteBuffer memory is released on Close.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return Frame{
		Data:      data,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// LoadFrame reads an image file and encodes it as a Frame.
func LoadFrame(path string) (Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return Frame{}, fmt.Errorf("load frame %s: unreadable image", path)
	}
	return EncodeFrame(mat)
}

// CameraSource adapts a Camera to the Source interface.
type CameraSource struct {
	camera Camera
}

// NewCameraSource creates a CameraSource around camera.
func NewCameraSource(camera Camera) *CameraSource {
	return &CameraSource{camera: camera}
}

// Play opens the camera.
func (s *CameraSource) Play() error {
	return s.camera.Open()
}

// Stop closes the camera.
func (s *CameraSource) Stop() error {
	return s.camera.Close()
}

// Playing reports whether the camera is open.
func (s *CameraSource) Playing() bool {
	return s.camera.IsOpen()
}

// Grab reads and encodes the current camera frame.
func (s *CameraSource) Grab() (Frame, error) {
	if !s.camera.IsOpen() {
		return Frame{}, ErrNotPlaying
	}

	mat, err := s.camera.ReadFrame()
	if err != nil {
		return Frame{}, err
	}
	defer mat.Close()

	return EncodeFrame(*mat)
}

// Camera returns the wrapped camera.
func (s *CameraSource) Camera() Camera {
	return s.camera
}

// MockSource replays pre-encoded frames for tests.
type MockSource struct {
	mu      sync.Mutex
	frames  []Frame
	index   int
	playing bool
	err     error
	grabs   int
}

// NewMockSource creates a stopped MockSource that loops over frames.
func NewMockSource(frames ...Frame) *MockSource {
	return &MockSource{frames: frames}
}

func (s *MockSource) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

func (s *MockSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *MockSource) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetError makes subsequent Grab calls fail with err.
func (s *MockSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Grabs returns how many frames have been grabbed.
func (s *MockSource) Grabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grabs
}

func (s *MockSource) Grab() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return Frame{}, ErrNotPlaying
	}
	if s.err != nil {
		return Frame{}, s.err
	}
	s.grabs++

	if len(s.frames) == 0 {
		return Frame{Data: []byte{0xff, 0xd8}, Width: 1, Height: 1, Timestamp: time.Now().UnixMilli()}, nil
	}

	f := s.frames[s.index%len(s.frames)]
	s.index++
	f.Timestamp = time.Now().UnixMilli()
	return f, nil
}
