package detector

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ayusman/facegate/internal/capture"
)

var (
	// ErrModelsNotLoaded is returned by Detect before Load has succeeded.
	ErrModelsNotLoaded = errors.New("face models not loaded")
	// ErrBackendUnavailable is returned when a backend cannot run on this host.
	ErrBackendUnavailable = errors.New("detector backend unavailable")
)

// Detector defines the interface for face inference backends.
type Detector interface {
	// Load loads the models. Calling it again after success is a no-op.
	Load(ctx context.Context) error

	// Detect runs detection, landmarks and descriptors on a frame.
	// Returns an empty slice if no faces are found.
	Detect(ctx context.Context, frame capture.Frame, opts Options) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Options are the per-submission detector settings.
type Options struct {
	// InputSize is the network input resolution; a positive multiple of 32.
	InputSize int `json:"input_size" yaml:"input_size" msgpack:"input_size"`

	// ScoreThreshold drops detections scoring below it (0.0-1.0).
	ScoreThreshold float64 `json:"score_threshold" yaml:"score_threshold" msgpack:"score_threshold"`

	// MaxFaces caps the number of detections returned.
	MaxFaces int `json:"max_faces" yaml:"max_faces" msgpack:"max_faces"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		InputSize:      128,
		ScoreThreshold: 0.1,
		MaxFaces:       1,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.InputSize <= 0 || o.InputSize%32 != 0 {
		return fmt.Errorf("input size %d must be a positive multiple of 32", o.InputSize)
	}
	if o.ScoreThreshold < 0 || o.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold %v out of range [0,1]", o.ScoreThreshold)
	}
	if o.MaxFaces < 1 {
		return fmt.Errorf("max faces %d must be at least 1", o.MaxFaces)
	}
	return nil
}

// Backend names accepted by New.
const (
	BackendProcess = "process"
	BackendDlib    = "dlib"
	BackendMock    = "mock"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Python   string
	Script   string
	ModelDir string
}

// New creates the configured backend. When it cannot run on this host the
// error is returned together with an Unavailable detector, so the pipeline
// still starts and reports the capability as unavailable on every load.
func New(cfg Config) (Detector, error) {
	var (
		d   Detector
		err error
	)

	switch cfg.Backend {
	case BackendMock:
		return NewMockDetector(), nil
	case BackendDlib:
		d, err = NewDlibDetector(cfg.ModelDir)
	case BackendProcess, "":
		d, err = NewProcessDetector(cfg.Python, cfg.Script)
	default:
		err = fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}

	if err != nil {
		if !errors.Is(err, ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		log.Printf("face detector not available: %v", err)
		return Unavailable{Err: err}, err
	}
	return d, nil
}

// Unavailable stands in for a backend that cannot run. Load and Detect
// fail with Err.
type Unavailable struct {
	Err error
}

func (u Unavailable) Load(ctx context.Context) error {
	return u.Err
}

func (u Unavailable) Detect(ctx context.Context, frame capture.Frame, opts Options) ([]Detection, error) {
	return nil, u.Err
}

func (u Unavailable) Close() error { return nil }

// limit applies the score threshold and face cap, preserving order.
func limit(dets []Detection, opts Options) []Detection {
	out := dets[:0]
	for _, d := range dets {
		if d.Score < opts.ScoreThreshold {
			continue
		}
		out = append(out, d)
		if opts.MaxFaces > 0 && len(out) == opts.MaxFaces {
			break
		}
	}
	return out
}
