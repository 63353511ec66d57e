//go:build dlib

package detector

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/ayusman/facegate/internal/capture"
)

// DlibDetector runs dlib face recognition in process via go-face.
type DlibDetector struct {
	modelDir string
	mu       sync.Mutex
	rec      *face.Recognizer
}

// NewDlibDetector creates a detector that loads dlib models from modelDir.
func NewDlibDetector(modelDir string) (Detector, error) {
	info, err := os.Stat(modelDir)
	if err != nil {
		return nil, fmt.Errorf("dlib model dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dlib model dir %s is not a directory", modelDir)
	}
	return &DlibDetector{modelDir: modelDir}, nil
}

// Load initializes the recognizer once.
func (d *DlibDetector) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := face.NewRecognizer(d.modelDir)
	if err != nil {
		return fmt.Errorf("load dlib models: %w", err)
	}
	d.rec = rec
	return nil
}

// Detect recognizes faces in the JPEG frame. dlib reports no detection
// confidence, so every face scores 1.
func (d *DlibDetector) Detect(ctx context.Context, frame capture.Frame, opts Options) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec == nil {
		return nil, ErrModelsNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	faces, err := d.rec.Recognize(frame.Data)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}

	// Largest face first, matching the single-subject use.
	sort.SliceStable(faces, func(i, j int) bool {
		a, b := faces[i].Rectangle, faces[j].Rectangle
		return a.Dx()*a.Dy() > b.Dx()*b.Dy()
	})

	dets := make([]Detection, 0, len(faces))
	for _, f := range faces {
		dets = append(dets, fromFace(f))
	}
	return limit(dets, opts), nil
}

// Close frees the recognizer.
func (d *DlibDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	return nil
}

func fromFace(f face.Face) Detection {
	r := f.Rectangle
	det := Detection{
		Box: Box{
			X:      float64(r.Min.X),
			Y:      float64(r.Min.Y),
			Width:  float64(r.Dx()),
			Height: float64(r.Dy()),
		},
		Descriptor: make([]float64, len(f.Descriptor)),
		Score:      1,
	}
	for i, v := range f.Descriptor {
		det.Descriptor[i] = float64(v)
	}
	if len(f.Shapes) > 0 {
		det.Landmarks = make([]Point, len(f.Shapes))
		for i, p := range f.Shapes {
			det.Landmarks[i] = Point{X: float64(p.X), Y: float64(p.Y)}
		}
	}
	return det
}
