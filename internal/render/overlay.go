package render

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facegate/internal/capture"
	"github.com/ayusman/facegate/internal/detector"
)

var (
	landmarkFill    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	landmarkOutline = color.RGBA{R: 0, G: 122, B: 204, A: 255}
	groupLine       = color.RGBA{R: 85, G: 85, B: 85, A: 255}
)

// Overlay draws results onto their frames and keeps the latest annotated
// frame and face snapshot as JPEG.
type Overlay struct {
	mirror bool

	mu       sync.RWMutex
	latest   []byte
	snapshot []byte
	frames   uint64
	updated  chan struct{}
}

// NewOverlay creates an Overlay. With mirror set the frame and detections
// are flipped horizontally, the way a user sees themselves.
func NewOverlay(mirror bool) *Overlay {
	return &Overlay{
		mirror:  mirror,
		updated: make(chan struct{}),
	}
}

// Render annotates r.Frame and stores the result.
func (o *Overlay) Render(r Result) {
	if r.Frame.Empty() {
		return
	}

	img, err := gocv.IMDecode(r.Frame.Data, gocv.IMReadColor)
	if err != nil {
		log.Printf("overlay: decode frame: %v", err)
		return
	}
	defer img.Close()
	if img.Empty() {
		return
	}

	var snap []byte
	if primary, ok := r.Primary(); ok {
		snap = o.extractFace(img, primary)
	}

	width := float64(img.Cols())
	if o.mirror {
		gocv.Flip(img, &img, 1)
	}

	for i, det := range r.Detections {
		if o.mirror {
			det = det.Mirror(width)
		}
		drawBox(&img, det)
		if i == 0 {
			drawLandmarks(&img, det)
		}
	}

	frame, err := capture.EncodeFrame(img)
	if err != nil {
		log.Printf("overlay: %v", err)
		return
	}

	o.mu.Lock()
	o.latest = frame.Data
	if snap != nil {
		o.snapshot = snap
	}
	o.frames++
	close(o.updated)
	o.updated = make(chan struct{})
	o.mu.Unlock()
}

// Latest returns the most recent annotated frame, or nil.
func (o *Overlay) Latest() []byte {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest
}

// Snapshot returns the most recent face crop, or nil.
func (o *Overlay) Snapshot() []byte {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot
}

// Frames returns how many frames have been rendered.
func (o *Overlay) Frames() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.frames
}

// Updated returns a channel closed when the next frame is rendered.
func (o *Overlay) Updated() <-chan struct{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.updated
}

func (o *Overlay) extractFace(img gocv.Mat, det detector.Detection) []byte {
	region := detector.FaceRegion(det, img.Cols(), img.Rows())
	if region.Empty() {
		return nil
	}

	crop := img.Region(region)
	defer crop.Close()

	frame, err := capture.EncodeFrame(crop)
	if err != nil {
		log.Printf("overlay: snapshot: %v", err)
		return nil
	}
	return frame.Data
}

func drawBox(img *gocv.Mat, det detector.Detection) {
	if !det.Box.Valid() {
		return
	}

	c := BoxColor(det.Score)
	rect := det.Box.Rect()
	gocv.Rectangle(img, rect, c, 3)

	label := fmt.Sprintf("%d%%", int(math.Round(det.Score*100)))
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
	origin := image.Pt(rect.Max.X-size.X-5, rect.Min.Y-10)
	gocv.PutText(img, label, origin, gocv.FontHersheySimplex, 0.5, c, 1)
}

func drawLandmarks(img *gocv.Mat, det detector.Detection) {
	for _, g := range detector.Groups {
		pts := det.Points(g)
		if len(pts) < 2 {
			continue
		}
		for i := 1; i < len(pts); i++ {
			gocv.Line(img, toPt(pts[i-1]), toPt(pts[i]), groupLine, 1)
		}
		if g.Closed {
			gocv.Line(img, toPt(pts[len(pts)-1]), toPt(pts[0]), groupLine, 1)
		}
	}

	for _, p := range det.Landmarks {
		gocv.Circle(img, toPt(p), 2, landmarkFill, -1)
		gocv.Circle(img, toPt(p), 2, landmarkOutline, 1)
	}
}

func toPt(p detector.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
