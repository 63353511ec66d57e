// Package detector provides face detection interfaces, types and the
// inference backends the worker drives.
package detector

import (
	"image"
	"math"
)

// NumLandmarks is the point count of the 68-point face landmark model.
const NumLandmarks = 68

// Face region extracted around the eyes centre for snapshots.
const (
	RegionOffsetX = 200
	RegionOffsetY = 100
	RegionSize    = 450
)

// Point is a 2D landmark position in frame pixels.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Box is a face bounding box in frame pixels.
type Box struct {
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	Width  float64 `json:"width" msgpack:"width"`
	Height float64 `json:"height" msgpack:"height"`
}

// Valid reports whether the box has a positive area.
func (b Box) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Rect converts the box to an integer rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X)),
		int(math.Round(b.Y)),
		int(math.Round(b.X+b.Width)),
		int(math.Round(b.Y+b.Height)),
	)
}

// Detection is one face found in a frame.
type Detection struct {
	Box        Box       `json:"box" msgpack:"box"`
	Landmarks  []Point   `json:"landmarks" msgpack:"landmarks"`
	Descriptor []float64 `json:"descriptor,omitempty" msgpack:"descriptor"`
	Score      float64   `json:"score" msgpack:"score"`
}

// Group is a named run of landmark indices drawn as one polyline.
type Group struct {
	Name   string
	Start  int
	End    int // exclusive
	Closed bool
}

// Groups of the 68-point model.
var (
	Jaw        = Group{Name: "jaw", Start: 0, End: 17}
	LeftBrow   = Group{Name: "leftBrow", Start: 17, End: 22}
	RightBrow  = Group{Name: "rightBrow", Start: 22, End: 27}
	NoseBridge = Group{Name: "noseBridge", Start: 27, End: 31}
	NoseBottom = Group{Name: "noseBottom", Start: 31, End: 36}
	LeftEye    = Group{Name: "leftEye", Start: 36, End: 42, Closed: true}
	RightEye   = Group{Name: "rightEye", Start: 42, End: 48, Closed: true}
	OuterLips  = Group{Name: "outerLips", Start: 48, End: 60, Closed: true}
	InnerLips  = Group{Name: "innerLips", Start: 60, End: 68, Closed: true}
)

// Groups lists every landmark group in drawing order.
var Groups = []Group{Jaw, LeftBrow, RightBrow, NoseBridge, NoseBottom, LeftEye, RightEye, OuterLips, InnerLips}

// Points returns the group's points, or nil if the detection lacks them.
func (d Detection) Points(g Group) []Point {
	if len(d.Landmarks) < g.End {
		return nil
	}
	return d.Landmarks[g.Start:g.End]
}

// HasDescriptor reports whether the detection carries a descriptor.
func (d Detection) HasDescriptor() bool {
	return len(d.Descriptor) > 0
}

// EyesCenter returns the midpoint between the first point of each eye.
func (d Detection) EyesCenter() (Point, bool) {
	left := d.Points(LeftEye)
	right := d.Points(RightEye)
	if left == nil || right == nil {
		return Point{}, false
	}
	return Point{
		X: (left[0].X + right[0].X) / 2,
		Y: (left[0].Y + right[0].Y) / 2,
	}, true
}

// Mirror flips the detection horizontally within a frame of the given width.
func (d Detection) Mirror(width float64) Detection {
	out := Detection{
		Box: Box{
			X:      width - d.Box.X - d.Box.Width,
			Y:      d.Box.Y,
			Width:  d.Box.Width,
			Height: d.Box.Height,
		},
		Descriptor: d.Descriptor,
		Score:      d.Score,
	}
	if d.Landmarks != nil {
		out.Landmarks = make([]Point, len(d.Landmarks))
		for i, p := range d.Landmarks {
			out.Landmarks[i] = Point{X: width - p.X, Y: p.Y}
		}
	}
	return out
}

// FaceRegion returns the snapshot rectangle anchored at the eyes centre,
// clipped to the frame. Without eye landmarks it falls back to the box.
func FaceRegion(d Detection, frameWidth, frameHeight int) image.Rectangle {
	frame := image.Rect(0, 0, frameWidth, frameHeight)

	center, ok := d.EyesCenter()
	if !ok {
		return d.Box.Rect().Intersect(frame)
	}

	x := int(math.Round(center.X)) - RegionOffsetX
	y := int(math.Round(center.Y)) - RegionOffsetY
	return image.Rect(x, y, x+RegionSize, y+RegionSize).Intersect(frame)
}
