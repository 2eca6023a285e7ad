// Package detect defines the per-frame detection model consumed by the decision
// core, plus the frame producers that feed it.
package detect

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// BBox is an axis-aligned bounding box in pixel coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent. Inverted boxes give a negative width.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// CenterX returns the horizontal centre.
func (b BBox) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// Area returns the box area, or 0 for degenerate boxes.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection-over-union of two boxes in [0, 1].
func (b BBox) IoU(o BBox) float64 {
	ix1 := math.Max(b.X1, o.X1)
	iy1 := math.Max(b.Y1, o.Y1)
	ix2 := math.Min(b.X2, o.X2)
	iy2 := math.Min(b.Y2, o.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a single object reported by the vision model for one frame.
type Detection struct {
	Box        BBox    `json:"bbox"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Frame is one camera frame handed from a producer to the decision loop.
// JPEG is set by camera producers; replayed frames carry Detections directly.
type Frame struct {
	Seq        uint64
	Timestamp  time.Time
	JPEG       []byte
	Detections []Detection
}

// Filter drops detections below minConfidence or whose label is not in
// classes. An empty classes list keeps every label.
func Filter(dets []Detection, minConfidence float64, classes []string) []Detection {
	return lo.Filter(dets, func(d Detection, _ int) bool {
		if d.Confidence < minConfidence || d.Confidence > 1 {
			return false
		}
		return len(classes) == 0 || lo.Contains(classes, d.Label)
	})
}
