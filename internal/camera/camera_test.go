package camera

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fcw/internal/detect"
)

// tensor builds an attrs x n YOLOv8 output from per-anchor rows of
// [cx, cy, w, h, class scores...].
func tensor(anchors ...[]float32) (data []float32, attrs, n int) {
	n = len(anchors)
	attrs = len(anchors[0])
	data = make([]float32, attrs*n)
	for i, a := range anchors {
		for c, v := range a {
			data[c*n+i] = v
		}
	}
	return data, attrs, n
}

func TestDecodeYOLOv8(t *testing.T) {
	t.Parallel()

	cfg := DefaultYOLOConfig()
	// Three classes: person, bicycle, car.
	data, attrs, n := tensor(
		[]float32{320, 320, 100, 50, 0.1, 0.0, 0.9}, // car, kept
		[]float32{100, 100, 20, 40, 0.3, 0.2, 0.1},  // below threshold
		[]float32{160, 480, 40, 80, 0.6, 0.0, 0.0},  // person, kept
	)

	// Source image is half the network input in both axes.
	got := decodeYOLOv8(data, attrs, n, cfg, 320, 320)
	require.Len(t, got, 2)

	assert.Equal(t, 2, got[0].classID)
	assert.InDelta(t, 0.9, got[0].score, 1e-6)
	assert.Equal(t, image.Rect(135, 147, 185, 172), got[0].box)

	assert.Equal(t, 0, got[1].classID)
	assert.Equal(t, image.Rect(70, 220, 90, 260), got[1].box)
}

func TestDecodeYOLOv8_BadShape(t *testing.T) {
	t.Parallel()

	cfg := DefaultYOLOConfig()
	assert.Nil(t, decodeYOLOv8(nil, 84, 8400, cfg, 640, 480))
	assert.Nil(t, decodeYOLOv8(make([]float32, 8), 4, 2, cfg, 640, 480))
}

func TestToDetection(t *testing.T) {
	t.Parallel()

	d := toDetection(candidate{box: image.Rect(10, 20, 150, 120), score: 0.75, classID: 2})
	assert.Equal(t, detect.Detection{
		Box:        detect.BBox{X1: 10, Y1: 20, X2: 150, Y2: 120},
		Label:      "car",
		Confidence: 0.75,
	}, d)

	assert.Equal(t, "unknown", toDetection(candidate{classID: 500}).Label)
}

func TestCOCOClasses(t *testing.T) {
	t.Parallel()

	assert.Len(t, COCOClasses, 80)
	for _, name := range []string{"car", "truck", "bus", "person"} {
		assert.Contains(t, COCOClasses, name)
	}
}
