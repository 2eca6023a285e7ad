package detect

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/fcw/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// BBox geometry
// ---------------------------------------------------------------------------

func TestBBoxGeometry(t *testing.T) {
	t.Parallel()

	b := BBox{X1: 80, Y1: 40, X2: 120, Y2: 70}
	assert.Equal(t, 40.0, b.Width())
	assert.Equal(t, 30.0, b.Height())
	assert.Equal(t, 100.0, b.CenterX())
	assert.Equal(t, 1200.0, b.Area())

	inverted := BBox{X1: 10, Y1: 10, X2: 5, Y2: 20}
	assert.Equal(t, -5.0, inverted.Width())
	assert.Equal(t, 0.0, inverted.Area())
}

func TestBBoxIoU(t *testing.T) {
	t.Parallel()

	a := BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}

	tests := []struct {
		name string
		b    BBox
		want float64
	}{
		{"identical", a, 1},
		{"disjoint", BBox{X1: 20, Y1: 20, X2: 30, Y2: 30}, 0},
		{"touching edge", BBox{X1: 10, Y1: 0, X2: 20, Y2: 10}, 0},
		{"half overlap", BBox{X1: 5, Y1: 0, X2: 15, Y2: 10}, 50.0 / 150.0},
		{"contained", BBox{X1: 0, Y1: 0, X2: 5, Y2: 10}, 0.5},
		{"degenerate", BBox{X1: 5, Y1: 5, X2: 5, Y2: 5}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, a.IoU(tt.b), 1e-9)
			assert.InDelta(t, tt.want, tt.b.IoU(a), 1e-9, "IoU must be symmetric")
		})
	}
}

// ---------------------------------------------------------------------------
// Filter
// ---------------------------------------------------------------------------

func TestFilter(t *testing.T) {
	t.Parallel()

	dets := []Detection{
		{Label: "car", Confidence: 0.9},
		{Label: "car", Confidence: 0.49},
		{Label: "person", Confidence: 0.7},
		{Label: "dog", Confidence: 0.99},
		{Label: "bus", Confidence: 0.5},
		{Label: "truck", Confidence: 1.2},
	}

	got := Filter(dets, 0.5, []string{"car", "truck", "bus"})
	require.Len(t, got, 2)
	assert.Equal(t, "car", got[0].Label)
	assert.Equal(t, "bus", got[1].Label, "confidence equal to threshold is kept")

	all := Filter(dets, 0.5, nil)
	assert.Len(t, all, 4, "empty class list keeps every in-range label")

	assert.Empty(t, Filter(nil, 0.5, nil))
}

// ---------------------------------------------------------------------------
// ReplayProducer
// ---------------------------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
}

func (s *recordingSink) Offer(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return true
}

func TestReplayProducer(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"t": 1700000000.5, "detections": [{"bbox": {"x1": 80, "y1": 40, "x2": 120, "y2": 70}, "label": "car", "confidence": 0.9}]}`,
		``,
		`{"detections": []}`,
	}, "\n")

	clock := timeutil.NewMockClock(time.Unix(42, 0))
	sink := &recordingSink{}
	err := NewReplayProducer(strings.NewReader(input), clock, 0).Run(context.Background(), sink)
	require.NoError(t, err)

	require.Len(t, sink.frames, 2)
	first := sink.frames[0]
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, time.Unix(1700000000, 500000000), first.Timestamp)
	require.Len(t, first.Detections, 1)
	assert.Equal(t, "car", first.Detections[0].Label)
	assert.Equal(t, 40.0, first.Detections[0].Box.Width())

	second := sink.frames[1]
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, time.Unix(42, 0), second.Timestamp, "missing t falls back to the clock")
	assert.Empty(t, second.Detections)
}

func TestReplayProducerMalformedLineIsFatal(t *testing.T) {
	t.Parallel()

	input := "{\"detections\": []}\n{oops\n"
	sink := &recordingSink{}
	err := NewReplayProducer(strings.NewReader(input), nil, 0).Run(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay line 2")
	assert.Len(t, sink.frames, 1)
}

func TestReplayProducerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordingSink{}
	err := NewReplayProducer(strings.NewReader("{}\n{}\n"), nil, 0).Run(ctx, sink)
	require.NoError(t, err)
	assert.Empty(t, sink.frames)
}

func TestPrecomputedDetector(t *testing.T) {
	t.Parallel()

	f := Frame{Detections: []Detection{{Label: "bus", Confidence: 0.8}}}
	got, err := Precomputed{}.Detect(f)
	require.NoError(t, err)
	assert.Equal(t, f.Detections, got)
}
