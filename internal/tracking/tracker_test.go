package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fcw/internal/detect"
)

func det(label string, x1, y1, x2, y2 float64) detect.Detection {
	return detect.Detection{
		Box:        detect.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Label:      label,
		Confidence: 0.9,
	}
}

var t0 = time.Unix(1000, 0)

// ---------------------------------------------------------------------------
// IoU association
// ---------------------------------------------------------------------------

func TestTracker_NewTrackHasZeroVelocity(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	got := tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "car", got[0].Label)
	assert.Equal(t, 0.0, got[0].Velocity)
	assert.Equal(t, 1, got[0].Age)
	assert.True(t, got[0].DistanceValid)
	assert.InDelta(t, 14.0, got[0].Distance, 1e-9) // 2.0*700/100
	assert.Empty(t, got[0].Key)
}

func TestTracker_MatchedTrackWidthRate(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	first := tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	second := tr.Update([]detect.Detection{det("car", 95, 48, 215, 125)}, t0.Add(500*time.Millisecond))

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.InDelta(t, 40.0, second[0].Velocity, 1e-9) // (120-100)/0.5
	assert.Equal(t, 2, second[0].Age)
	assert.Equal(t, t0, second[0].FirstSeen)
}

func TestTracker_NonPositiveDtGivesZeroVelocity(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	got := tr.Update([]detect.Detection{det("car", 100, 50, 220, 120)}, t0)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Velocity)

	got = tr.Update([]detect.Detection{det("car", 100, 50, 230, 120)}, t0.Add(-time.Second))
	assert.Equal(t, 0.0, got[0].Velocity)
}

func TestTracker_LabelMismatchCreatesNewTrack(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	a := tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	b := tr.Update([]detect.Detection{det("truck", 100, 50, 200, 120)}, t0.Add(time.Second))
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, 0.0, b[0].Velocity)
}

func TestTracker_LowOverlapCreatesNewTrack(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	a := tr.Update([]detect.Detection{det("car", 0, 0, 100, 100)}, t0)
	// IoU = 2500/17500 ≈ 0.14, below 0.3.
	b := tr.Update([]detect.Detection{det("car", 50, 50, 150, 150)}, t0.Add(time.Second))
	assert.NotEqual(t, a[0].ID, b[0].ID)
}

func TestTracker_OptimalAssignmentAcrossCrossingObjects(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	first := tr.Update([]detect.Detection{
		det("car", 0, 0, 100, 100),
		det("car", 80, 0, 180, 100),
	}, t0)
	// Detection order reversed; each box nudged slightly.
	second := tr.Update([]detect.Detection{
		det("car", 82, 0, 182, 100),
		det("car", 2, 0, 102, 100),
	}, t0.Add(100*time.Millisecond))

	require.Len(t, second, 2)
	assert.Equal(t, first[1].ID, second[0].ID)
	assert.Equal(t, first[0].ID, second[1].ID)
}

func TestTracker_TrackKeepsBestOverlappingDetection(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	first := tr.Update([]detect.Detection{det("car", 100, 100, 200, 200)}, t0)
	// The weaker overlap (IoU ≈ 0.54) comes first in detection order.
	second := tr.Update([]detect.Detection{
		det("car", 130, 100, 230, 200),
		det("car", 102, 100, 202, 200),
	}, t0.Add(100*time.Millisecond))

	require.Len(t, second, 2)
	assert.Equal(t, int64(2), second[0].ID)
	assert.Equal(t, 1, second[0].Age)
	assert.Equal(t, first[0].ID, second[1].ID)
	assert.Equal(t, 2, second[1].Age)
	assert.Equal(t, 102.0, second[1].Box.X1)
}

func TestTracker_EachTrackTakesItsClosestBox(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	first := tr.Update([]detect.Detection{
		det("car", 0, 0, 100, 100),
		det("car", 300, 0, 400, 100),
	}, t0)
	second := tr.Update([]detect.Detection{
		det("car", 20, 0, 120, 100),  // IoU ≈ 0.67 with the left track
		det("car", 305, 0, 405, 100), // IoU ≈ 0.90 with the right track
		det("car", 3, 0, 103, 100),   // IoU ≈ 0.94 with the left track
		det("car", 330, 0, 430, 100), // IoU ≈ 0.54 with the right track
	}, t0.Add(100*time.Millisecond))

	require.Len(t, second, 4)
	byID := map[int64]float64{}
	for _, got := range second {
		byID[got.ID] = got.Box.X1
	}
	assert.Equal(t, 3.0, byID[first[0].ID])
	assert.Equal(t, 305.0, byID[first[1].ID])
	assert.Equal(t, 4, tr.Len())
}

func TestTracker_DegenerateWidthFlagsDistance(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())

	got := tr.Update([]detect.Detection{det("car", 100, 50, 100, 120)}, t0)
	require.Len(t, got, 1)
	assert.False(t, got[0].DistanceValid)
}

// ---------------------------------------------------------------------------
// Expiry and arena
// ---------------------------------------------------------------------------

// Expiry is not in the legacy behaviour, which kept every track forever.
func TestTracker_ExpiresAfterMaxMisses(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxMisses = 2
	tr := NewTracker(cfg)

	tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	require.Equal(t, 1, tr.Len())

	got := tr.Update(nil, t0.Add(time.Second))
	assert.Empty(t, got, "only tracks matched or created this cycle are returned")
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 1, tr.Live()[0].Misses)

	tr.Update(nil, t0.Add(2*time.Second))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_MatchResetsMisses(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxMisses = 2
	tr := NewTracker(cfg)

	d := det("car", 100, 50, 200, 120)
	tr.Update([]detect.Detection{d}, t0)
	tr.Update(nil, t0.Add(time.Second))
	got := tr.Update([]detect.Detection{d}, t0.Add(2*time.Second))
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, 0, got[0].Misses)

	tr.Update(nil, t0.Add(3*time.Second))
	assert.Equal(t, 1, tr.Len())
}

func TestTracker_IDsNeverReusedAfterExpiry(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxMisses = 1
	tr := NewTracker(cfg)

	a := tr.Update([]detect.Detection{det("car", 0, 0, 100, 100)}, t0)
	tr.Update(nil, t0.Add(time.Second))
	require.Equal(t, 0, tr.Len())

	b := tr.Update([]detect.Detection{det("car", 0, 0, 100, 100)}, t0.Add(2*time.Second))
	assert.Greater(t, b[0].ID, a[0].ID)
	assert.Len(t, tr.slots, 1, "expired slot is reused")
}

func TestTracker_Reset(t *testing.T) {
	t.Parallel()
	tr := NewTracker(DefaultConfig())
	tr.Update([]detect.Detection{det("car", 0, 0, 100, 100)}, t0)
	tr.Reset()
	assert.Equal(t, 0, tr.Len())

	got := tr.Update([]detect.Detection{det("car", 0, 0, 100, 100)}, t0)
	assert.Equal(t, int64(2), got[0].ID)
}

// ---------------------------------------------------------------------------
// Positional association
// ---------------------------------------------------------------------------

func TestPositionKeyTruncates(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "100_50", PositionKey(detect.BBox{X1: 100.7, Y1: 50.2}))
	assert.Equal(t, "0_0", PositionKey(detect.BBox{X1: 0.99, Y1: -0.5}))
}

func TestTracker_PositionModeSameCornerSameTrack(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Association = AssociationPosition
	tr := NewTracker(cfg)

	a := tr.Update([]detect.Detection{det("car", 100.2, 50.9, 200, 120)}, t0)
	b := tr.Update([]detect.Detection{det("car", 100.8, 50.1, 210, 120)}, t0.Add(time.Second))
	require.Len(t, b, 1)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, "100_50", b[0].Key)
	assert.InDelta(t, 9.4, b[0].Velocity, 1e-9) // (109.2-99.8)/1s
}

func TestTracker_PositionModeMovedCornerNewTrack(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Association = AssociationPosition
	tr := NewTracker(cfg)

	a := tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	b := tr.Update([]detect.Detection{det("car", 101, 50, 201, 120)}, t0.Add(time.Second))
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, 0.0, b[0].Velocity)
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_PositionModeExpiryFreesKey(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Association = AssociationPosition
	cfg.MaxMisses = 1
	tr := NewTracker(cfg)

	a := tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0)
	tr.Update(nil, t0.Add(time.Second))
	b := tr.Update([]detect.Detection{det("car", 100, 50, 200, 120)}, t0.Add(2*time.Second))
	assert.NotEqual(t, a[0].ID, b[0].ID)
	assert.Equal(t, 1, b[0].Age)
}

func TestTracker_PositionModeDuplicateKeyInOneFrame(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Association = AssociationPosition
	tr := NewTracker(cfg)

	got := tr.Update([]detect.Detection{
		det("car", 100.2, 50.4, 200, 120),
		det("car", 100.7, 50.9, 210, 120),
	}, t0)
	require.Len(t, got, 1)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 1, got[0].Age)
	assert.Equal(t, 100.7, got[0].Box.X1) // the later box wins
}

func TestTracker_PositionModeStationaryObjectKeepsIdentity(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Association = AssociationPosition
	tr := NewTracker(cfg)

	tr.Update([]detect.Detection{
		det("car", 100.1, 50.1, 200, 120),
		det("car", 100.6, 50.6, 200, 120),
	}, t0)

	var id int64
	for frame := 1; frame <= 2*cfg.MaxMisses; frame++ {
		got := tr.Update([]detect.Detection{det("car", 100.3, 50.3, 200, 120)},
			t0.Add(time.Duration(frame)*100*time.Millisecond))
		require.Len(t, got, 1)
		if frame == 1 {
			id = got[0].ID
		}
		assert.Equal(t, id, got[0].ID, "frame %d", frame)
		assert.Equal(t, frame+1, got[0].Age, "frame %d", frame)
	}
	assert.Equal(t, 1, tr.Len())
}
