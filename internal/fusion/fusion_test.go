package fusion

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/fcw/internal/detect"
	"github.com/banshee-data/fcw/internal/radar"
	"github.com/banshee-data/fcw/internal/tracking"
)

// track centred on cx with the given camera range and rate.
func track(id int64, cx, dist, vel float64) tracking.Track {
	return tracking.Track{
		ID:            id,
		Label:         "car",
		Box:           detect.BBox{X1: cx - 50, Y1: 100, X2: cx + 50, Y2: 180},
		Width:         100,
		Distance:      dist,
		DistanceValid: true,
		Velocity:      vel,
	}
}

func TestFuse_RadarMatchOverridesCamera(t *testing.T) {
	t.Parallel()
	got := Fuse([]tracking.Track{track(1, 100, 14, 3)}, []radar.Return{{Distance: 18, Velocity: -5, Angle: 105}}, DefaultConfig())
	require.Len(t, got, 1)
	want := Object{TrackID: 1, Label: "car", CenterX: 100, Distance: 18, Velocity: -5, Angle: 105, Source: SourceRadar}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("fused object mismatch (-want +got):\n%s", diff)
	}
}

func TestFuse_NoMatchKeepsCamera(t *testing.T) {
	t.Parallel()
	got := Fuse([]tracking.Track{track(1, 320, 14, 3)}, []radar.Return{{Distance: 18, Velocity: -5, Angle: 0}}, DefaultConfig())
	require.Len(t, got, 1)
	assert.Equal(t, SourceCamera, got[0].Source)
	assert.Equal(t, 14.0, got[0].Distance)
	assert.Equal(t, 3.0, got[0].Velocity)
	assert.InDelta(t, 0.0, got[0].Angle, 1e-12, "image centre is straight ahead")
}

func TestFuse_ThresholdIsStrict(t *testing.T) {
	t.Parallel()
	got := Fuse([]tracking.Track{track(1, 100, 14, 0)}, []radar.Return{{Distance: 18, Angle: 50}}, DefaultConfig())
	assert.Equal(t, SourceCamera, got[0].Source, "|100-50| == 50 is not a match")

	got = Fuse([]tracking.Track{track(1, 100, 14, 0)}, []radar.Return{{Distance: 18, Angle: 50.001}}, DefaultConfig())
	assert.Equal(t, SourceRadar, got[0].Source)
}

func TestFuse_NearestOfSeveralMatchesWins(t *testing.T) {
	t.Parallel()
	returns := []radar.Return{
		{Distance: 30, Velocity: -1, Angle: 90},
		{Distance: 12, Velocity: -2, Angle: 120},
		{Distance: 12, Velocity: -9, Angle: 110},
		{Distance: 5, Velocity: -3, Angle: 0}, // out of gate
	}
	got := Fuse([]tracking.Track{track(1, 100, 14, 0)}, returns, DefaultConfig())
	require.Len(t, got, 1)
	assert.Equal(t, 12.0, got[0].Distance)
	assert.Equal(t, -2.0, got[0].Velocity, "first of equal-distance matches wins")
}

func TestFuse_ExcludesIndeterminateTracks(t *testing.T) {
	t.Parallel()
	bad := track(2, 100, 0, 0)
	bad.DistanceValid = false
	got := Fuse([]tracking.Track{track(1, 300, 14, 0), bad}, []radar.Return{{Distance: 18, Angle: 100}}, DefaultConfig())
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].TrackID)
}

func TestFuse_EmptyInputs(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Fuse(nil, nil, DefaultConfig()))
	got := Fuse([]tracking.Track{track(1, 100, 14, 0)}, nil, DefaultConfig())
	assert.Equal(t, SourceCamera, got[0].Source)
}

func TestCameraAngle(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	want := []Object{
		{CenterX: 1020, Angle: 45},
		{CenterX: -380, Angle: -45},
	}
	var got []Object
	for _, w := range want {
		got = append(got, Object{CenterX: w.CenterX, Angle: cameraAngle(w.CenterX, cfg)})
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("camera angle mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0.0, cameraAngle(10, Config{}))
	assert.False(t, math.IsNaN(cameraAngle(10, cfg)))
}
