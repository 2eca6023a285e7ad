// Package fusion combines camera tracks with radar returns into one range and
// closing-rate estimate per object.
package fusion

import (
	"math"

	"github.com/samber/lo"

	"github.com/banshee-data/fcw/internal/config"
	"github.com/banshee-data/fcw/internal/radar"
	"github.com/banshee-data/fcw/internal/tracking"
)

// Source records which sensor supplied an object's range and rate.
type Source string

const (
	SourceCamera Source = "camera"
	SourceRadar  Source = "radar"
)

// Config holds fusion parameters.
type Config struct {
	// MatchThresholdPx gates radar association. It is compared against the
	// difference between a pixel column and a radar angle in degrees; the
	// units do not agree and the comparison is kept as-is.
	MatchThresholdPx float64
	FocalLengthPx    float64
	ImageWidthPx     float64
}

// DefaultConfig returns the stock fusion configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MatchThresholdPx: cfg.GetMatchThresholdPx(),
		FocalLengthPx:    cfg.GetFocalLengthPx(),
		ImageWidthPx:     float64(cfg.GetImageWidthPx()),
	}
}

// Object is the fused estimate for one track this cycle.
type Object struct {
	TrackID  int64   `json:"track_id"`
	Label    string  `json:"label"`
	CenterX  float64 `json:"center_x"`
	Distance float64 `json:"distance_m"`
	Velocity float64 `json:"velocity_mps"`
	Angle    float64 `json:"angle_deg"`
	Source   Source  `json:"source"`
}

// Fuse returns one Object per track with a determinate camera range, in
// track order. A track is radar-corroborated when some return satisfies
// |centerX - angle| < MatchThresholdPx; among several such returns the
// nearest wins, the first on ties.
func Fuse(tracks []tracking.Track, returns []radar.Return, cfg Config) []Object {
	out := make([]Object, 0, len(tracks))
	for _, tr := range tracks {
		if !tr.DistanceValid {
			continue
		}
		cx := tr.Box.CenterX()
		obj := Object{
			TrackID:  tr.ID,
			Label:    tr.Label,
			CenterX:  cx,
			Distance: tr.Distance,
			Velocity: tr.Velocity,
			Angle:    cameraAngle(cx, cfg),
			Source:   SourceCamera,
		}

		matches := lo.Filter(returns, func(r radar.Return, _ int) bool {
			return math.Abs(cx-r.Angle) < cfg.MatchThresholdPx
		})
		if len(matches) > 0 {
			best := lo.MinBy(matches, func(a, b radar.Return) bool { return a.Distance < b.Distance })
			obj.Distance = best.Distance
			obj.Velocity = best.Velocity
			obj.Angle = best.Angle
			obj.Source = SourceRadar
		}
		out = append(out, obj)
	}
	return out
}

// cameraAngle is the bearing in degrees of pixel column cx from the optical
// axis, positive to the right.
func cameraAngle(cx float64, cfg Config) float64 {
	if cfg.FocalLengthPx <= 0 {
		return 0
	}
	return math.Atan((cx-cfg.ImageWidthPx/2)/cfg.FocalLengthPx) * 180 / math.Pi
}
