// Package report summarises and charts recorded runs.
package report

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/fcw/internal/db"
)

// Stats describes one series. All fields are zero when Count is zero.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P95    float64 `json:"p95"`
}

// Summary is the digest of a run.
type Summary struct {
	Cycles            int           `json:"cycles"`
	Duration          time.Duration `json:"duration_ns"`
	SpeedMps          Stats         `json:"speed_mps"`
	ThreatTTC         Stats         `json:"threat_ttc_s"` // cycles with a threat only
	BrakeEvents       int           `json:"brake_events"`
	FollowingFraction float64       `json:"following_fraction"`
	ProximityCycles   int           `json:"proximity_cycles"`
	DroppedFrames     uint64        `json:"dropped_frames"`
}

// Summarise digests cycles, which must be in sequence order.
func Summarise(cycles []db.CycleRow) Summary {
	var s Summary
	s.Cycles = len(cycles)
	if len(cycles) == 0 {
		return s
	}
	s.Duration = cycles[len(cycles)-1].Timestamp.Sub(cycles[0].Timestamp)

	speeds := make([]float64, 0, len(cycles))
	ttcs := make([]float64, 0, len(cycles))
	following := 0
	for _, c := range cycles {
		speeds = append(speeds, c.SpeedMps)
		if c.ThreatTTC != nil && !math.IsInf(*c.ThreatTTC, 0) && !math.IsNaN(*c.ThreatTTC) {
			ttcs = append(ttcs, *c.ThreatTTC)
		}
		if c.BrakeActive {
			s.BrakeEvents++
		}
		if c.ACCState == "FOLLOWING" {
			following++
		}
		if c.ProximityWarning {
			s.ProximityCycles++
		}
		if c.DroppedFrames > s.DroppedFrames {
			s.DroppedFrames = c.DroppedFrames
		}
	}
	s.SpeedMps = describe(speeds)
	s.ThreatTTC = describe(ttcs)
	s.FollowingFraction = float64(following) / float64(len(cycles))
	return s
}

func describe(xs []float64) Stats {
	if len(xs) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	st := Stats{
		Count: len(xs),
		Mean:  stat.Mean(xs, nil),
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(xs) > 1 {
		st.StdDev = stat.StdDev(xs, nil)
	}
	return st
}
