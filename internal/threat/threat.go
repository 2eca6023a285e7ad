// Package threat computes time-to-collision for fused objects and selects
// the most urgent one.
package threat

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/banshee-data/fcw/internal/fusion"
)

// Threat is the object with the smallest finite TTC this cycle. When Present
// is false there is no threat and TTC is +Inf.
type Threat struct {
	Object  fusion.Object
	TTC     float64
	Present bool
}

// None is the no-threat value.
func None() Threat {
	return Threat{TTC: math.Inf(1)}
}

// TTC returns the time to collision in seconds for an object at distance
// closing with relative velocity v while the car moves at carSpeed. The
// closing rate is carSpeed - v; a non-positive closing rate gives +Inf.
// The result is never negative or NaN.
func TTC(distance, v, carSpeed float64) float64 {
	rel := carSpeed - v
	if !(rel > 0) || math.IsNaN(distance) || distance < 0 || math.IsInf(distance, 0) {
		return math.Inf(1)
	}
	ttc := distance / rel
	if math.IsNaN(ttc) {
		return math.Inf(1)
	}
	return ttc
}

// Assess returns the object with the minimum finite TTC, the first one on
// ties, or None.
func Assess(objects []fusion.Object, carSpeed float64) Threat {
	best := None()
	for _, obj := range objects {
		ttc := TTC(obj.Distance, obj.Velocity, carSpeed)
		if math.IsInf(ttc, 1) || ttc >= best.TTC {
			continue
		}
		best = Threat{Object: obj, TTC: ttc, Present: true}
	}
	return best
}

// AssessClasses is Assess restricted to objects whose label is in classes.
func AssessClasses(objects []fusion.Object, carSpeed float64, classes []string) Threat {
	return Assess(lo.Filter(objects, func(o fusion.Object, _ int) bool {
		return lo.Contains(classes, o.Label)
	}), carSpeed)
}

// forward is the vehicle heading in the vehicle frame.
var forward = r3.Vector{X: 1}

// Position converts an object's range and bearing into the vehicle frame:
// X ahead, Y to the right, metres.
func Position(obj fusion.Object) r3.Vector {
	rad := obj.Angle * math.Pi / 180
	return r3.Vector{X: obj.Distance * math.Cos(rad), Y: obj.Distance * math.Sin(rad)}
}

// Proximity reports whether any object is closer than radius and in front of
// the vehicle.
func Proximity(objects []fusion.Object, radius float64) bool {
	return lo.SomeBy(objects, func(o fusion.Object) bool {
		p := Position(o)
		if p.Norm() >= radius {
			return false
		}
		return forward.Dot(p.Normalize()) > 0
	})
}
