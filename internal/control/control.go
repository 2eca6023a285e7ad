// Package control implements the longitudinal control law: adaptive cruise
// (speed ramp toward a time-gap target) and forward collision warning (brake
// event when time to collision drops below a threshold).
package control

import (
	"math"

	"github.com/banshee-data/fcw/internal/config"
	"github.com/banshee-data/fcw/internal/threat"
)

// ACCState is the adaptive cruise mode.
type ACCState string

const (
	StateCruise    ACCState = "CRUISE"
	StateFollowing ACCState = "FOLLOWING"
)

// FCWState is the collision warning mode. WARNING is re-evaluated every cycle
// with no hysteresis, so a TTC hovering at the threshold can toggle it.
type FCWState string

const (
	StateNormal  FCWState = "NORMAL"
	StateWarning FCWState = "WARNING"
)

// Config holds control law parameters. Speeds are m/s, rates m/s per cycle.
type Config struct {
	SafeTimeGap       float64 // seconds
	MaxSpeed          float64
	MinSpeed          float64
	Acceleration      float64
	Deceleration      float64 // negative
	BrakeThresholdTTC float64 // seconds, strict
	BrakeDecrement    float64
}

// DefaultConfig returns the stock control configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		SafeTimeGap:       cfg.GetSafeTimeGap(),
		MaxSpeed:          cfg.GetMaxSpeed(),
		MinSpeed:          cfg.GetMinSpeed(),
		Acceleration:      cfg.GetAcceleration(),
		Deceleration:      cfg.GetDeceleration(),
		BrakeThresholdTTC: cfg.GetBrakeThresholdTTC(),
		BrakeDecrement:    cfg.GetBrakeDecrement(),
	}
}

func (c Config) clamp(speed float64) float64 {
	return math.Min(math.Max(speed, c.MinSpeed), c.MaxSpeed)
}

// VehicleState is the longitudinal state after a cycle.
type VehicleState struct {
	Speed       float64 `json:"speed_mps"`
	TargetSpeed float64 `json:"target_speed_mps"`
	BrakeActive bool    `json:"brake_active"`
}

// Decision is the control law output for one cycle.
type Decision struct {
	State      VehicleState
	ACC        ACCState
	FCW        FCWState
	BrakeEvent bool
	Command    Command
}

// TargetSpeed returns the cruise target for the followed vehicle: MaxSpeed
// with no threat, otherwise distance/SafeTimeGap capped at MaxSpeed. The
// result is always within [MinSpeed, MaxSpeed].
func TargetSpeed(th threat.Threat, cfg Config) (float64, ACCState) {
	if !th.Present {
		return cfg.clamp(cfg.MaxSpeed), StateCruise
	}
	target := math.Min(th.Object.Distance/cfg.SafeTimeGap, cfg.MaxSpeed)
	if math.IsNaN(target) {
		target = cfg.MinSpeed
	}
	return cfg.clamp(target), StateFollowing
}

// Ramp moves speed one cycle toward target, by at most Acceleration up or
// |Deceleration| down, never past the target.
func Ramp(speed, target float64, cfg Config) float64 {
	switch {
	case target > speed:
		speed = math.Min(math.Min(speed+cfg.Acceleration, target), cfg.MaxSpeed)
	case target < speed:
		speed = math.Max(math.Max(speed-math.Abs(cfg.Deceleration), target), cfg.MinSpeed)
	}
	return cfg.clamp(speed)
}

// Law carries the vehicle state from cycle to cycle. It is not safe for
// concurrent use; the decision loop owns it.
type Law struct {
	cfg   Config
	state VehicleState
	acc   ACCState
	fcw   FCWState
}

// NewLaw starts the vehicle at initialSpeed, clamped to the speed limits.
func NewLaw(cfg Config, initialSpeed float64) *Law {
	s := cfg.clamp(initialSpeed)
	return &Law{
		cfg:   cfg,
		state: VehicleState{Speed: s, TargetSpeed: s},
		acc:   StateCruise,
		fcw:   StateNormal,
	}
}

// State returns the current vehicle state.
func (l *Law) State() VehicleState { return l.state }

// Modes returns the current ACC and FCW modes.
func (l *Law) Modes() (ACCState, FCWState) { return l.acc, l.fcw }

// Step runs one cycle. accThreat is the followed-vehicle threat; fcwThreat is
// the threat over every tracked class. A brake event drops the speed by
// BrakeDecrement at once and skips the cruise ramp for this cycle; the
// cruise target is still updated.
func (l *Law) Step(accThreat, fcwThreat threat.Threat) Decision {
	prev := l.state.Speed
	target, acc := TargetSpeed(accThreat, l.cfg)

	brake := fcwThreat.Present && fcwThreat.TTC < l.cfg.BrakeThresholdTTC
	if brake {
		l.fcw = StateWarning
		l.state.Speed = math.Max(l.cfg.MinSpeed, l.state.Speed-l.cfg.BrakeDecrement)
	} else {
		l.fcw = StateNormal
		l.state.Speed = Ramp(l.state.Speed, target, l.cfg)
	}
	l.acc = acc
	l.state.TargetSpeed = target
	l.state.BrakeActive = brake

	return Decision{
		State:      l.state,
		ACC:        l.acc,
		FCW:        l.fcw,
		BrakeEvent: brake,
		Command:    CommandFor(prev, l.state, brake, l.cfg),
	}
}
