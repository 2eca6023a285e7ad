package control

import "math"

// Command is the actuator request for one cycle. Values are in [0, 1].
type Command struct {
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Reverse  bool    `json:"reverse"`
}

// CommandFor maps a speed change into pedal positions. A brake event is full
// brake. Otherwise an increase is throttle proportional to the share of the
// acceleration limit used, a decrease is brake proportional to the share of
// the deceleration limit used, and a steady speed holds throttle at
// speed/MaxSpeed.
func CommandFor(prevSpeed float64, state VehicleState, brakeEvent bool, cfg Config) Command {
	if brakeEvent {
		return Command{Brake: 1}
	}
	var cmd Command
	switch delta := state.Speed - prevSpeed; {
	case delta > 0:
		cmd.Throttle = ratio(delta, cfg.Acceleration)
	case delta < 0:
		cmd.Brake = ratio(-delta, math.Abs(cfg.Deceleration))
	default:
		cmd.Throttle = ratio(state.Speed, cfg.MaxSpeed)
	}
	return cmd
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return unit(num / den)
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 1)
}
