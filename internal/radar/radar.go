// Package radar ingests radar returns for the decision core. Returns arrive
// as JSON batches over a serial line or a UDP feed (live, or replayed from a
// pcap capture); a simulated source stands in when no radar is fitted.
package radar

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Return is a single radar detection.
type Return struct {
	Distance float64 `json:"distance"` // metres, ≥ 0
	Velocity float64 `json:"velocity"` // relative m/s, negative = closing
	Angle    float64 `json:"angle"`    // degrees, 0 = straight ahead
}

// Source yields the most recent radar batch at the start of each decision
// cycle. A nil or empty result means no radar this cycle.
type Source interface {
	Latest() []Return
}

// Batch is the wire format of one radar cycle.
type Batch struct {
	Returns []Return `json:"returns"`
}

// ParseBatch decodes one wire-format line. Returns with a negative or
// non-finite field are rejected as a whole batch.
func ParseBatch(line string) ([]Return, error) {
	line = strings.TrimSpace(line)
	var b Batch
	if err := json.Unmarshal([]byte(line), &b); err != nil {
		return nil, fmt.Errorf("decode radar batch: %w", err)
	}
	if b.Returns == nil {
		return nil, fmt.Errorf("radar batch has no returns field")
	}
	for i, r := range b.Returns {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("radar return %d: %w", i, err)
		}
	}
	return b.Returns, nil
}

func (r Return) validate() error {
	for _, v := range []float64{r.Distance, r.Velocity, r.Angle} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value in %+v", r)
		}
	}
	if r.Distance < 0 {
		return fmt.Errorf("negative distance %g", r.Distance)
	}
	return nil
}

// Simulated returns the same batch every cycle.
type Simulated struct {
	Returns []Return
}

// DefaultSimulated is the bench-test radar: a closing car ahead and a faster
// closing car slightly left.
func DefaultSimulated() *Simulated {
	return &Simulated{Returns: []Return{
		{Distance: 20, Velocity: -5, Angle: 0},
		{Distance: 30, Velocity: -10, Angle: -5},
	}}
}

// Latest returns a copy of the fixed batch.
func (s *Simulated) Latest() []Return {
	return append([]Return(nil), s.Returns...)
}

// None is a Source with no radar fitted.
type None struct{}

func (None) Latest() []Return { return nil }
