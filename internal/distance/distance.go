// Package distance estimates range to a detected object from the pixel width
// of its bounding box using a pinhole camera model.
package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/fcw/internal/config"
)

// ErrIndeterminate is returned when the bounding box is too narrow to give a
// usable range.
var ErrIndeterminate = errors.New("distance indeterminate")

// Config holds the camera model parameters.
type Config struct {
	KnownWidthM   float64 // assumed real-world object width
	FocalLengthPx float64
	EpsilonPx     float64 // widths at or below this are degenerate
}

// DefaultConfig returns the stock camera model.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		KnownWidthM:   cfg.GetKnownWidthM(),
		FocalLengthPx: cfg.GetFocalLengthPx(),
		EpsilonPx:     cfg.GetWidthEpsilon(),
	}
}

// Estimate returns knownWidth*focal/width. Widths at or below epsilon, and
// non-finite widths, yield ErrIndeterminate.
func Estimate(widthPx, knownWidthM, focalLengthPx, epsilonPx float64) (float64, error) {
	if math.IsNaN(widthPx) || math.IsInf(widthPx, 0) || widthPx <= epsilonPx || widthPx <= 0 {
		return 0, fmt.Errorf("bbox width %g px: %w", widthPx, ErrIndeterminate)
	}
	d := knownWidthM * focalLengthPx / widthPx
	if math.IsInf(d, 0) || math.IsNaN(d) || d <= 0 {
		return 0, fmt.Errorf("bbox width %g px gives range %g: %w", widthPx, d, ErrIndeterminate)
	}
	return d, nil
}

// Estimate applies the configured camera model to a bounding box width.
func (c Config) Estimate(widthPx float64) (float64, error) {
	return Estimate(widthPx, c.KnownWidthM, c.FocalLengthPx, c.EpsilonPx)
}
