// Package units converts the decision core's m/s speeds for display.
package units

import (
	"fmt"
	"slices"
)

// Unit names accepted by ConvertSpeed.
const (
	MPS = "mps"
	KPH = "kph"
	MPH = "mph"
)

// ValidUnits lists every accepted unit.
var ValidUnits = []string{MPS, KPH, MPH}

// IsValid reports whether unit is known.
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// ConvertSpeed converts m/s to unit. Unknown units return m/s unchanged.
func ConvertSpeed(speedMPS float64, unit string) float64 {
	switch unit {
	case KPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 2.2369362920544
	default:
		return speedMPS
	}
}

// FormatSpeed renders a m/s speed in unit with one decimal place.
func FormatSpeed(speedMPS float64, unit string) string {
	label := map[string]string{KPH: "km/h", MPH: "mph"}[unit]
	if label == "" {
		label = "m/s"
	}
	return fmt.Sprintf("%.1f %s", ConvertSpeed(speedMPS, unit), label)
}
