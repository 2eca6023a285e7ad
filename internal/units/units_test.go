package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		unit     string
		expected float64
	}{
		{"cruise to kph", 30, KPH, 108},
		{"10 m/s to kph", 10, KPH, 36},
		{"10 m/s to mph", 10, MPH, 22.3694},
		{"mps unchanged", 12.5, MPS, 12.5},
		{"unknown unit defaults to mps", 10, "furlongs", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertSpeed(tt.speedMPS, tt.unit); math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("ConvertSpeed(%v, %q) = %v, want %v", tt.speedMPS, tt.unit, got, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	if IsValid("kmph") {
		t.Error("IsValid(\"kmph\") = true")
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(15, KPH); got != "54.0 km/h" {
		t.Errorf("FormatSpeed kph = %q", got)
	}
	if got := FormatSpeed(2.5, MPS); got != "2.5 m/s" {
		t.Errorf("FormatSpeed mps = %q", got)
	}
}
