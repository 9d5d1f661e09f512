package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}
	if IsValid("furlongs") {
		t.Error("expected furlongs to be invalid")
	}
	if IsValid("") {
		t.Error("expected empty unit to be invalid")
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name  string
		mps   float64
		units string
		want  float64
	}{
		{"mps passthrough", 10.0, MPS, 10.0},
		{"to kph", 10.0, KPH, 36.0},
		{"to kmph alias", 10.0, KMPH, 36.0},
		{"to mph", 10.0, MPH, 22.3694},
		{"unknown falls back to mps", 10.0, "bogus", 10.0},
		{"zero", 0, KPH, 0},
	}
	for _, tt := range tests {
		got := ConvertSpeed(tt.mps, tt.units)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: ConvertSpeed(%v, %q) = %v, want %v", tt.name, tt.mps, tt.units, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(10, KPH); got != "36.0 kph" {
		t.Errorf("FormatSpeed = %q, want %q", got, "36.0 kph")
	}
	// Invalid units fall back to m/s.
	if got := FormatSpeed(10, "parsecs"); got != "10.0 mps" {
		t.Errorf("FormatSpeed fallback = %q, want %q", got, "10.0 mps")
	}
}
