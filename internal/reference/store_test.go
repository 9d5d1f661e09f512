package reference

import (
	"errors"
	"math"
	"testing"

	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/testutil"
	"github.com/apex-data/coach.report/internal/track"
)

func testParams() Params {
	return Params{StepM: 1, BrakeThreshold: 0.15, BrakeLookbackM: 50}
}

func buildModel(t *testing.T) *track.Model {
	t.Helper()
	m, err := track.Build(testutil.SyntheticLap(0.5, nil), track.BuildParams{
		SmoothingWindowM:  10,
		CurvatureIn:       0.006,
		CurvatureOut:      0.004,
		MinCornerLengthM:  8,
		ClosureToleranceM: 25,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBuildLap_GridCoversTrack(t *testing.T) {
	m := buildModel(t)
	lap, err := BuildLap(testutil.SyntheticLap(0.5, nil), m, testParams())
	if err != nil {
		t.Fatalf("BuildLap: %v", err)
	}

	pts := lap.Points()
	if len(pts) == 0 {
		t.Fatal("empty grid")
	}
	if pts[0].S != 0 {
		t.Errorf("grid starts at %.2f, want 0", pts[0].S)
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].S <= pts[i-1].S {
			t.Fatalf("grid not strictly increasing at %d", i)
		}
	}
	if last := pts[len(pts)-1].S; last >= m.Length() {
		t.Errorf("last grid point %.2f >= track length %.2f", last, m.Length())
	}
	if got := len(pts); got != int(math.Ceil(m.Length()/lap.Step())) {
		t.Errorf("grid has %d points for length %.1f step %.1f", got, m.Length(), lap.Step())
	}
}

func TestBuildLap_TooFewSamples(t *testing.T) {
	m := buildModel(t)
	short := testutil.SyntheticLap(0.5, nil)[:3]
	_, err := BuildLap(short, m, testParams())
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Errorf("err = %v, want ErrInsufficientSamples", err)
	}
}

func TestLookup_InterpolatesScalars(t *testing.T) {
	m := buildModel(t)
	lap, err := BuildLap(testutil.SyntheticLap(0.5, nil), m, testParams())
	if err != nil {
		t.Fatal(err)
	}

	// Constant-speed lap: any lookup should return the driven speed.
	for _, s := range []float64{0, 37.2, 119.9, m.Length() - 0.01} {
		pt, err := lap.Lookup(s)
		if err != nil {
			t.Fatalf("Lookup(%.2f): %v", s, err)
		}
		if math.Abs(pt.SpeedMPS-testutil.LapSpeedMPS) > 0.5 {
			t.Errorf("Lookup(%.2f).SpeedMPS = %.2f, want ~%.1f", s, pt.SpeedMPS, testutil.LapSpeedMPS)
		}
		if pt.Gear != 4 {
			t.Errorf("Lookup(%.2f).Gear = %d, want 4", s, pt.Gear)
		}
	}
}

func TestLookup_OutOfRange(t *testing.T) {
	m := buildModel(t)
	lap, err := BuildLap(testutil.SyntheticLap(0.5, nil), m, testParams())
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []float64{-0.01, m.Length(), m.Length() + 100, math.NaN()} {
		_, err := lap.Lookup(s)
		var oor *OutOfRangeError
		if !errors.As(err, &oor) {
			t.Errorf("Lookup(%v): err = %v, want OutOfRangeError", s, err)
		}
	}
}

func TestLookup_SteeringShortestAngularPath(t *testing.T) {
	m := buildModel(t)

	// Steering snaps from just below +pi to just above -pi at s=50.
	// Shortest-path blending must stay near the wrap, not sweep through 0.
	samples := testutil.SyntheticLap(0.5, func(s float64, smp *telemetry.TelemetrySample) {
		if s < 50 {
			smp.SteeringRad = math.Pi - 0.05
		} else {
			smp.SteeringRad = -math.Pi + 0.05
		}
	})
	lap, err := BuildLap(samples, m, testParams())
	if err != nil {
		t.Fatal(err)
	}

	pt, err := lap.Lookup(49.9)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pt.SteeringRad) < 3.0 {
		t.Errorf("steering near wrap blended through zero: %.3f", pt.SteeringRad)
	}
}

func TestBrakePointFor(t *testing.T) {
	m := buildModel(t)

	// Reference driver brakes from 95 m to the apex of corner 1.
	samples := testutil.SyntheticLap(0.5, func(s float64, smp *telemetry.TelemetrySample) {
		if s >= 95 && s <= 125 {
			smp.Brake = 0.8
			smp.Throttle = 0
		}
	})
	lap, err := BuildLap(samples, m, testParams())
	if err != nil {
		t.Fatal(err)
	}

	s, ok := lap.BrakePointFor(1)
	if !ok {
		t.Fatal("no brake point found for corner 1")
	}
	if math.Abs(s-95) > 2 {
		t.Errorf("brake point at %.1f, want ~95", s)
	}
}

func TestBrakePointFor_NoBraking(t *testing.T) {
	m := buildModel(t)
	lap, err := BuildLap(testutil.SyntheticLap(0.5, nil), m, testParams())
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := lap.BrakePointFor(1); ok {
		t.Errorf("flat-out lap produced a brake point at %.1f", s)
	}
}
