// Package testutil provides shared test fixtures.
//
// The synthetic lap is a rounded rectangle with four 90-degree right-hand
// corners of 40 m arc length each. Known geometry, used across packages:
//
//	straight 100 m -> corner 1 (arc 100-140, apex ~120)
//	straight  60 m -> corner 2 (arc 200-240)
//	straight 100 m -> corner 3 (arc 340-380)
//	straight  60 m -> corner 4 (arc 440-480, closes the loop)
//
// Total length 480 m. The first corner matches the brake-cue scenario used
// in the hot-path tests.
package testutil

import (
	"math"

	"github.com/apex-data/coach.report/internal/telemetry"
)

// LapLength is the arc length of the synthetic lap in meters.
const LapLength = 480.0

// LapSpeedMPS is the constant speed driven around the synthetic lap.
const LapSpeedMPS = 20.0

type segment struct {
	length    float64
	curvature float64 // rad/m, negative = right
}

// cornerCurv turns 90 degrees right over 40 m.
var cornerCurv = -(math.Pi / 2) / 40.0

var lapSegments = []segment{
	{100, 0}, {40, cornerCurv},
	{60, 0}, {40, cornerCurv},
	{100, 0}, {40, cornerCurv},
	{60, 0}, {40, cornerCurv},
}

// SyntheticLap generates one closed lap of samples at the given spatial
// step. mutate, if non-nil, is called with each sample's arc length to set
// driver inputs (brake, throttle, slip, ...); position, speed, and
// timestamps are already filled in.
func SyntheticLap(stepM float64, mutate func(s float64, smp *telemetry.TelemetrySample)) []telemetry.TelemetrySample {
	return SyntheticLaps(1, stepM, mutate)
}

// SyntheticLaps generates n consecutive closed laps with continuous
// timestamps and incrementing lap numbers. mutate receives the arc length
// within the current lap.
func SyntheticLaps(n int, stepM float64, mutate func(s float64, smp *telemetry.TelemetrySample)) []telemetry.TelemetrySample {
	var samples []telemetry.TelemetrySample
	tUS := int64(0)
	dtUS := int64(stepM / LapSpeedMPS * 1e6)

	for lap := 1; lap <= n; lap++ {
		x, y, heading := 0.0, 0.0, 0.0
		s := 0.0
		for _, seg := range lapSegments {
			for d := 0.0; d < seg.length; d += stepM {
				smp := telemetry.TelemetrySample{
					TimestampUS: tUS,
					SpeedMPS:    LapSpeedMPS,
					Throttle:    1.0,
					LapNumber:   lap,
					LapDistPct:  s / LapLength,
					WorldX:      x,
					WorldY:      y,
					Gear:        4,
					RPM:         6000,
				}
				if mutate != nil {
					mutate(s, &smp)
				}
				samples = append(samples, smp)

				heading += seg.curvature * stepM
				x += math.Cos(heading) * stepM
				y += math.Sin(heading) * stepM
				s += stepM
				tUS += dtUS
			}
		}
	}
	return samples
}

// OpenLap returns a deliberately non-closed sample sequence: the synthetic
// lap truncated well before the loop closes.
func OpenLap(stepM float64) []telemetry.TelemetrySample {
	full := SyntheticLap(stepM, nil)
	return full[:len(full)*2/3]
}
