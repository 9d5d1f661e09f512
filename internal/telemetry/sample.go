// Package telemetry defines the canonical telemetry sample model, the frame
// normalizer that guards the hot path against stale or physically invalid
// frames, and the source adapters that supply raw frames (live UDP socket or
// recorded replay).
package telemetry

import "math"

// Wheel identifies one of the four wheel positions.
type Wheel int

const (
	FrontLeft Wheel = iota
	FrontRight
	RearLeft
	RearRight
	WheelCount
)

var wheelNames = [WheelCount]string{"front-left", "front-right", "rear-left", "rear-right"}

func (w Wheel) String() string {
	if w < 0 || w >= WheelCount {
		return "unknown"
	}
	return wheelNames[w]
}

// RawFrame is a telemetry frame as delivered by a source adapter, before
// validation. Field layout mirrors the wire format in codec.go.
type RawFrame struct {
	TimestampUS int64 // monotonic microseconds since session start
	SpeedMPS    float64
	Throttle    float64 // pedal position, nominally [0, 1]
	Brake       float64 // pedal position, nominally [0, 1]
	SteeringRad float64 // steering wheel angle, positive = right
	Slip        [WheelCount]float64
	GLat        float64
	GLong       float64
	RPM         float64
	Gear        int // -1 reverse, 0 neutral, 1+ forward
	LapNumber   int
	LapDistPct  float64 // track position fraction [0, 1) if the sim provides it, else NaN
	WorldX      float64
	WorldY      float64
}

// TelemetrySample is a validated, immutable telemetry sample. Constructed
// only by the Normalizer; never mutated downstream.
type TelemetrySample struct {
	TimestampUS int64
	SpeedMPS    float64
	Throttle    float64
	Brake       float64
	SteeringRad float64
	Slip        [WheelCount]float64
	GLat        float64
	GLong       float64
	RPM         float64
	Gear        int
	LapNumber   int
	LapDistPct  float64
	WorldX      float64
	WorldY      float64
}

// HasLapDistPct reports whether the sim supplied a track position fraction.
func (s *TelemetrySample) HasLapDistPct() bool {
	return !math.IsNaN(s.LapDistPct)
}
