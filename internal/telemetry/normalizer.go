package telemetry

import (
	"math"
	"sync/atomic"
)

// DropReason classifies why the normalizer rejected a frame.
type DropReason int

const (
	DropStaleTimestamp DropReason = iota // timestamp not strictly after the last accepted frame
	DropNonFinite                        // NaN or Inf in a required field
	DropOutOfRange                       // value outside its physical range
	dropReasonCount
)

var dropReasonNames = [dropReasonCount]string{"stale_timestamp", "non_finite", "out_of_range"}

func (r DropReason) String() string {
	if r < 0 || r >= dropReasonCount {
		return "unknown"
	}
	return dropReasonNames[r]
}

// pedal values may wobble slightly outside [0,1] from sim quantisation;
// values within this margin are clamped rather than dropped.
const pedalClampEpsilon = 0.02

// Normalizer converts raw frames into canonical samples, dropping frames
// that are stale, duplicated, or physically invalid. It holds a one-sample
// memory (the last accepted timestamp) and per-reason drop counters; it
// never blocks.
type Normalizer struct {
	lastTimestampUS int64
	hasAccepted     bool
	drops           [dropReasonCount]atomic.Uint64
}

// NewNormalizer returns a Normalizer with no accepted-frame history.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize validates raw and returns the canonical sample. The second
// return is false when the frame was dropped; the matching drop counter is
// incremented as a side effect.
func (n *Normalizer) Normalize(raw *RawFrame) (TelemetrySample, bool) {
	if n.hasAccepted && raw.TimestampUS <= n.lastTimestampUS {
		n.drops[DropStaleTimestamp].Add(1)
		return TelemetrySample{}, false
	}

	finites := []float64{
		raw.SpeedMPS, raw.Throttle, raw.Brake, raw.SteeringRad,
		raw.GLat, raw.GLong, raw.RPM, raw.WorldX, raw.WorldY,
	}
	for _, v := range finites {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n.drops[DropNonFinite].Add(1)
			return TelemetrySample{}, false
		}
	}
	for _, v := range raw.Slip {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			n.drops[DropNonFinite].Add(1)
			return TelemetrySample{}, false
		}
	}

	if raw.SpeedMPS < 0 || raw.RPM < 0 || raw.LapNumber < 0 {
		n.drops[DropOutOfRange].Add(1)
		return TelemetrySample{}, false
	}
	throttle, ok := clampPedal(raw.Throttle)
	if !ok {
		n.drops[DropOutOfRange].Add(1)
		return TelemetrySample{}, false
	}
	brake, ok := clampPedal(raw.Brake)
	if !ok {
		n.drops[DropOutOfRange].Add(1)
		return TelemetrySample{}, false
	}

	lapDist := raw.LapDistPct
	if !math.IsNaN(lapDist) && (lapDist < 0 || lapDist >= 1) {
		// Position fraction is advisory; a junk value degrades to "not provided".
		lapDist = math.NaN()
	}

	n.lastTimestampUS = raw.TimestampUS
	n.hasAccepted = true

	return TelemetrySample{
		TimestampUS: raw.TimestampUS,
		SpeedMPS:    raw.SpeedMPS,
		Throttle:    throttle,
		Brake:       brake,
		SteeringRad: raw.SteeringRad,
		Slip:        raw.Slip,
		GLat:        raw.GLat,
		GLong:       raw.GLong,
		RPM:         raw.RPM,
		Gear:        raw.Gear,
		LapNumber:   raw.LapNumber,
		LapDistPct:  lapDist,
		WorldX:      raw.WorldX,
		WorldY:      raw.WorldY,
	}, true
}

// Drops returns a snapshot of per-reason drop counts keyed by reason name.
func (n *Normalizer) Drops() map[string]uint64 {
	out := make(map[string]uint64, dropReasonCount)
	for r := DropReason(0); r < dropReasonCount; r++ {
		out[r.String()] = n.drops[r].Load()
	}
	return out
}

// TotalDrops returns the total number of frames dropped so far.
func (n *Normalizer) TotalDrops() uint64 {
	var total uint64
	for r := DropReason(0); r < dropReasonCount; r++ {
		total += n.drops[r].Load()
	}
	return total
}

func clampPedal(v float64) (float64, bool) {
	if v < -pedalClampEpsilon || v > 1+pedalClampEpsilon {
		return 0, false
	}
	if v < 0 {
		return 0, true
	}
	if v > 1 {
		return 1, true
	}
	return v, true
}
