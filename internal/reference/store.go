// Package reference resamples a recorded lap onto the track model's
// arc-length axis so live driving can be compared against it position by
// position instead of time by time.
package reference

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/track"
)

// ErrInsufficientSamples is returned when a lap has too few usable samples
// to resample onto the grid.
var ErrInsufficientSamples = errors.New("insufficient lap samples")

// OutOfRangeError reports a lookup outside the track's arc-length span.
// It points at a tracker bug upstream, so callers log it and skip the cue
// rather than abort the session.
type OutOfRangeError struct {
	S      float64
	Length float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("arc length %.2f outside track span [0, %.2f)", e.S, e.Length)
}

// Point is one resampled reference point at a fixed arc-length grid position.
type Point struct {
	S           float64
	SpeedMPS    float64
	Throttle    float64
	Brake       float64
	SteeringRad float64
	Gear        int
	Slip        [telemetry.WheelCount]float64
}

// Params controls resampling and brake-point extraction.
type Params struct {
	StepM          float64
	BrakeThreshold float64
	BrakeLookbackM float64
}

// ParamsFromTuning pulls the resampling knobs out of a tuning config.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		StepM:          cfg.GetResampleStepMeters(),
		BrakeThreshold: cfg.GetBrakeThreshold(),
		BrakeLookbackM: cfg.GetBrakeLookbackM(),
	}
}

// Lap is a reference lap resampled onto a uniform arc-length grid.
// Immutable after BuildLap; safe for concurrent readers.
type Lap struct {
	points      []Point
	step        float64
	length      float64
	brakePoints map[int]float64
}

const minResampleSamples = 8

// BuildLap projects each lap sample onto the track, then resamples every
// channel onto a grid of one point per StepM meters covering [0, length).
// Scalar channels interpolate linearly; steering blends along the shortest
// angular path so a wheel crossing the wrap boundary does not sweep the
// long way round; gear snaps to the nearest sample.
func BuildLap(samples []telemetry.TelemetrySample, model *track.Model, p Params) (*Lap, error) {
	if len(samples) < minResampleSamples {
		return nil, fmt.Errorf("%w: got %d samples", ErrInsufficientSamples, len(samples))
	}
	if p.StepM <= 0 {
		return nil, fmt.Errorf("resample step %.3f must be positive", p.StepM)
	}

	length := model.Length()
	idx := track.NewIndex(model)

	type channelSample struct {
		s      float64
		sample telemetry.TelemetrySample
	}
	projected := make([]channelSample, 0, len(samples))
	prevS := 0.0
	for i := range samples {
		s := idx.Project(samples[i].WorldX, samples[i].WorldY, prevS)
		projected = append(projected, channelSample{s: s, sample: samples[i]})
		prevS = s
	}

	sort.Slice(projected, func(i, j int) bool { return projected[i].s < projected[j].s })

	// Collapse duplicate arc lengths; interpolator fitting requires a
	// strictly increasing axis.
	kept := projected[:0]
	lastS := math.Inf(-1)
	for _, cs := range projected {
		if cs.s <= lastS+1e-6 {
			continue
		}
		kept = append(kept, cs)
		lastS = cs.s
	}
	if len(kept) < minResampleSamples {
		return nil, fmt.Errorf("%w: %d distinct positions after projection", ErrInsufficientSamples, len(kept))
	}

	// Pad one wrapped sample on each side so every grid point in
	// [0, length) has a bracketing pair.
	n := len(kept)
	xs := make([]float64, 0, n+2)
	xs = append(xs, kept[n-1].s-length)
	for _, cs := range kept {
		xs = append(xs, cs.s)
	}
	xs = append(xs, kept[0].s+length)

	padded := make([]telemetry.TelemetrySample, 0, n+2)
	padded = append(padded, kept[n-1].sample)
	for _, cs := range kept {
		padded = append(padded, cs.sample)
	}
	padded = append(padded, kept[0].sample)

	channel := func(pick func(*telemetry.TelemetrySample) float64) (interp.PiecewiseLinear, error) {
		ys := make([]float64, len(padded))
		for i := range padded {
			ys[i] = pick(&padded[i])
		}
		var pl interp.PiecewiseLinear
		err := pl.Fit(xs, ys)
		return pl, err
	}

	speed, err := channel(func(s *telemetry.TelemetrySample) float64 { return s.SpeedMPS })
	if err != nil {
		return nil, fmt.Errorf("fit speed channel: %w", err)
	}
	throttle, err := channel(func(s *telemetry.TelemetrySample) float64 { return s.Throttle })
	if err != nil {
		return nil, fmt.Errorf("fit throttle channel: %w", err)
	}
	brake, err := channel(func(s *telemetry.TelemetrySample) float64 { return s.Brake })
	if err != nil {
		return nil, fmt.Errorf("fit brake channel: %w", err)
	}
	var slip [telemetry.WheelCount]interp.PiecewiseLinear
	for w := telemetry.Wheel(0); w < telemetry.WheelCount; w++ {
		slip[w], err = channel(func(s *telemetry.TelemetrySample) float64 { return s.Slip[w] })
		if err != nil {
			return nil, fmt.Errorf("fit slip channel %v: %w", w, err)
		}
	}

	gridN := int(math.Ceil(length / p.StepM))
	points := make([]Point, gridN)
	for k := 0; k < gridN; k++ {
		s := float64(k) * p.StepM
		pt := Point{
			S:           s,
			SpeedMPS:    speed.Predict(s),
			Throttle:    throttle.Predict(s),
			Brake:       brake.Predict(s),
			SteeringRad: steeringAt(xs, padded, s),
			Gear:        gearAt(xs, padded, s),
		}
		for w := telemetry.Wheel(0); w < telemetry.WheelCount; w++ {
			pt.Slip[w] = slip[w].Predict(s)
		}
		points[k] = pt
	}

	lap := &Lap{
		points: points,
		step:   p.StepM,
		length: length,
	}
	lap.brakePoints = extractBrakePoints(lap, model.Corners(), p)
	return lap, nil
}

// Points returns the full resampled grid, ordered by arc length.
func (l *Lap) Points() []Point { return l.points }

// Step returns the grid spacing in meters.
func (l *Lap) Step() float64 { return l.step }

// Length returns the track length the grid covers.
func (l *Lap) Length() float64 { return l.length }

// Lookup interpolates the reference state at an arbitrary arc length.
// Constant time: the uniform grid makes the bracketing pair a division away.
func (l *Lap) Lookup(s float64) (Point, error) {
	if math.IsNaN(s) || s < 0 || s >= l.length {
		return Point{}, &OutOfRangeError{S: s, Length: l.length}
	}
	i := int(s / l.step)
	if i >= len(l.points) {
		i = len(l.points) - 1
	}
	j := (i + 1) % len(l.points)
	a, b := l.points[i], l.points[j]

	span := l.step
	if j == 0 {
		span = l.length - a.S
	}
	t := 0.0
	if span > 0 {
		t = (s - a.S) / span
	}

	pt := Point{
		S:           s,
		SpeedMPS:    a.SpeedMPS + t*(b.SpeedMPS-a.SpeedMPS),
		Throttle:    a.Throttle + t*(b.Throttle-a.Throttle),
		Brake:       a.Brake + t*(b.Brake-a.Brake),
		SteeringRad: wrapAngle(a.SteeringRad + t*wrapAngle(b.SteeringRad-a.SteeringRad)),
	}
	if t < 0.5 {
		pt.Gear = a.Gear
	} else {
		pt.Gear = b.Gear
	}
	for w := telemetry.Wheel(0); w < telemetry.WheelCount; w++ {
		pt.Slip[w] = a.Slip[w] + t*(b.Slip[w]-a.Slip[w])
	}
	return pt, nil
}

// BrakePointFor returns the reference braking arc length for a corner, if
// the reference driver braked in that corner's approach window.
func (l *Lap) BrakePointFor(cornerID int) (float64, bool) {
	s, ok := l.brakePoints[cornerID]
	return s, ok
}

// extractBrakePoints finds, per corner, the first grid point whose brake
// input crosses the threshold inside [entry - lookback, apex].
func extractBrakePoints(l *Lap, corners []track.Corner, p Params) map[int]float64 {
	out := make(map[int]float64, len(corners))
	n := len(l.points)
	if n == 0 {
		return out
	}
	for _, c := range corners {
		start := math.Mod(c.EntryS-p.BrakeLookbackM+l.length, l.length)
		span := forwardDelta(start, c.ApexS, l.length)
		steps := int(span/l.step) + 1
		i := int(start / l.step) % n
		for k := 0; k <= steps; k++ {
			pt := l.points[(i+k)%n]
			if pt.Brake > p.BrakeThreshold {
				out[c.ID] = pt.S
				break
			}
		}
	}
	return out
}

// forwardDelta is the modular distance traveling forward from a to b.
func forwardDelta(a, b, length float64) float64 {
	d := math.Mod(b-a, length)
	if d < 0 {
		d += length
	}
	return d
}

// steeringAt interpolates steering between the bracketing samples along the
// shortest angular path.
func steeringAt(xs []float64, padded []telemetry.TelemetrySample, s float64) float64 {
	i := sort.SearchFloat64s(xs, s)
	if i <= 0 {
		return padded[0].SteeringRad
	}
	if i >= len(xs) {
		return padded[len(padded)-1].SteeringRad
	}
	a, b := padded[i-1].SteeringRad, padded[i].SteeringRad
	t := (s - xs[i-1]) / (xs[i] - xs[i-1])
	return wrapAngle(a + t*wrapAngle(b-a))
}

// gearAt snaps to the gear of the nearer bracketing sample.
func gearAt(xs []float64, padded []telemetry.TelemetrySample, s float64) int {
	i := sort.SearchFloat64s(xs, s)
	if i <= 0 {
		return padded[0].Gear
	}
	if i >= len(xs) {
		return padded[len(padded)-1].Gear
	}
	if s-xs[i-1] < xs[i]-s {
		return padded[i-1].Gear
	}
	return padded[i].Gear
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
