package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/telemetry"
)

// BuildParams holds the tunable inputs of the track model builder.
type BuildParams struct {
	SmoothingWindowM  float64 // spatial window for curvature smoothing
	CurvatureIn       float64 // |curvature| to open a corner (rad/m)
	CurvatureOut      float64 // |curvature| to close a corner; below CurvatureIn for hysteresis
	MinCornerLengthM  float64 // corners shorter than this merge into the previous corner
	ClosureToleranceM float64 // max start/end gap for a lap to count as closed
}

// ParamsFromTuning builds BuildParams from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) BuildParams {
	return BuildParams{
		SmoothingWindowM:  cfg.GetSmoothingWindowMeters(),
		CurvatureIn:       cfg.GetCurvatureIn(),
		CurvatureOut:      cfg.GetCurvatureOut(),
		MinCornerLengthM:  cfg.GetMinCornerLengthMeters(),
		ClosureToleranceM: cfg.GetClosureToleranceM(),
	}
}

// minBuildSamples is the minimum number of positioned samples needed before
// curvature estimation is meaningful.
const minBuildSamples = 16

// Build turns one complete recorded lap into a Model. The samples must be
// ordered, with world coordinates populated, and must form a closed loop:
// the first and last coordinates within ClosureToleranceM of each other.
// Deterministic: identical input yields identical corner boundaries.
func Build(samples []telemetry.TelemetrySample, p BuildParams) (*Model, error) {
	if len(samples) < minBuildSamples {
		return nil, fmt.Errorf("%w: %d samples, need at least %d",
			ErrInsufficientData, len(samples), minBuildSamples)
	}

	first := samples[0]
	last := samples[len(samples)-1]
	gap := math.Hypot(last.WorldX-first.WorldX, last.WorldY-first.WorldY)
	if gap > p.ClosureToleranceM {
		return nil, fmt.Errorf("%w: lap not closed, start/end gap %.1f m exceeds %.1f m",
			ErrInsufficientData, gap, p.ClosureToleranceM)
	}

	// Cumulative arc-length from world-coordinate deltas. Zero-length steps
	// (stationary samples) are collapsed so S stays strictly increasing.
	pts := make([]Point, 0, len(samples))
	steps := make([]float64, 0, len(samples))
	prevX, prevY := first.WorldX, first.WorldY
	pts = append(pts, Point{S: 0, X: prevX, Y: prevY})
	for _, smp := range samples[1:] {
		step := math.Hypot(smp.WorldX-prevX, smp.WorldY-prevY)
		if step <= 0 {
			continue
		}
		steps = append(steps, step)
		pts = append(pts, Point{X: smp.WorldX, Y: smp.WorldY})
		prevX, prevY = smp.WorldX, smp.WorldY
	}
	if len(pts) < minBuildSamples {
		return nil, fmt.Errorf("%w: only %d distinct positions", ErrInsufficientData, len(pts))
	}

	cum := make([]float64, len(steps))
	floats.CumSum(cum, steps)
	for i := range steps {
		pts[i+1].S = cum[i]
	}
	// The closing segment back to the start completes the loop.
	length := cum[len(cum)-1] + math.Max(gap, 1e-9)

	curv := rawCurvature(pts, length)
	smoothed := smoothCircular(curv, pts, p.SmoothingWindowM)
	for i := range pts {
		pts[i].Curvature = smoothed[i]
	}

	corners := detectCorners(pts, p)

	return &Model{points: pts, corners: corners, length: length}, nil
}

// rawCurvature estimates local curvature as heading change over arc-length,
// using central differences with circular wraparound.
func rawCurvature(pts []Point, length float64) []float64 {
	n := len(pts)
	headings := make([]float64, n)
	for i := 0; i < n; i++ {
		next := pts[(i+1)%n]
		headings[i] = math.Atan2(next.Y-pts[i].Y, next.X-pts[i].X)
	}

	curv := make([]float64, n)
	for i := 0; i < n; i++ {
		prev := (i - 1 + n) % n
		dTheta := wrapAngle(headings[i] - headings[prev])
		ds := arcDelta(pts[prev].S, pts[(i+1)%n].S, length) / 2
		if ds > 0 {
			curv[i] = dTheta / ds
		}
	}
	return curv
}

// smoothCircular applies a symmetric moving average over a spatial window,
// wrapping around the start line. The window is converted to a point count
// via the mean sample spacing.
func smoothCircular(values []float64, pts []Point, windowM float64) []float64 {
	n := len(values)
	if n == 0 || windowM <= 0 {
		return values
	}
	meanStep := pts[n-1].S / float64(n-1)
	if meanStep <= 0 {
		return values
	}
	half := int(windowM / (2 * meanStep))
	if half < 1 {
		return values
	}

	out := make([]float64, n)
	kernel := float64(2*half + 1)
	// Rolling circular sum; one pass regardless of window size.
	sum := 0.0
	for j := -half; j <= half; j++ {
		sum += values[(j+n)%n]
	}
	for i := 0; i < n; i++ {
		out[i] = sum / kernel
		sum -= values[(i-half+n)%n]
		sum += values[(i+half+1)%n]
	}
	return out
}

// arcDelta returns the forward arc distance from a to b on a loop of the
// given length.
func arcDelta(a, b, length float64) float64 {
	d := b - a
	if d < 0 {
		d += length
	}
	return d
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
