package hotpath

import (
	"math"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/track"
)

// trackerState is the lap tracker's lifecycle phase.
type trackerState int

const (
	awaitingStart trackerState = iota
	inLap
)

// TrackerParams holds the lap-crossing tolerances.
type TrackerParams struct {
	StartLineToleranceM float64
	LapWrapBandM        float64
}

// TrackerParamsFromTuning pulls the tracker knobs out of a tuning config.
func TrackerParamsFromTuning(cfg *config.TuningConfig) TrackerParams {
	return TrackerParams{
		StartLineToleranceM: cfg.GetStartLineToleranceM(),
		LapWrapBandM:        cfg.GetLapWrapBandM(),
	}
}

// Position is the tracker's per-sample output.
type Position struct {
	S          float64
	LapNumber  int
	LapStarted bool // this sample began a new lap (including the first)
	InLap      bool // false while still waiting for the start line
}

// Tracker maps each telemetry sample to (lap number, arc length). It waits
// at AwaitingStart until the car is observed on a counted lap near the start
// line, then follows arc length around the track, bumping the lap number
// when the position wraps from the end of the lap back to the beginning.
// Lap numbers never regress.
type Tracker struct {
	index  *track.Index
	length float64
	params TrackerParams

	state     trackerState
	lapNumber int
	lastS     float64
}

// NewTracker builds a tracker over an immutable track model.
func NewTracker(model *track.Model, index *track.Index, p TrackerParams) *Tracker {
	return &Tracker{
		index:  index,
		length: model.Length(),
		params: p,
		state:  awaitingStart,
	}
}

// Advance projects the sample onto the track and updates lap state.
func (t *Tracker) Advance(smp *telemetry.TelemetrySample) Position {
	switch t.state {
	case awaitingStart:
		if smp.LapNumber < 1 {
			return Position{}
		}
		s := t.index.Project(smp.WorldX, smp.WorldY, 0)
		if !t.nearStartLine(s) {
			return Position{}
		}
		t.state = inLap
		t.lapNumber = 1
		t.lastS = s
		diagf("lap tracking started at s=%.1f", s)
		return Position{S: s, LapNumber: 1, LapStarted: true, InLap: true}

	default:
		s := t.index.Project(smp.WorldX, smp.WorldY, t.lastS)
		started := false
		if t.lastS > t.length-t.params.LapWrapBandM && s < t.params.LapWrapBandM {
			t.lapNumber++
			started = true
			diagf("lap %d started (wrap %.1f -> %.1f)", t.lapNumber, t.lastS, s)
		}
		t.lastS = s
		return Position{S: s, LapNumber: t.lapNumber, LapStarted: started, InLap: true}
	}
}

// Lap returns the current lap number, 0 before the first lap starts.
func (t *Tracker) Lap() int { return t.lapNumber }

func (t *Tracker) nearStartLine(s float64) bool {
	tol := t.params.StartLineToleranceM
	return s < tol || s > t.length-tol || math.Abs(s-t.length) < tol
}
