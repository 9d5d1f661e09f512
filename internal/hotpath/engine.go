package hotpath

import (
	"math"

	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/track"
)

// EngineParams holds the edge-detection thresholds.
type EngineParams struct {
	BrakeThreshold    float64
	LockSlipThreshold float64
	LockBrakeMin      float64
	LockMinSamples    int
}

// EngineParamsFromTuning pulls the engine knobs out of a tuning config.
func EngineParamsFromTuning(cfg *config.TuningConfig) EngineParams {
	return EngineParams{
		BrakeThreshold:    cfg.GetBrakeThreshold(),
		LockSlipThreshold: cfg.GetLockSlipThreshold(),
		LockBrakeMin:      cfg.GetLockBrakeMin(),
		LockMinSamples:    cfg.GetLockMinSamples(),
	}
}

// lockDetector debounces one wheel's lock condition: the slip threshold
// must hold for LockMinSamples consecutive samples before an event fires,
// and the condition must clear before the detector re-arms.
type lockDetector struct {
	run     int
	latched bool
}

func (d *lockDetector) observe(locking bool, minSamples int) bool {
	if !locking {
		d.run = 0
		d.latched = false
		return false
	}
	d.run++
	if d.run >= minSamples && !d.latched {
		d.latched = true
		return true
	}
	return false
}

// Engine turns each normalized sample into an ordered slice of events.
// Per-frame events always appear in the fixed order position, lap start,
// corner exit, corner entry, brake applied, wheel lock, so rules downstream
// see a deterministic sequence. The engine itself keeps only one frame of
// memory (previous arc length and brake level); session state lives in the
// Tracker and the rules.
type Engine struct {
	tracker *Tracker
	model   *track.Model
	params  EngineParams

	hasPrev   bool
	prevS     float64
	prevBrake float64
	locks     [telemetry.WheelCount]lockDetector
}

// NewEngine builds an engine over an immutable track model.
func NewEngine(tracker *Tracker, model *track.Model, p EngineParams) *Engine {
	return &Engine{tracker: tracker, model: model, params: p}
}

// Process advances the tracker with one sample and returns the events it
// produced, possibly none. Samples before the first lap start yield nothing.
func (e *Engine) Process(smp *telemetry.TelemetrySample) []Event {
	pos := e.tracker.Advance(smp)
	if !pos.InLap {
		return nil
	}

	events := make([]Event, 0, 4)
	base := Event{
		S:           pos.S,
		TimestampUS: smp.TimestampUS,
		SpeedMPS:    smp.SpeedMPS,
		LapNumber:   pos.LapNumber,
	}

	ev := base
	ev.Kind = PositionUpdated
	events = append(events, ev)

	if pos.LapStarted {
		ev = base
		ev.Kind = LapStarted
		events = append(events, ev)
	}

	if e.hasPrev {
		events = e.appendCornerCrossings(events, base, pos.S)
		if e.prevBrake < e.params.BrakeThreshold && smp.Brake >= e.params.BrakeThreshold {
			ev = base
			ev.Kind = BrakeApplied
			events = append(events, ev)
		}
	}

	for w := telemetry.Wheel(0); w < telemetry.WheelCount; w++ {
		locking := math.Abs(smp.Slip[w]) > e.params.LockSlipThreshold &&
			smp.Brake > e.params.LockBrakeMin
		if e.locks[w].observe(locking, e.params.LockMinSamples) {
			ev = base
			ev.Kind = WheelLockDetected
			ev.Wheel = w
			events = append(events, ev)
			tracef("wheel lock: %s at s=%.1f slip=%.2f", w, pos.S, smp.Slip[w])
		}
	}

	e.hasPrev = true
	e.prevS = pos.S
	e.prevBrake = smp.Brake
	return events
}

// appendCornerCrossings emits exit then entry events for every corner
// boundary the car passed between the previous sample and this one.
// A boundary counts as crossed when it lies on the forward arc from the
// previous position to the current one.
func (e *Engine) appendCornerCrossings(events []Event, base Event, s float64) []Event {
	length := e.model.Length()
	traveled := forwardArc(e.prevS, s, length)
	if traveled <= 0 || traveled >= length/2 {
		// Stationary, or a jump too large to attribute to travel.
		return events
	}

	for _, c := range e.model.Corners() {
		if d := forwardArc(e.prevS, c.ExitS, length); d > 0 && d <= traveled {
			ev := base
			ev.Kind = CornerExited
			ev.CornerID = c.ID
			events = append(events, ev)
		}
	}
	for _, c := range e.model.Corners() {
		if d := forwardArc(e.prevS, c.EntryS, length); d > 0 && d <= traveled {
			ev := base
			ev.Kind = CornerEntered
			ev.CornerID = c.ID
			events = append(events, ev)
		}
	}
	return events
}

// forwardArc is the modular distance traveling forward from a to b.
func forwardArc(a, b, length float64) float64 {
	d := math.Mod(b-a, length)
	if d < 0 {
		d += length
	}
	return d
}
