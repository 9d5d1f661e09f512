package hotpath

import (
	"github.com/apex-data/coach.report/internal/config"
	"github.com/apex-data/coach.report/internal/reference"
	"github.com/apex-data/coach.report/internal/telemetry"
)

// Rule evaluates one event against its own state and produces at most one
// cue. Rules share nothing; each owns its state exclusively.
type Rule interface {
	Evaluate(ev Event) (Cue, bool)
}

// BrakePointRule compares the live braking point in each corner against
// the reference lap. It arms on corner entry, watches for the first brake
// application before the corner exit, and fires immediately at that event
// when the live brake point is later than the reference by more than the
// threshold. At most one cue per corner per lap; state clears on lap start.
type BrakePointRule struct {
	ref            *reference.Lap
	lateThresholdM float64

	armedCorner int
	evaluated   map[int]bool
}

// BrakeRuleParams holds the brake rule's tuning.
type BrakeRuleParams struct {
	LateThresholdM float64
}

// BrakeRuleParamsFromTuning pulls the brake rule knobs out of a tuning config.
func BrakeRuleParamsFromTuning(cfg *config.TuningConfig) BrakeRuleParams {
	return BrakeRuleParams{LateThresholdM: cfg.GetBrakeLateThresholdM()}
}

// NewBrakePointRule builds the rule over an immutable reference lap.
func NewBrakePointRule(ref *reference.Lap, p BrakeRuleParams) *BrakePointRule {
	return &BrakePointRule{
		ref:            ref,
		lateThresholdM: p.LateThresholdM,
		evaluated:      make(map[int]bool),
	}
}

func (r *BrakePointRule) Evaluate(ev Event) (Cue, bool) {
	switch ev.Kind {
	case LapStarted:
		r.armedCorner = 0
		r.evaluated = make(map[int]bool)

	case CornerEntered:
		if !r.evaluated[ev.CornerID] {
			r.armedCorner = ev.CornerID
		}

	case CornerExited:
		if r.armedCorner == ev.CornerID {
			r.armedCorner = 0
		}

	case BrakeApplied:
		if r.armedCorner == 0 {
			break
		}
		corner := r.armedCorner
		// First brake application in this corner is the brake point;
		// later applications in the same corner are trail adjustments.
		r.armedCorner = 0
		r.evaluated[corner] = true

		refS, ok := r.ref.BrakePointFor(corner)
		if !ok {
			break
		}
		late := signedArcDiff(ev.S, refS, r.ref.Length())
		tracef("corner %d: live brake s=%.1f ref s=%.1f late=%.1f", corner, ev.S, refS, late)
		if late > r.lateThresholdM {
			cue := Cue{
				Kind:        BrakePointCue,
				S:           ev.S,
				TimestampUS: ev.TimestampUS,
				LapNumber:   ev.LapNumber,
				SpeedMPS:    ev.SpeedMPS,
				CornerID:    corner,
				LateByM:     late,
			}
			return cue, true
		}
	}
	return Cue{}, false
}

// signedArcDiff is how far forward a sits of b along the lap, negative if
// a is behind b. Distances wrap at half the lap.
func signedArcDiff(a, b, length float64) float64 {
	d := forwardArc(b, a, length)
	if d > length/2 {
		d -= length
	}
	return d
}

// LockAlertRule relays wheel-lock detections as cues, with a per-wheel
// cooldown so a sustained lock produces one alert, not a storm.
type LockAlertRule struct {
	cooldownUS int64

	hasFired  [telemetry.WheelCount]bool
	lastFired [telemetry.WheelCount]int64
}

// LockRuleParams holds the lock rule's tuning.
type LockRuleParams struct {
	CooldownMs int
}

// LockRuleParamsFromTuning pulls the lock rule knobs out of a tuning config.
func LockRuleParamsFromTuning(cfg *config.TuningConfig) LockRuleParams {
	return LockRuleParams{CooldownMs: cfg.GetLockCooldownMs()}
}

// NewLockAlertRule builds the rule with the given cooldown.
func NewLockAlertRule(p LockRuleParams) *LockAlertRule {
	return &LockAlertRule{cooldownUS: int64(p.CooldownMs) * 1000}
}

func (r *LockAlertRule) Evaluate(ev Event) (Cue, bool) {
	if ev.Kind != WheelLockDetected {
		return Cue{}, false
	}
	w := ev.Wheel
	if r.hasFired[w] && ev.TimestampUS-r.lastFired[w] < r.cooldownUS {
		return Cue{}, false
	}
	r.hasFired[w] = true
	r.lastFired[w] = ev.TimestampUS
	return Cue{
		Kind:        LockAlertCue,
		S:           ev.S,
		TimestampUS: ev.TimestampUS,
		LapNumber:   ev.LapNumber,
		SpeedMPS:    ev.SpeedMPS,
		Wheel:       w,
	}, true
}
