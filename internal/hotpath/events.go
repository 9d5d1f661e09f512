// Package hotpath is the real-time coaching pipeline: it tracks the car's
// position on the track model, turns normalized telemetry into an ordered
// event stream, and runs the cue rules that compare live driving against a
// reference lap.
package hotpath

import (
	"fmt"

	"github.com/apex-data/coach.report/internal/telemetry"
)

// EventKind tags an event variant.
type EventKind int

const (
	PositionUpdated EventKind = iota
	LapStarted
	CornerEntered
	CornerExited
	BrakeApplied
	WheelLockDetected
)

var eventKindNames = map[EventKind]string{
	PositionUpdated:   "position_updated",
	LapStarted:        "lap_started",
	CornerEntered:     "corner_entered",
	CornerExited:      "corner_exited",
	BrakeApplied:      "brake_applied",
	WheelLockDetected: "wheel_lock_detected",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event_kind_%d", int(k))
}

// Event is one occurrence on the hot path. Every event carries the arc
// length and timestamp of the sample that triggered it; the variant fields
// are meaningful only for their kind.
type Event struct {
	Kind        EventKind
	S           float64
	TimestampUS int64
	SpeedMPS    float64

	LapNumber int             // LapStarted, PositionUpdated
	CornerID  int             // CornerEntered, CornerExited
	Wheel     telemetry.Wheel // WheelLockDetected
}

func (e Event) String() string {
	switch e.Kind {
	case LapStarted:
		return fmt.Sprintf("%s(lap=%d s=%.1f)", e.Kind, e.LapNumber, e.S)
	case CornerEntered, CornerExited:
		return fmt.Sprintf("%s(corner=%d s=%.1f)", e.Kind, e.CornerID, e.S)
	case WheelLockDetected:
		return fmt.Sprintf("%s(wheel=%s s=%.1f)", e.Kind, e.Wheel, e.S)
	default:
		return fmt.Sprintf("%s(s=%.1f)", e.Kind, e.S)
	}
}
