package hotpath

import (
	"fmt"
	"io"
	"sync"

	"github.com/apex-data/coach.report/internal/telemetry"
	"github.com/apex-data/coach.report/internal/units"
)

// CueKind tags a cue variant.
type CueKind int

const (
	BrakePointCue CueKind = iota
	LockAlertCue
)

func (k CueKind) String() string {
	switch k {
	case BrakePointCue:
		return "brake_point"
	case LockAlertCue:
		return "lock_alert"
	default:
		return fmt.Sprintf("cue_kind_%d", int(k))
	}
}

// Cue is a coaching output. It is fire-and-forget: a cue that fails to
// reach the driver is logged and dropped, never retried.
type Cue struct {
	Kind        CueKind
	S           float64
	TimestampUS int64
	LapNumber   int
	SpeedMPS    float64

	CornerID int             // BrakePointCue
	LateByM  float64         // BrakePointCue
	Wheel    telemetry.Wheel // LockAlertCue
}

// Sink consumes cues. Emit must not block the hot path; an error degrades
// the session to silent operation, it never aborts it.
type Sink interface {
	Emit(Cue) error
}

// LogSink writes human-readable cue lines to a writer, converting speeds
// to the operator's preferred display units.
type LogSink struct {
	w     io.Writer
	units string
}

// NewLogSink returns a sink writing to w. units is one of the values
// accepted by the units package; invalid values fall back to kph.
func NewLogSink(w io.Writer, displayUnits string) *LogSink {
	if !units.IsValid(displayUnits) {
		displayUnits = units.KPH
	}
	return &LogSink{w: w, units: displayUnits}
}

func (s *LogSink) Emit(c Cue) error {
	var line string
	switch c.Kind {
	case BrakePointCue:
		line = fmt.Sprintf("lap %d corner %d: braked %.1f m late at s=%.1f (%s)",
			c.LapNumber, c.CornerID, c.LateByM, c.S, units.FormatSpeed(c.SpeedMPS, s.units))
	case LockAlertCue:
		line = fmt.Sprintf("lap %d: %s locking at s=%.1f (%s)",
			c.LapNumber, c.Wheel, c.S, units.FormatSpeed(c.SpeedMPS, s.units))
	default:
		line = fmt.Sprintf("lap %d: %s at s=%.1f", c.LapNumber, c.Kind, c.S)
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

// RecordingSink captures cues in memory. Test double; also usable as a
// buffer for post-session reporting. Safe for concurrent use.
type RecordingSink struct {
	mu   sync.Mutex
	cues []Cue
	err  error
}

// NewRecordingSink returns an empty recording sink.
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

// FailWith makes every subsequent Emit return err.
func (s *RecordingSink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *RecordingSink) Emit(c Cue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.cues = append(s.cues, c)
	return nil
}

// Cues returns a copy of everything emitted so far.
func (s *RecordingSink) Cues() []Cue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cue, len(s.cues))
	copy(out, s.cues)
	return out
}
