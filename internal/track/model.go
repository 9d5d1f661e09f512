// Package track builds an arc-length-parameterized track model from one
// recorded lap of world-coordinate telemetry: centerline points with local
// curvature, detected corner segments, and a spatial index for projecting
// live positions onto the centerline.
package track

import (
	"errors"
	"fmt"
)

// ErrInsufficientData indicates the input samples do not cover a full closed
// lap, so no track model can be built. Fatal to session setup.
var ErrInsufficientData = errors.New("insufficient data for track model")

// Direction is the turn direction of a corner.
type Direction int

const (
	Left Direction = iota
	Right
)

func (d Direction) String() string {
	if d == Left {
		return "L"
	}
	return "R"
}

// Point is one centerline sample: arc-length position, world coordinate,
// and smoothed local curvature (rad/m, positive = left).
type Point struct {
	S         float64
	X         float64
	Y         float64
	Curvature float64
}

// Corner is a detected corner segment. Entry <= Apex <= Exit; corners are
// non-overlapping and ordered by entry position.
type Corner struct {
	ID        int
	EntryS    float64
	ApexS     float64
	ExitS     float64
	Direction Direction
}

// Contains reports whether arc-length s falls inside the corner span.
func (c Corner) Contains(s float64) bool {
	return s >= c.EntryS && s <= c.ExitS
}

func (c Corner) String() string {
	return fmt.Sprintf("corner %d (%s) %.0f-%.0f m apex %.0f m",
		c.ID, c.Direction, c.EntryS, c.ExitS, c.ApexS)
}

// Model is an immutable arc-length-parameterized track: ordered centerline
// points with strictly increasing S in [0, Length), plus detected corners.
// Built once per session; safe for concurrent reads.
type Model struct {
	points  []Point
	corners []Corner
	length  float64
}

// Points returns the ordered centerline samples. Callers must not mutate.
func (m *Model) Points() []Point { return m.points }

// Corners returns the detected corners ordered by entry position.
func (m *Model) Corners() []Corner { return m.corners }

// Length returns the total track length in meters.
func (m *Model) Length() float64 { return m.length }

// CornerAt returns the corner containing arc-length s, if any.
func (m *Model) CornerAt(s float64) (Corner, bool) {
	for _, c := range m.corners {
		if c.Contains(s) {
			return c, true
		}
	}
	return Corner{}, false
}
