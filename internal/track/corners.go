package track

import "math"

// cornerScanState is the state of the hysteresis corner scanner. Distinct
// in/out thresholds keep noisy curvature near a single threshold from
// flickering corner boundaries.
type cornerScanState int

const (
	onStraight cornerScanState = iota
	inCorner
)

// cornerScanner walks centerline points and accumulates raw corner spans.
// A corner opens when |curvature| rises above CurvatureIn and closes when it
// falls below CurvatureOut or the curvature sign flips (an S-bend is two
// corners, not one).
type cornerScanner struct {
	p     BuildParams
	state cornerScanState

	startIdx int
	apexIdx  int
	apexCurv float64
	positive bool

	raw []rawCorner
}

type rawCorner struct {
	entryIdx, apexIdx, exitIdx int
	apexCurv                   float64
}

func (cs *cornerScanner) step(i int, k float64) {
	abs := math.Abs(k)
	switch cs.state {
	case onStraight:
		if abs > cs.p.CurvatureIn {
			cs.state = inCorner
			cs.startIdx = i
			cs.apexIdx = i
			cs.apexCurv = k
			cs.positive = k > 0
		}
	case inCorner:
		if abs < cs.p.CurvatureOut {
			cs.close(i - 1)
			return
		}
		if (k > 0) != cs.positive {
			// Sign flip: close here and immediately open the opposite corner.
			cs.close(i - 1)
			cs.step(i, k)
			return
		}
		if abs > math.Abs(cs.apexCurv) {
			cs.apexCurv = k
			cs.apexIdx = i
		}
	}
}

func (cs *cornerScanner) close(exitIdx int) {
	if exitIdx > cs.startIdx {
		cs.raw = append(cs.raw, rawCorner{
			entryIdx: cs.startIdx,
			apexIdx:  cs.apexIdx,
			exitIdx:  exitIdx,
			apexCurv: cs.apexCurv,
		})
	}
	cs.state = onStraight
}

// detectCorners runs the hysteresis scanner over the smoothed centerline and
// applies the minimum-length rule: a raw corner shorter than MinCornerLengthM
// is merged into the previous corner when one exists, otherwise discarded as
// noise.
func detectCorners(pts []Point, p BuildParams) []Corner {
	cs := cornerScanner{p: p}
	for i, pt := range pts {
		cs.step(i, pt.Curvature)
	}
	if cs.state == inCorner {
		cs.close(len(pts) - 1)
	}

	var merged []rawCorner
	for _, rc := range cs.raw {
		length := pts[rc.exitIdx].S - pts[rc.entryIdx].S
		if length >= p.MinCornerLengthM {
			merged = append(merged, rc)
			continue
		}
		if len(merged) == 0 {
			continue // leading stub with nothing to merge into
		}
		prev := &merged[len(merged)-1]
		prev.exitIdx = rc.exitIdx
		if math.Abs(rc.apexCurv) > math.Abs(prev.apexCurv) {
			prev.apexCurv = rc.apexCurv
			prev.apexIdx = rc.apexIdx
		}
	}

	corners := make([]Corner, 0, len(merged))
	for i, rc := range merged {
		dir := Right
		if rc.apexCurv > 0 {
			dir = Left
		}
		corners = append(corners, Corner{
			ID:        i + 1,
			EntryS:    pts[rc.entryIdx].S,
			ApexS:     pts[rc.apexIdx].S,
			ExitS:     pts[rc.exitIdx].S,
			Direction: dir,
		})
	}
	return corners
}
