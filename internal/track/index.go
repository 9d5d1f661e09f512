package track

import "math"

// tieEpsilonM is the distance band within which two candidate points count
// as equidistant and the forward-travel tie-break applies.
const tieEpsilonM = 0.5

// Index is a coarse world-coordinate cell grid over a model's centerline
// points. Project runs once per frame on the hot path, so lookups touch only
// the 3x3 cell neighbourhood around the query, never the whole centerline.
type Index struct {
	model    *Model
	cellSize float64
	minX     float64
	minY     float64
	cols     int
	rows     int
	cells    [][]int // point indices per cell, row-major
}

// NewIndex builds a spatial index over the model's centerline points.
func NewIndex(m *Model) *Index {
	pts := m.Points()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	// Cell size tracks the sample spacing so a 3x3 neighbourhood always
	// covers the nearest centerline point for on-track queries.
	meanStep := m.Length() / float64(len(pts))
	cellSize := math.Max(5.0, 4*meanStep)

	cols := int((maxX-minX)/cellSize) + 1
	rows := int((maxY-minY)/cellSize) + 1

	idx := &Index{
		model:    m,
		cellSize: cellSize,
		minX:     minX,
		minY:     minY,
		cols:     cols,
		rows:     rows,
		cells:    make([][]int, cols*rows),
	}
	for i, p := range pts {
		c := idx.cellOf(p.X, p.Y)
		idx.cells[c] = append(idx.cells[c], i)
	}
	return idx
}

func (idx *Index) cellOf(x, y float64) int {
	cx := int((x - idx.minX) / idx.cellSize)
	cy := int((y - idx.minY) / idx.cellSize)
	if cx < 0 {
		cx = 0
	}
	if cx >= idx.cols {
		cx = idx.cols - 1
	}
	if cy < 0 {
		cy = 0
	}
	if cy >= idx.rows {
		cy = idx.rows - 1
	}
	return cy*idx.cols + cx
}

// Project maps a world coordinate to the arc-length of the nearest
// centerline point. prevS is the previous projected position (negative if
// unknown); when two candidates are nearly equidistant the one ahead of
// prevS in the direction of travel wins, so coordinate noise cannot walk
// the position backward.
func (idx *Index) Project(x, y, prevS float64) float64 {
	pts := idx.model.Points()
	length := idx.model.Length()

	cx := int((x - idx.minX) / idx.cellSize)
	cy := int((y - idx.minY) / idx.cellSize)

	type candidate struct {
		s    float64
		dist float64
	}
	var cands []candidate
	for ring := 0; ring < 4 && len(cands) == 0; ring++ {
		for dy := -1 - ring; dy <= 1+ring; dy++ {
			for dx := -1 - ring; dx <= 1+ring; dx++ {
				gx, gy := cx+dx, cy+dy
				if gx < 0 || gx >= idx.cols || gy < 0 || gy >= idx.rows {
					continue
				}
				for _, pi := range idx.cells[gy*idx.cols+gx] {
					p := pts[pi]
					cands = append(cands, candidate{
						s:    p.S,
						dist: math.Hypot(p.X-x, p.Y-y),
					})
				}
			}
		}
	}
	if len(cands) == 0 {
		// Off-grid query: fall back to whatever position we last had.
		if prevS >= 0 {
			return prevS
		}
		return 0
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.dist < best.dist-tieEpsilonM {
			best = c
			continue
		}
		if math.Abs(c.dist-best.dist) <= tieEpsilonM && prevS >= 0 {
			if arcDelta(prevS, c.s, length) < arcDelta(prevS, best.s, length) {
				best = c
			}
		}
	}
	return best.s
}
