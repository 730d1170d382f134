package gridfence

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Axis bounds one spatial dimension of a grid and fixes its cell size.
type Axis struct {
	Min      float64
	Max      float64
	CellSize float64
}

// Grid is an ordered per-axis definition, X first then Y.
type Grid []Axis

// Cell addresses one grid bucket, one integer component per axis.
type Cell [2]int

// CellRange is the inclusive rectangle of cells an envelope spans.
type CellRange struct {
	Min, Max Cell
}

// Validate reports a configuration error for a grid an index can't be built
// on: wrong axis count, non-positive cell size or inverted bounds.
func (g Grid) Validate() error {
	if len(g) != 2 {
		return fmt.Errorf("grid must define 2 axes, got %d", len(g))
	}

	for i, a := range g {
		if a.CellSize <= 0 {
			return fmt.Errorf("axis %d: cell size must be positive, got %g", i, a.CellSize)
		}
		if a.Min >= a.Max {
			return fmt.Errorf("axis %d: min %g is not less than max %g", i, a.Min, a.Max)
		}
	}

	return nil
}

// HashRange maps an envelope to the inclusive range of cells it spans.
// The mapping is deterministic and monotonic: the same envelope always yields
// the same range and growing the envelope never shrinks it. An envelope lying
// wholly outside the grid bounds on any axis hashes to no cells at all,
// reported by ok being false; envelopes partially outside are clamped.
func (g Grid) HashRange(b orb.Bound) (CellRange, bool) {
	var r CellRange

	for i, a := range g {
		lo, hi, ok := a.span(b.Min[i], b.Max[i])
		if !ok {
			return CellRange{}, false
		}
		r.Min[i], r.Max[i] = lo, hi
	}

	return r, true
}

// Each calls fn for every cell in the range, row-major.
func (r CellRange) Each(fn func(Cell)) {
	for x := r.Min[0]; x <= r.Max[0]; x++ {
		for y := r.Min[1]; y <= r.Max[1]; y++ {
			fn(Cell{x, y})
		}
	}
}

// Size returns the number of cells in the range.
func (r CellRange) Size() int {
	return (r.Max[0] - r.Min[0] + 1) * (r.Max[1] - r.Min[1] + 1)
}

// cells is the bucket count of the axis, the last partial bucket included.
func (a Axis) cells() int {
	return int(math.Ceil((a.Max - a.Min) / a.CellSize))
}

// span converts a value interval to an inclusive bucket index interval,
// clamped to the axis. ok is false when the interval misses the axis entirely.
func (a Axis) span(lo, hi float64) (int, int, bool) {
	if hi < a.Min || lo > a.Max {
		return 0, 0, false
	}

	last := a.cells() - 1

	l := int(math.Floor((lo - a.Min) / a.CellSize))
	h := int(math.Floor((hi - a.Min) / a.CellSize))

	if l < 0 {
		l = 0
	} else if l > last {
		l = last
	}
	if h > last {
		h = last
	} else if h < 0 {
		h = 0
	}

	return l, h, true
}
