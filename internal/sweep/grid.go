package sweep

import (
	"math"

	"github.com/kiteco/backdoor-sweep/internal/errors"
	"github.com/kiteco/backdoor-sweep/internal/resultstore"
)

// Grid is the set of trigger configurations a sweep visits.
type Grid struct {
	Lengths []float64
	// Angles are in radians.
	Angles []float64
}

// DefaultLengths are the trigger magnitudes of the reference run.
var DefaultLengths = []float64{1, 3, 5}

// DefaultGrid is lengths {1, 3, 5} by five equally spaced angles over [0, π].
func DefaultGrid() Grid {
	return Grid{
		Lengths: append([]float64(nil), DefaultLengths...),
		Angles:  EvenAngles(5),
	}
}

// EvenAngles returns k equally spaced angles covering [0, π], endpoints included.
func EvenAngles(k int) []float64 {
	switch {
	case k <= 0:
		return nil
	case k == 1:
		return []float64{0}
	}
	angles := make([]float64, k)
	for i := range angles {
		angles[i] = math.Pi * float64(i) / float64(k-1)
	}
	angles[k-1] = math.Pi
	return angles
}

// Cell is one (length, angle) configuration, numbered in sweep order.
type Cell struct {
	Index  int
	Length float64
	Angle  float64
}

// Key is the persistence key of the cell.
func (c Cell) Key() resultstore.Key {
	return resultstore.KeyFor(c.Length, c.Angle)
}

// Cells enumerates the cross product with length in the outer loop and angle in the inner.
func (g Grid) Cells() []Cell {
	cells := make([]Cell, 0, len(g.Lengths)*len(g.Angles))
	for _, length := range g.Lengths {
		for _, angle := range g.Angles {
			cells = append(cells, Cell{Index: len(cells), Length: length, Angle: angle})
		}
	}
	return cells
}

// Validate checks that the grid is non-empty, finite, and that no two cells share a
// result file.
func (g Grid) Validate() error {
	if len(g.Lengths) == 0 {
		return errors.InvalidSpec("lengths", "grid has no lengths")
	}
	if len(g.Angles) == 0 {
		return errors.InvalidSpec("angles", "grid has no angles")
	}
	for _, l := range g.Lengths {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return errors.InvalidSpec("lengths", "must be finite, got %v", l)
		}
	}
	for _, a := range g.Angles {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return errors.InvalidSpec("angles", "must be finite, got %v", a)
		}
	}

	seen := make(map[resultstore.Key]bool)
	for _, c := range g.Cells() {
		k := c.Key()
		if seen[k] {
			return errors.InvalidSpec("grid", "two cells map to %s", k.Name())
		}
		seen[k] = true
	}
	return nil
}
