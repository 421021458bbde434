package prediction

import (
	"fmt"

	"xtalpredict/pkg/crystal"
)

// IndexGenerator enumerates the Miller indices of a crystal that can
// diffract at or below a resolution limit. Indices are produced in
// ascending lexicographic order, filtered to one canonical representative
// per symmetry orbit, with systematic absences removed.
type IndexGenerator struct {
	cell *crystal.UnitCell
	sg   *crystal.SpaceGroup
	dmin float64

	bounds  crystal.MillerIndex
	h, k, l int
}

// NewIndexGenerator creates a generator over all indices of the unit cell
// with d-spacing at least dmin.
func NewIndexGenerator(cell *crystal.UnitCell, sg *crystal.SpaceGroup, dmin float64) (*IndexGenerator, error) {
	if cell == nil {
		return nil, fmt.Errorf("unit cell is required")
	}
	if sg == nil {
		return nil, fmt.Errorf("space group is required")
	}
	bounds, err := cell.MaxMillerIndices(dmin)
	if err != nil {
		return nil, err
	}
	return &IndexGenerator{
		cell:   cell,
		sg:     sg,
		dmin:   dmin,
		bounds: bounds,
		h:      -bounds.H,
		k:      -bounds.K,
		l:      -bounds.L - 1,
	}, nil
}

// next advances the (h, k, l) odometer and reports whether a further
// candidate exists.
func (g *IndexGenerator) next() bool {
	g.l++
	if g.l <= g.bounds.L {
		return true
	}
	g.l = -g.bounds.L
	g.k++
	if g.k <= g.bounds.K {
		return true
	}
	g.k = -g.bounds.K
	g.h++
	return g.h <= g.bounds.H
}

// Next returns the next surviving index. The second return is false once
// the enumeration is exhausted.
func (g *IndexGenerator) Next() (crystal.MillerIndex, bool) {
	for g.next() {
		h := crystal.MillerIndex{H: g.h, K: g.k, L: g.l}
		if h.IsZero() {
			continue
		}
		if g.cell.D(h) < g.dmin {
			continue
		}
		if g.sg.IsSystematicallyAbsent(h) {
			continue
		}
		if !g.sg.IsCanonical(h) {
			continue
		}
		return h, true
	}
	return crystal.MillerIndex{}, false
}

// All drains the generator into a slice.
func (g *IndexGenerator) All() []crystal.MillerIndex {
	var indices []crystal.MillerIndex
	for {
		h, ok := g.Next()
		if !ok {
			return indices
		}
		indices = append(indices, h)
	}
}
