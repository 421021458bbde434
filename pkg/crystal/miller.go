// Package crystal provides the crystallographic model used by reflection
// prediction: Miller indices, the unit cell with its orthogonalization and
// reciprocal-space matrices, and space-group symmetry with systematic-absence
// and symmetry-orbit handling.
package crystal

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// MillerIndex identifies a reciprocal-lattice point by its integer triple
// (h, k, l). It is an immutable value type.
type MillerIndex struct {
	H, K, L int
}

// IsZero reports whether the index is the all-zero triple (the direct beam).
func (h MillerIndex) IsZero() bool {
	return h.H == 0 && h.K == 0 && h.L == 0
}

// Neg returns the Friedel mate (-h, -k, -l).
func (h MillerIndex) Neg() MillerIndex {
	return MillerIndex{-h.H, -h.K, -h.L}
}

// Vec returns the index as a floating point vector, suitable for
// multiplication with an orientation or orthogonalization matrix.
func (h MillerIndex) Vec() r3.Vec {
	return r3.Vec{X: float64(h.H), Y: float64(h.K), Z: float64(h.L)}
}

// Less imposes a deterministic lexicographic order on indices,
// comparing h first, then k, then l.
func (h MillerIndex) Less(other MillerIndex) bool {
	if h.H != other.H {
		return h.H < other.H
	}
	if h.K != other.K {
		return h.K < other.K
	}
	return h.L < other.L
}

func (h MillerIndex) String() string {
	return fmt.Sprintf("(%d,%d,%d)", h.H, h.K, h.L)
}
