// Package experiment models the instrument and sample of a diffraction
// measurement: beam, goniometer, scan, multi-panel detector and crystal,
// together with YAML serialization of the whole bundle. The models are
// immutable after construction and safe for concurrent readers.
package experiment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"xtalpredict/pkg/crystal"
)

// Crystal pairs the unit cell and space group with the orientation matrix U
// that carries the crystal frame onto the laboratory frame. The product
// UB maps a Miller index directly to its reciprocal-lattice vector in the
// laboratory frame at rotation angle zero.
type Crystal struct {
	cell *crystal.UnitCell
	sg   *crystal.SpaceGroup
	u    *r3.Mat
	ub   *r3.Mat
}

// NewCrystal creates a crystal model. A nil orientation means the identity,
// crystal axes aligned with the laboratory frame as the cell convention
// places them. A non-nil orientation must be a proper rotation.
func NewCrystal(cell *crystal.UnitCell, sg *crystal.SpaceGroup, orientation *r3.Mat) (*Crystal, error) {
	if cell == nil {
		return nil, fmt.Errorf("crystal needs a unit cell")
	}
	if sg == nil {
		return nil, fmt.Errorf("crystal needs a space group")
	}
	u := identityMat()
	if orientation != nil {
		if err := checkRotation(orientation); err != nil {
			return nil, fmt.Errorf("crystal orientation: %v", err)
		}
		u = copyMat(orientation)
	}
	return &Crystal{
		cell: cell,
		sg:   sg,
		u:    u,
		ub:   mulMat(u, cell.ReciprocalMatrix()),
	}, nil
}

// Cell returns the unit cell.
func (c *Crystal) Cell() *crystal.UnitCell {
	return c.cell
}

// SpaceGroup returns the space group.
func (c *Crystal) SpaceGroup() *crystal.SpaceGroup {
	return c.sg
}

// Orientation returns a copy of the orientation matrix U.
func (c *Crystal) Orientation() *r3.Mat {
	return copyMat(c.u)
}

// UB returns a copy of the product of the orientation matrix and the
// reciprocal orthogonalization matrix of the cell.
func (c *Crystal) UB() *r3.Mat {
	return copyMat(c.ub)
}

// Experiment bundles the models of one measurement. Goniometer and Scan are
// nil for a still exposure and present together for a rotation scan.
type Experiment struct {
	Beam       *Beam
	Goniometer *Goniometer
	Scan       *Scan
	Detector   *Detector
	Crystal    *Crystal
}

// IsStill reports whether the experiment is a still exposure, one with
// neither goniometer nor scan.
func (e *Experiment) IsStill() bool {
	return e.Goniometer == nil && e.Scan == nil
}

// Validate checks that the bundle is complete: beam, detector and crystal
// are always required, and goniometer and scan are either both present or
// both absent.
func (e *Experiment) Validate() error {
	if e.Beam == nil {
		return fmt.Errorf("experiment needs a beam")
	}
	if e.Detector == nil {
		return fmt.Errorf("experiment needs a detector")
	}
	if e.Crystal == nil {
		return fmt.Errorf("experiment needs a crystal")
	}
	if (e.Goniometer == nil) != (e.Scan == nil) {
		return fmt.Errorf("goniometer and scan must be present together or both absent")
	}
	return nil
}

// Matrix helpers shared by the package.

func identityMat() *r3.Mat {
	return r3.NewMat([]float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func copyMat(m *r3.Mat) *r3.Mat {
	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[3*i+j] = m.At(i, j)
		}
	}
	return r3.NewMat(data)
}

func mulMat(a, b *r3.Mat) *r3.Mat {
	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += a.At(i, k) * b.At(k, j)
			}
			data[3*i+j] = s
		}
	}
	return r3.NewMat(data)
}

// checkRotation verifies that a matrix is a proper rotation: orthonormal
// columns and determinant +1, within a small tolerance.
func checkRotation(m *r3.Mat) error {
	const tol = 1e-6
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += m.At(k, i) * m.At(k, j)
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(s-want) > tol {
				return fmt.Errorf("matrix is not orthonormal (column %d . column %d = %g)", i, j, s)
			}
		}
	}
	if d := m.Det(); math.Abs(d-1) > tol {
		return fmt.Errorf("matrix determinant %g, want +1", d)
	}
	return nil
}
