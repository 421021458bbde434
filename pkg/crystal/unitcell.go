package crystal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnitCell holds the six lattice parameters of a crystal together with the
// matrices derived from them. All derived quantities are computed once at
// construction time so that the per-reflection operations are cheap.
//
// The orthogonalization convention places the a axis along laboratory x and
// the b axis in the x-y plane, so the orthogonalization matrix is upper
// triangular. The reciprocal matrix B maps a Miller index (as a column
// vector) onto the corresponding reciprocal-lattice vector in inverse
// angstroms.
type UnitCell struct {
	a, b, c             float64 // axis lengths in angstroms
	alpha, beta, gamma  float64 // inter-axial angles in degrees
	orth, frac, reciprc *r3.Mat
	volume              float64
}

// NewUnitCell creates a unit cell from lengths in angstroms and angles in
// degrees. It returns an error for non-positive lengths, angles outside the
// open interval (0, 180), or parameter combinations that do not describe a
// cell with positive volume.
func NewUnitCell(a, b, c, alpha, beta, gamma float64) (*UnitCell, error) {
	for _, p := range []struct {
		name  string
		value float64
	}{{"a", a}, {"b", b}, {"c", c}} {
		if p.value <= 0 || math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return nil, fmt.Errorf("cell length %s must be positive, got %g", p.name, p.value)
		}
	}
	for _, p := range []struct {
		name  string
		value float64
	}{{"alpha", alpha}, {"beta", beta}, {"gamma", gamma}} {
		if p.value <= 0 || p.value >= 180 || math.IsNaN(p.value) {
			return nil, fmt.Errorf("cell angle %s must lie in (0, 180) degrees, got %g", p.name, p.value)
		}
	}

	ca := math.Cos(alpha * math.Pi / 180)
	cb := math.Cos(beta * math.Pi / 180)
	cg := math.Cos(gamma * math.Pi / 180)
	sg := math.Sin(gamma * math.Pi / 180)

	// Squared volume of the unit parallelepiped spanned by the axis
	// directions. It vanishes when the three axes become coplanar.
	v2 := 1 - ca*ca - cb*cb - cg*cg + 2*ca*cb*cg
	if v2 <= 1e-12 {
		return nil, fmt.Errorf("degenerate unit cell: angles %g, %g, %g give non-positive volume", alpha, beta, gamma)
	}
	v := math.Sqrt(v2)

	// Orthogonalization matrix with the cell axes as columns.
	orth := r3.NewMat([]float64{
		a, b * cg, c * cb,
		0, b * sg, c * (ca - cb*cg) / sg,
		0, 0, c * v / sg,
	})

	// Invert with a general dense solve. The matrix is triangular with a
	// strictly positive diagonal here, so the inversion cannot fail for
	// parameters that passed validation.
	var inv mat.Dense
	if err := inv.Inverse(orth); err != nil {
		return nil, fmt.Errorf("failed to invert orthogonalization matrix: %v", err)
	}

	fracData := make([]float64, 9)
	recipData := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fracData[3*i+j] = inv.At(i, j)
			recipData[3*i+j] = inv.At(j, i)
		}
	}
	frac := r3.NewMat(fracData)
	reciprc := r3.NewMat(recipData)

	return &UnitCell{
		a: a, b: b, c: c,
		alpha: alpha, beta: beta, gamma: gamma,
		orth:    orth,
		frac:    frac,
		reciprc: reciprc,
		volume:  a * b * c * v,
	}, nil
}

// Parameters returns the six cell parameters in the conventional order:
// lengths a, b, c in angstroms followed by angles alpha, beta, gamma in
// degrees.
func (u *UnitCell) Parameters() (a, b, c, alpha, beta, gamma float64) {
	return u.a, u.b, u.c, u.alpha, u.beta, u.gamma
}

// Volume returns the cell volume in cubic angstroms.
func (u *UnitCell) Volume() float64 {
	return u.volume
}

// Orthogonalize converts fractional coordinates to cartesian coordinates in
// angstroms.
func (u *UnitCell) Orthogonalize(frac r3.Vec) r3.Vec {
	return u.orth.MulVec(frac)
}

// Fractionalize converts cartesian coordinates in angstroms to fractional
// coordinates.
func (u *UnitCell) Fractionalize(cart r3.Vec) r3.Vec {
	return u.frac.MulVec(cart)
}

// ReciprocalMatrix returns a copy of the reciprocal orthogonalization matrix
// B. Multiplying B by a Miller index column vector gives the reciprocal
// lattice vector of that reflection in inverse angstroms.
func (u *UnitCell) ReciprocalMatrix() *r3.Mat {
	data := make([]float64, 9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[3*i+j] = u.reciprc.At(i, j)
		}
	}
	return r3.NewMat(data)
}

// ReciprocalVector returns the reciprocal-lattice vector B*h of a reflection
// in inverse angstroms.
func (u *UnitCell) ReciprocalVector(h MillerIndex) r3.Vec {
	return u.reciprc.MulVec(h.Vec())
}

// D returns the resolution (d spacing) of a reflection in angstroms. The
// zero index corresponds to the direct beam and has infinite d spacing.
func (u *UnitCell) D(h MillerIndex) float64 {
	if h.IsZero() {
		return math.Inf(1)
	}
	return 1 / r3.Norm(u.ReciprocalVector(h))
}

// MaxMillerIndices returns, for each axis, the largest absolute index that
// can still diffract at the given resolution limit. The bound per axis is
// floor(length/dmin), which is tight for any cell shape: the reciprocal
// vector of (h, 0, 0) projected onto the a axis has length |h|/a, so indices
// beyond the bound necessarily fall outside the resolution sphere.
func (u *UnitCell) MaxMillerIndices(dmin float64) (MillerIndex, error) {
	if dmin <= 0 {
		return MillerIndex{}, fmt.Errorf("resolution limit must be positive, got %g", dmin)
	}
	bound := func(length float64) int {
		return int(math.Floor(length/dmin + 1e-9))
	}
	return MillerIndex{H: bound(u.a), K: bound(u.b), L: bound(u.c)}, nil
}

func (u *UnitCell) String() string {
	return fmt.Sprintf("UnitCell(%g, %g, %g, %g, %g, %g)", u.a, u.b, u.c, u.alpha, u.beta, u.gamma)
}
