package prediction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"xtalpredict/pkg/crystal"
)

// DefaultDeltaPsiMax is the angular acceptance of the still predictor in
// radians, about 0.086 degrees.
const DefaultDeltaPsiMax = 0.0015

// StillsRayPredictor computes the diffracted ray of a reflection on a still
// exposure. With no rotation to carry a reciprocal vector onto the Ewald
// sphere, the vector is instead swung onto the sphere about the axis
// perpendicular to both the vector and the beam, and the swing angle
// delta psi measures how far from the diffraction condition the reflection
// was. Reflections within DeltaPsiMax of the sphere yield one ray, exactly
// on the sphere.
type StillsRayPredictor struct {
	// DeltaPsiMax is the largest |delta psi| in radians accepted as
	// diffracting.
	DeltaPsiMax float64

	s0     r3.Vec
	s0len  float64
	s0unit r3.Vec

	deltaPsi float64
}

// NewStillsRayPredictor creates a still predictor for an incident
// wavevector s0.
func NewStillsRayPredictor(s0 r3.Vec) (*StillsRayPredictor, error) {
	n := r3.Norm(s0)
	if n == 0 {
		return nil, fmt.Errorf("incident wavevector must be non-zero")
	}
	return &StillsRayPredictor{
		DeltaPsiMax: DefaultDeltaPsiMax,
		s0:          s0,
		s0len:       n,
		s0unit:      r3.Scale(1/n, s0),
	}, nil
}

// Predict returns the ray of a reflection, or none when the reflection is
// further than DeltaPsiMax from the diffraction condition. Rays carry
// angle 0 and a false entering flag.
func (p *StillsRayPredictor) Predict(h crystal.MillerIndex, ub *r3.Mat) []Ray {
	q := ub.MulVec(h.Vec())
	qlen := r3.Norm(q)
	if qlen == 0 {
		return nil
	}

	// Axis of the swing onto the sphere. A reciprocal vector along the
	// beam has no defined swing axis and cannot diffract.
	e1 := r3.Cross(q, p.s0unit)
	if r3.Norm(e1) < 1e-12*qlen {
		return nil
	}
	e1 = r3.Unit(e1)
	c0 := r3.Unit(r3.Cross(p.s0unit, e1))

	// Decompose the on-sphere vector r along -s0 and c0. Beyond the
	// sphere diameter there is no solution.
	a := 0.5 * qlen * qlen / p.s0len
	if a > qlen {
		return nil
	}
	b := math.Sqrt(qlen*qlen - a*a)
	r := r3.Add(r3.Scale(-a, p.s0unit), r3.Scale(b, c0))

	// The swing angle from q to r
	q0 := r3.Scale(1/qlen, q)
	q1 := r3.Unit(r3.Cross(q0, e1))
	deltaPsi := -math.Atan2(r3.Dot(r, q1), r3.Dot(r, q0))
	if math.Abs(deltaPsi) > p.DeltaPsiMax {
		return nil
	}
	p.deltaPsi = deltaPsi

	// Place s1 exactly on the sphere
	s1 := r3.Scale(p.s0len, r3.Unit(r3.Add(p.s0, r)))
	return []Ray{{S1: s1, Angle: 0, Entering: false}}
}

// DeltaPsi returns the swing angle of the last accepted ray in radians.
func (p *StillsRayPredictor) DeltaPsi() float64 {
	return p.deltaPsi
}
