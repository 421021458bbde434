package prediction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"xtalpredict/pkg/crystal"
)

// DefaultTolerance is the relative discriminant tolerance below which the
// two rotation solutions of a reflection are merged into a single tangent
// contact with the Ewald sphere.
const DefaultTolerance = 1e-9

// RayPredictor computes the diffracted rays of a reflection during a
// rotation scan. For each Miller index it solves the Ewald condition
// |s0 + R(phi)*UB*h| = |s0| in closed form and returns a ray for every
// rotation angle inside the oscillation range.
//
// The solver works in the orthonormal frame (m1, m2, m3) with m2 along the
// rotation axis, m1 along axis x s0 and m3 = m1 x m2. The component of the
// reciprocal vector along m2 is invariant under the rotation, the Ewald
// condition fixes the m3 component, and the remaining in-plane radius
// decides between zero, one (tangent) and two crossing angles.
type RayPredictor struct {
	// Tolerance is the relative discriminant tolerance of the tangency
	// decision: discriminants within Tolerance times the squared in-plane
	// radius of zero count as a single grazing contact.
	Tolerance float64

	s0       r3.Vec
	axis     r3.Vec
	oscRange [2]float64

	// Frame vectors and invariant projections of s0, fixed per scan
	m1, m3     r3.Vec
	s0m2, s0m3 float64
}

// NewRayPredictor creates a predictor for an incident wavevector s0, a
// rotation axis and an oscillation range in radians. The axis must not be
// parallel to the beam.
func NewRayPredictor(s0, axis r3.Vec, oscRange [2]float64) (*RayPredictor, error) {
	if r3.Norm(s0) == 0 {
		return nil, fmt.Errorf("incident wavevector must be non-zero")
	}
	n := r3.Norm(axis)
	if n == 0 {
		return nil, fmt.Errorf("rotation axis must be non-zero")
	}
	axis = r3.Scale(1/n, axis)
	if oscRange[1] < oscRange[0] {
		return nil, fmt.Errorf("oscillation range [%g, %g] is reversed", oscRange[0], oscRange[1])
	}

	m1 := r3.Cross(axis, s0)
	if r3.Norm(m1) < 1e-12*r3.Norm(s0) {
		return nil, fmt.Errorf("rotation axis is parallel to the beam")
	}
	m1 = r3.Unit(m1)
	m3 := r3.Cross(m1, axis)

	return &RayPredictor{
		Tolerance: DefaultTolerance,
		s0:        s0,
		axis:      axis,
		oscRange:  oscRange,
		m1:        m1,
		m3:        m3,
		s0m2:      r3.Dot(s0, axis),
		s0m3:      r3.Dot(s0, m3),
	}, nil
}

// Predict returns the rays of a reflection, zero to two depending on how
// its rotated reciprocal vector meets the Ewald sphere within the
// oscillation range. Unreachable reflections are a non-event, not an
// error. A reciprocal vector along the rotation axis sweeps no circle:
// off the sphere it never diffracts, and exactly on the sphere it stays
// in contact at every angle and is reported as a single grazing ray at
// angle zero.
func (p *RayPredictor) Predict(h crystal.MillerIndex, ub *r3.Mat) []Ray {
	r0 := ub.MulVec(h.Vec())
	r0sq := r3.Norm2(r0)
	if r0sq == 0 {
		return nil
	}
	// A reciprocal vector longer than the sphere diameter never diffracts
	if r0sq > 4*r3.Norm2(p.s0) {
		return nil
	}

	// Rotation-invariant component along the axis and the component the
	// Ewald condition demands along m3
	r0m2 := r3.Dot(r0, p.axis)
	rm3 := (-0.5*r0sq - r0m2*p.s0m2) / p.s0m3

	// Squared radius of the circle swept in the m1-m3 plane
	rhosq := r0sq - r0m2*r0m2
	disc := rhosq - rm3*rm3

	var inPlane [][2]float64 // solutions as (r.m1, r.m3)
	switch {
	case disc < -p.Tolerance*rhosq:
		return nil
	case disc <= p.Tolerance*rhosq:
		// Grazing contact: the sphere is touched at a single angle
		inPlane = [][2]float64{{0, rm3}}
	default:
		rm1 := math.Sqrt(disc)
		inPlane = [][2]float64{{rm1, rm3}, {-rm1, rm3}}
	}

	r0m1 := r3.Dot(r0, p.m1)
	r0m3 := r3.Dot(r0, p.m3)

	rays := make([]Ray, 0, len(inPlane))
	for _, sol := range inPlane {
		rm1, rm3 := sol[0], sol[1]
		angle := mod2Pi(math.Atan2(rm1*r0m3-rm3*r0m1, rm1*r0m1+rm3*r0m3))
		if !isAngleInRange(p.oscRange, angle) {
			continue
		}
		s1 := r3.Add(p.s0, r3.Rotate(r0, angle, p.axis))
		rays = append(rays, Ray{
			S1:    s1,
			Angle: angle,
			// The reflection enters the sphere where the angular
			// derivative of the Ewald residual is negative. That
			// derivative is s1.(s0 x axis) = -s0m3*rm1 with
			// s0m3 = |axis x s0| > 0, so the positive branch enters;
			// the grazing ray has rm1 = 0 and counts as exiting
			Entering: rm1 > 0,
		})
	}
	return rays
}
