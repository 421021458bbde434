package experiment

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Beam is a monochromatic incident beam described by its propagation
// direction and wavelength. The direction is stored as a unit vector so the
// incident wavevector s0 is simply direction/wavelength with |s0| = 1/λ.
type Beam struct {
	direction  r3.Vec
	wavelength float64
}

// NewBeam creates a beam from a propagation direction (any non-zero length)
// and a wavelength in angstroms.
func NewBeam(direction r3.Vec, wavelength float64) (*Beam, error) {
	if wavelength <= 0 {
		return nil, fmt.Errorf("beam wavelength must be positive, got %g", wavelength)
	}
	n := r3.Norm(direction)
	if n == 0 {
		return nil, fmt.Errorf("beam direction must be non-zero")
	}
	return &Beam{direction: r3.Scale(1/n, direction), wavelength: wavelength}, nil
}

// Direction returns the unit propagation direction.
func (b *Beam) Direction() r3.Vec {
	return b.direction
}

// Wavelength returns the wavelength in angstroms.
func (b *Beam) Wavelength() float64 {
	return b.wavelength
}

// S0 returns the incident wavevector direction/wavelength in inverse
// angstroms.
func (b *Beam) S0() r3.Vec {
	return r3.Scale(1/b.wavelength, b.direction)
}
