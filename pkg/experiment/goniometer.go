package experiment

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Goniometer is a single-axis rotation stage. The axis is a unit vector in
// the laboratory frame; rotation angles follow the right-hand rule about it.
type Goniometer struct {
	axis r3.Vec
}

// NewGoniometer creates a goniometer from a rotation axis of any non-zero
// length.
func NewGoniometer(axis r3.Vec) (*Goniometer, error) {
	n := r3.Norm(axis)
	if n == 0 {
		return nil, fmt.Errorf("goniometer axis must be non-zero")
	}
	return &Goniometer{axis: r3.Scale(1/n, axis)}, nil
}

// Axis returns the unit rotation axis.
func (g *Goniometer) Axis() r3.Vec {
	return g.axis
}
