package prediction

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ray is one diffracted beam leaving the crystal: the scattered wavevector
// s1 (with |s1| equal to |s0|), the rotation angle at which the reflection
// crosses the Ewald sphere, and the crossing direction. Stills have angle 0
// and a false entering flag.
type Ray struct {
	S1       r3.Vec
	Angle    float64
	Entering bool
}

// mod2Pi reduces an angle to [0, 2*pi).
func mod2Pi(angle float64) float64 {
	angle = math.Mod(angle, 2*math.Pi)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}

// isAngleInRange reports whether some turn of the angle falls inside the
// interval. Intervals spanning a full circle or more accept everything.
func isAngleInRange(rng [2]float64, angle float64) bool {
	width := rng[1] - rng[0]
	if width >= 2*math.Pi {
		return true
	}
	return mod2Pi(angle-rng[0]) <= width
}
