package experiment

import (
	"fmt"
	"math"
)

// Scan describes an oscillation sweep: a 1-based inclusive range of images
// and the oscillation of the first image. Image i covers the angular
// interval [start + (i-range[0])*width, start + (i-range[0]+1)*width).
// All angles are in radians.
type Scan struct {
	imageRange [2]int
	oscStart   float64
	oscWidth   float64
}

// NewScan creates a scan from a 1-based inclusive image range, the rotation
// angle at the start of the first image and the per-image oscillation width,
// both in radians.
func NewScan(imageRange [2]int, oscStart, oscWidth float64) (*Scan, error) {
	if imageRange[1] < imageRange[0] {
		return nil, fmt.Errorf("image range [%d, %d] is empty", imageRange[0], imageRange[1])
	}
	if oscWidth <= 0 {
		return nil, fmt.Errorf("oscillation width must be positive, got %g", oscWidth)
	}
	return &Scan{imageRange: imageRange, oscStart: oscStart, oscWidth: oscWidth}, nil
}

// ImageRange returns the 1-based inclusive image range.
func (s *Scan) ImageRange() [2]int {
	return s.imageRange
}

// NumImages returns the number of images in the scan.
func (s *Scan) NumImages() int {
	return s.imageRange[1] - s.imageRange[0] + 1
}

// Oscillation returns the start angle of the first image and the per-image
// width, in radians.
func (s *Scan) Oscillation() (start, width float64) {
	return s.oscStart, s.oscWidth
}

// OscillationRange returns the angular interval covered by the whole scan.
// A scan of more than 2*pi/width images covers more than a full turn.
func (s *Scan) OscillationRange() (start, end float64) {
	return s.oscStart, s.oscStart + float64(s.NumImages())*s.oscWidth
}

// ArrayIndexFromAngle converts a rotation angle to the continuous zero-based
// frame coordinate of the scan. The start of the first image maps to
// imageRange[0]-1, so frame f covers data recorded on image floor(f)+1.
// The angle is used as given, with no 2*pi reduction.
func (s *Scan) ArrayIndexFromAngle(angle float64) float64 {
	return float64(s.imageRange[0]-1) + (angle-s.oscStart)/s.oscWidth
}

// AngleFromArrayIndex is the inverse of ArrayIndexFromAngle.
func (s *Scan) AngleFromArrayIndex(frame float64) float64 {
	return s.oscStart + (frame-float64(s.imageRange[0]-1))*s.oscWidth
}

// FramesForAngle returns the frame coordinate of every rotation angle that
// is congruent to the given angle modulo 2*pi and lies inside the scan,
// in ascending order. Scans longer than a full turn record the same
// diffraction condition on several frames; an angle outside the scan yields
// an empty slice, which is a valid non-event.
func (s *Scan) FramesForAngle(angle float64) []float64 {
	start, end := s.OscillationRange()
	kmin := int(math.Ceil((start - angle) / (2 * math.Pi)))
	kmax := int(math.Floor((end - angle) / (2 * math.Pi)))

	var frames []float64
	for k := kmin; k <= kmax; k++ {
		frames = append(frames, s.ArrayIndexFromAngle(angle+2*math.Pi*float64(k)))
	}
	return frames
}
