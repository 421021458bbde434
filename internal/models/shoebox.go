package models

// MaskCode is a bit field classifying one pixel of a shoebox.
type MaskCode uint

const (
	// Valid marks a pixel that carries usable signal (inside the detector,
	// not masked by the instrument)
	Valid MaskCode = 1 << iota

	// Background marks a pixel used for background estimation
	Background

	// Foreground marks a pixel attributed to the reflection itself
	Foreground

	// Strong marks a pixel flagged by spot finding
	Strong
)

// Shoebox is the pixel block cut out around one predicted or observed
// reflection: a bounding box on a detector panel with the intensity data
// and a classification mask over the box volume.
type Shoebox struct {
	// Panel is the detector panel index the box was cut from
	Panel int

	// Bbox is the bounding box x0, x1, y0, y1, z0, z1 with half-open
	// intervals, x along the fast axis, y along slow, z along frames
	Bbox [6]int

	// Data holds the intensities in row-major order, x fastest then y
	// then z
	Data []float64

	// Mask classifies each pixel of Data
	Mask []MaskCode
}

// NewShoebox allocates a zeroed shoebox covering a bounding box.
func NewShoebox(panel int, bbox [6]int) *Shoebox {
	sb := &Shoebox{Panel: panel, Bbox: bbox}
	n := sb.NumPixels()
	if n > 0 {
		sb.Data = make([]float64, n)
		sb.Mask = make([]MaskCode, n)
	}
	return sb
}

// Size returns the box extent in pixels along x, y and frames.
func (sb *Shoebox) Size() (x, y, z int) {
	return sb.Bbox[1] - sb.Bbox[0], sb.Bbox[3] - sb.Bbox[2], sb.Bbox[5] - sb.Bbox[4]
}

// NumPixels returns the number of pixels in the box, zero for a degenerate
// bounding box.
func (sb *Shoebox) NumPixels() int {
	x, y, z := sb.Size()
	if x <= 0 || y <= 0 || z <= 0 {
		return 0
	}
	return x * y * z
}

// IsConsistent reports whether the data and mask arrays match the bounding
// box volume.
func (sb *Shoebox) IsConsistent() bool {
	n := sb.NumPixels()
	return n > 0 && len(sb.Data) == n && len(sb.Mask) == n
}

// CountMaskCode returns the number of pixels whose mask has every bit of
// the given code set.
func (sb *Shoebox) CountMaskCode(code MaskCode) int {
	count := 0
	for _, m := range sb.Mask {
		if m&code == code {
			count++
		}
	}
	return count
}
