// Package background separates the pixels of a reflection shoebox into
// background and foreground. The discriminator assumes that background
// counts follow a normal distribution: pixels are sorted by intensity and
// the brightest are peeled off until the remainder looks normal, which
// leaves diffraction signal in the foreground and Poisson-like background
// in the kept set.
package background

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"xtalpredict/internal/models"
)

// NormalExpectedNSigma returns the number of standard deviations the most
// extreme of numObs samples from a normal distribution is expected to lie
// from the mean.
func NormalExpectedNSigma(numObs int) float64 {
	return math.Sqrt2 * math.Erfinv((float64(numObs)-1)/float64(numObs))
}

// MinimumNSigma returns how many standard deviations the sample minimum
// lies below the sample mean, or zero for constant or empty data.
func MinimumNSigma(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean, sdev := stat.MeanStdDev(data, nil)
	if sdev == 0 || math.IsNaN(sdev) {
		return 0
	}
	min := data[0]
	for _, v := range data[1:] {
		if v < min {
			min = v
		}
	}
	return (mean - min) / sdev
}

// MaximumNSigma returns how many standard deviations the sample maximum
// lies above the sample mean, or zero for constant or empty data.
func MaximumNSigma(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean, sdev := stat.MeanStdDev(data, nil)
	if sdev == 0 || math.IsNaN(sdev) {
		return 0
	}
	max := data[0]
	for _, v := range data[1:] {
		if v > max {
			max = v
		}
	}
	return (max - mean) / sdev
}

// AbsoluteMaximumNSigma returns the larger of the minimum and maximum
// deviations, the test statistic of the normality check.
func AbsoluteMaximumNSigma(data []float64) float64 {
	return math.Max(MinimumNSigma(data), MaximumNSigma(data))
}

// IsNormallyDistributed reports whether the most extreme sample lies within
// nSigma standard deviations of the mean. Constant data passes trivially.
func IsNormallyDistributed(data []float64, nSigma float64) bool {
	return AbsoluteMaximumNSigma(data) < nSigma
}

// Discriminator classifies shoebox pixels into background and foreground.
// It is stateless apart from its two parameters and safe for concurrent
// use.
type Discriminator struct {
	minData int
	nSigma  float64
}

// NewDiscriminator creates a discriminator that keeps at least minData
// pixels as background and accepts a pixel set as normal when its most
// extreme value lies within nSigma standard deviations of the mean.
func NewDiscriminator(minData int, nSigma float64) (*Discriminator, error) {
	if minData <= 0 {
		return nil, fmt.Errorf("minimum data count must be positive, got %d", minData)
	}
	if nSigma <= 0 {
		return nil, fmt.Errorf("n sigma must be positive, got %g", nSigma)
	}
	return &Discriminator{minData: minData, nSigma: nSigma}, nil
}

// Apply classifies the valid pixels of a data/mask pair in place. Pixels
// carrying the Valid bit are sorted by intensity; the brightest are dropped
// one at a time until the rest pass the normality test or only minData
// remain. Kept pixels gain the Background bit, dropped pixels the
// Foreground bit, and no bit is ever cleared, so repeated application gives
// the same classification.
func (d *Discriminator) Apply(data []float64, mask []models.MaskCode) error {
	if len(data) != len(mask) {
		return fmt.Errorf("data length %d does not match mask length %d", len(data), len(mask))
	}

	// Indices of the pixels eligible for classification
	indices := make([]int, 0, len(mask))
	for i, m := range mask {
		if m&models.Valid != 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) < d.minData {
		return fmt.Errorf("%d valid pixels, need at least %d", len(indices), d.minData)
	}

	// Ascending intensity order. The sort must be stable so that pixels
	// with equal counts keep their spatial order and reruns classify
	// identically.
	sort.SliceStable(indices, func(a, b int) bool {
		return data[indices[a]] < data[indices[b]]
	})

	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = data[idx]
	}

	// Peel the brightest pixel until the remainder looks normal
	num := len(indices)
	for num > d.minData {
		if IsNormallyDistributed(values[:num], d.nSigma) {
			break
		}
		num--
	}

	for _, idx := range indices[:num] {
		mask[idx] |= models.Background
	}
	for _, idx := range indices[num:] {
		mask[idx] |= models.Foreground
	}
	return nil
}

// MaskFor classifies data in which every pixel is valid and returns the
// resulting mask.
func (d *Discriminator) MaskFor(data []float64) ([]models.MaskCode, error) {
	mask := make([]models.MaskCode, len(data))
	for i := range mask {
		mask[i] = models.Valid
	}
	if err := d.Apply(data, mask); err != nil {
		return nil, err
	}
	return mask, nil
}

// ApplyShoebox classifies the pixels of a shoebox in place.
func (d *Discriminator) ApplyShoebox(sb *models.Shoebox) error {
	if !sb.IsConsistent() {
		return fmt.Errorf("shoebox data and mask do not match its bounding box")
	}
	return d.Apply(sb.Data, sb.Mask)
}
