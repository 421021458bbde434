package background

import (
	"math"
	"testing"

	"xtalpredict/internal/models"
)

// TestNormalExpectedNSigma verifies the expected extreme deviation against
// known normal quantiles
func TestNormalExpectedNSigma(t *testing.T) {
	// For 2 observations the expected extreme is the upper quartile
	if got := NormalExpectedNSigma(2); math.Abs(got-0.6744897502) > 1e-9 {
		t.Errorf("NormalExpectedNSigma(2) = %g, want 0.6744897502", got)
	}
	// For 100 observations it is the 99th percentile of |z|
	if got := NormalExpectedNSigma(100); math.Abs(got-2.5758293035) > 1e-9 {
		t.Errorf("NormalExpectedNSigma(100) = %g, want 2.5758293035", got)
	}
	// More observations push the expected extreme further out
	prev := 0.0
	for _, n := range []int{2, 5, 10, 100, 1000} {
		got := NormalExpectedNSigma(n)
		if got <= prev {
			t.Errorf("NormalExpectedNSigma(%d) = %g, not increasing past %g", n, got, prev)
		}
		prev = got
	}
}

// TestNSigmaStatistics verifies the min/max t-statistics on a symmetric
// sample
func TestNSigmaStatistics(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	// Sample standard deviation is sqrt(2.5); min and max both lie 2 away
	// from the mean of 3
	want := 2 / math.Sqrt(2.5)

	if got := MinimumNSigma(data); math.Abs(got-want) > 1e-12 {
		t.Errorf("MinimumNSigma = %g, want %g", got, want)
	}
	if got := MaximumNSigma(data); math.Abs(got-want) > 1e-12 {
		t.Errorf("MaximumNSigma = %g, want %g", got, want)
	}
	if got := AbsoluteMaximumNSigma(data); math.Abs(got-want) > 1e-12 {
		t.Errorf("AbsoluteMaximumNSigma = %g, want %g", got, want)
	}

	// An asymmetric sample is dominated by its larger tail
	skewed := []float64{1, 2, 2, 2, 10}
	if got := AbsoluteMaximumNSigma(skewed); math.Abs(got-MaximumNSigma(skewed)) > 1e-12 {
		t.Errorf("AbsoluteMaximumNSigma = %g, want max tail %g", got, MaximumNSigma(skewed))
	}

	// Constant data has zero extent in sigma and passes any threshold
	constant := []float64{7, 7, 7, 7}
	if got := AbsoluteMaximumNSigma(constant); got != 0 {
		t.Errorf("AbsoluteMaximumNSigma of constant data = %g, want 0", got)
	}
	if !IsNormallyDistributed(constant, 1e-6) {
		t.Error("Constant data failed the normality test")
	}
}

// TestNewDiscriminatorValidation verifies the parameter preconditions
func TestNewDiscriminatorValidation(t *testing.T) {
	if _, err := NewDiscriminator(0, 3); err == nil {
		t.Error("Expected error for zero min data, got nil")
	}
	if _, err := NewDiscriminator(10, 0); err == nil {
		t.Error("Expected error for zero n sigma, got nil")
	}
	if _, err := NewDiscriminator(10, -1); err == nil {
		t.Error("Expected error for negative n sigma, got nil")
	}
	if _, err := NewDiscriminator(10, 3); err != nil {
		t.Errorf("Valid parameters rejected: %v", err)
	}
}

// TestDiscriminatorConstantData verifies that featureless data is classified
// entirely as background
func TestDiscriminatorConstantData(t *testing.T) {
	d := mustDiscriminator(t, 5, 3)

	data := make([]float64, 20)
	for i := range data {
		data[i] = 42
	}
	mask, err := d.MaskFor(data)
	if err != nil {
		t.Fatalf("MaskFor failed: %v", err)
	}
	for i, m := range mask {
		if m&models.Background == 0 {
			t.Errorf("Pixel %d not classified as background", i)
		}
		if m&models.Foreground != 0 {
			t.Errorf("Pixel %d classified as foreground", i)
		}
	}
}

// TestDiscriminatorOutlier verifies that a planted peak pixel is peeled off
// into the foreground while the flat base stays background
func TestDiscriminatorOutlier(t *testing.T) {
	d := mustDiscriminator(t, 10, 3)

	data := flatBase()
	outlier := len(data)
	data = append(data, 1000)

	mask, err := d.MaskFor(data)
	if err != nil {
		t.Fatalf("MaskFor failed: %v", err)
	}
	if mask[outlier]&models.Foreground == 0 {
		t.Error("Outlier pixel not classified as foreground")
	}
	if mask[outlier]&models.Background != 0 {
		t.Error("Outlier pixel classified as background")
	}
	for i := 0; i < outlier; i++ {
		if mask[i]&models.Background == 0 {
			t.Errorf("Base pixel %d not classified as background", i)
		}
		if mask[i]&models.Foreground != 0 {
			t.Errorf("Base pixel %d classified as foreground", i)
		}
	}
}

// TestDiscriminatorIdempotence verifies that reapplying the discriminator
// never changes an already classified mask
func TestDiscriminatorIdempotence(t *testing.T) {
	d := mustDiscriminator(t, 10, 3)

	data := append(flatBase(), 1000, 500)
	mask := make([]models.MaskCode, len(data))
	for i := range mask {
		mask[i] = models.Valid
	}

	if err := d.Apply(data, mask); err != nil {
		t.Fatalf("First application failed: %v", err)
	}
	first := make([]models.MaskCode, len(mask))
	copy(first, mask)

	if err := d.Apply(data, mask); err != nil {
		t.Fatalf("Second application failed: %v", err)
	}
	for i := range mask {
		if mask[i] != first[i] {
			t.Errorf("Pixel %d changed from %b to %b on reapplication", i, first[i], mask[i])
		}
	}
}

// TestDiscriminatorPreconditions verifies the error paths of Apply
func TestDiscriminatorPreconditions(t *testing.T) {
	d := mustDiscriminator(t, 10, 3)

	// Mismatched lengths
	if err := d.Apply(make([]float64, 5), make([]models.MaskCode, 6)); err == nil {
		t.Error("Expected error for mismatched lengths, got nil")
	}

	// Not enough valid pixels
	data := make([]float64, 5)
	mask := make([]models.MaskCode, 5)
	for i := range mask {
		mask[i] = models.Valid
	}
	if err := d.Apply(data, mask); err == nil {
		t.Error("Expected error for insufficient valid pixels, got nil")
	}

	// Invalid pixels do not count and are never classified
	data = flatBase()
	mask = make([]models.MaskCode, len(data))
	for i := range mask {
		mask[i] = models.Valid
	}
	mask[3] = 0
	if err := d.Apply(data, mask); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if mask[3] != 0 {
		t.Errorf("Invalid pixel was touched, mask = %b", mask[3])
	}
}

// TestApplyShoebox verifies the shoebox entry point
func TestApplyShoebox(t *testing.T) {
	d := mustDiscriminator(t, 10, 3)

	sb := models.NewShoebox(0, [6]int{0, 7, 0, 3, 0, 1})
	base := flatBase()
	copy(sb.Data, base)
	sb.Data[20] = 1000
	for i := range sb.Mask {
		sb.Mask[i] = models.Valid
	}

	if err := d.ApplyShoebox(sb); err != nil {
		t.Fatalf("ApplyShoebox failed: %v", err)
	}
	if got := sb.CountMaskCode(models.Foreground); got != 1 {
		t.Errorf("Foreground count = %d, want 1", got)
	}
	if got := sb.CountMaskCode(models.Background); got != 20 {
		t.Errorf("Background count = %d, want 20", got)
	}

	// An inconsistent shoebox is rejected
	sb.Data = sb.Data[:5]
	if err := d.ApplyShoebox(sb); err == nil {
		t.Error("Expected error for inconsistent shoebox, got nil")
	}
}

// Helper functions for tests

// mustDiscriminator builds a discriminator or fails the test
func mustDiscriminator(t *testing.T, minData int, nSigma float64) *Discriminator {
	t.Helper()
	d, err := NewDiscriminator(minData, nSigma)
	if err != nil {
		t.Fatalf("Failed to create discriminator: %v", err)
	}
	return d
}

// flatBase returns 20 pixels of featureless background around 10 counts
func flatBase() []float64 {
	pattern := []float64{8, 9, 9, 10, 10, 10, 10, 11, 11, 12}
	return append(append([]float64{}, pattern...), pattern...)
}
