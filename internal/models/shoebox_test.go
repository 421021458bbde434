package models

import (
	"testing"
)

// TestNewShoebox verifies allocation and sizing from a bounding box
func TestNewShoebox(t *testing.T) {
	sb := NewShoebox(2, [6]int{10, 14, 20, 23, 5, 7})

	x, y, z := sb.Size()
	if x != 4 || y != 3 || z != 2 {
		t.Errorf("Size = (%d, %d, %d), want (4, 3, 2)", x, y, z)
	}
	if sb.NumPixels() != 24 {
		t.Errorf("NumPixels = %d, want 24", sb.NumPixels())
	}
	if len(sb.Data) != 24 || len(sb.Mask) != 24 {
		t.Errorf("Allocated %d data and %d mask entries, want 24 each", len(sb.Data), len(sb.Mask))
	}
	if !sb.IsConsistent() {
		t.Error("Freshly allocated shoebox reported inconsistent")
	}
	if sb.Panel != 2 {
		t.Errorf("Panel = %d, want 2", sb.Panel)
	}
}

// TestShoeboxConsistency verifies degenerate boxes and mismatched arrays
func TestShoeboxConsistency(t *testing.T) {
	empty := NewShoebox(0, [6]int{5, 5, 0, 3, 0, 1})
	if empty.NumPixels() != 0 {
		t.Errorf("NumPixels of empty box = %d, want 0", empty.NumPixels())
	}
	if empty.IsConsistent() {
		t.Error("Empty box reported consistent")
	}

	sb := NewShoebox(0, [6]int{0, 2, 0, 2, 0, 1})
	sb.Data = sb.Data[:3]
	if sb.IsConsistent() {
		t.Error("Truncated data reported consistent")
	}
}

// TestCountMaskCode verifies bit-field counting semantics
func TestCountMaskCode(t *testing.T) {
	sb := NewShoebox(0, [6]int{0, 2, 0, 2, 0, 1})
	sb.Mask[0] = Valid
	sb.Mask[1] = Valid | Background
	sb.Mask[2] = Valid | Foreground
	sb.Mask[3] = Background

	if got := sb.CountMaskCode(Valid); got != 3 {
		t.Errorf("CountMaskCode(Valid) = %d, want 3", got)
	}
	if got := sb.CountMaskCode(Background); got != 2 {
		t.Errorf("CountMaskCode(Background) = %d, want 2", got)
	}
	// A compound code requires every bit
	if got := sb.CountMaskCode(Valid | Background); got != 1 {
		t.Errorf("CountMaskCode(Valid|Background) = %d, want 1", got)
	}
}
