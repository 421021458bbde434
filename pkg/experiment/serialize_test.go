package experiment

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestSaveLoadRoundTrip verifies that a rotation experiment survives the
// YAML round trip, including the degree/radian conversion of the scan
func TestSaveLoadRoundTrip(t *testing.T) {
	exp := testRotationExperiment(t)

	// Give the crystal a non-trivial orientation so that path is covered
	cell := exp.Crystal.Cell()
	sg := exp.Crystal.SpaceGroup()
	s, c := math.Sin(math.Pi/6), math.Cos(math.Pi/6)
	rot := r3.NewMat([]float64{c, -s, 0, s, c, 0, 0, 0, 1})
	cryst, err := NewCrystal(cell, sg, rot)
	if err != nil {
		t.Fatalf("Failed to create oriented crystal: %v", err)
	}
	exp.Crystal = cryst

	dir, err := os.MkdirTemp("", "experiment-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "experiment.yaml")

	if err := Save(exp, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Beam
	if got := loaded.Beam.Wavelength(); got != 1.0 {
		t.Errorf("Wavelength = %g, want 1", got)
	}
	if d := loaded.Beam.Direction(); math.Abs(d.Z-1) > 1e-12 {
		t.Errorf("Beam direction = %v, want (0, 0, 1)", d)
	}

	// Goniometer and scan (degrees on disk, radians in memory)
	if a := loaded.Goniometer.Axis(); math.Abs(a.Y-1) > 1e-12 {
		t.Errorf("Goniometer axis = %v, want (0, 1, 0)", a)
	}
	if got := loaded.Scan.ImageRange(); got != [2]int{1, 180} {
		t.Errorf("Image range = %v, want [1, 180]", got)
	}
	start, width := loaded.Scan.Oscillation()
	if math.Abs(start) > 1e-12 {
		t.Errorf("Oscillation start = %g, want 0", start)
	}
	if math.Abs(width-0.1*math.Pi/180) > 1e-12 {
		t.Errorf("Oscillation width = %g, want %g", width, 0.1*math.Pi/180)
	}

	// Detector
	if loaded.Detector.NumPanels() != 1 {
		t.Fatalf("NumPanels = %d, want 1", loaded.Detector.NumPanels())
	}
	p := loaded.Detector.Panel(0)
	if p.Name() != "panel0" {
		t.Errorf("Panel name = %q, want %q", p.Name(), "panel0")
	}
	if got := p.PixelSize(); got != [2]float64{0.1, 0.1} {
		t.Errorf("Pixel size = %v, want [0.1, 0.1]", got)
	}
	if o := p.Origin(); math.Abs(o.X+50) > 1e-12 || math.Abs(o.Z-100) > 1e-12 {
		t.Errorf("Panel origin = %v, want (-50, -50, 100)", o)
	}

	// Crystal
	a, _, _, alpha, _, _ := loaded.Crystal.Cell().Parameters()
	if a != 10 || alpha != 90 {
		t.Errorf("Cell = (%g, ..., %g, ...), want (10, ..., 90, ...)", a, alpha)
	}
	if got := loaded.Crystal.SpaceGroup().Symbol(); got != "P1" {
		t.Errorf("Space group = %q, want P1", got)
	}
	u := loaded.Crystal.Orientation()
	if math.Abs(u.At(0, 0)-c) > 1e-12 || math.Abs(u.At(0, 1)+s) > 1e-12 {
		t.Errorf("Orientation[0] = (%g, %g), want (%g, %g)", u.At(0, 0), u.At(0, 1), c, -s)
	}
}

// TestSaveLoadStill verifies that a still experiment omits goniometer and
// scan on disk and loads back as a still
func TestSaveLoadStill(t *testing.T) {
	exp := testRotationExperiment(t)
	exp.Goniometer = nil
	exp.Scan = nil

	dir, err := os.MkdirTemp("", "experiment-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "still.yaml")

	if err := Save(exp, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The serialized file must not mention the absent models
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	text := string(data)
	for _, forbidden := range []string{"goniometer", "scan", "orientation"} {
		if containsLine(text, forbidden) {
			t.Errorf("Still experiment file contains %q section", forbidden)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.IsStill() {
		t.Error("Loaded still experiment not reported as still")
	}
}

// TestLoadErrors verifies missing files, bad YAML and inconsistent models
func TestLoadErrors(t *testing.T) {
	if _, err := Load("/nonexistent/experiment.yaml"); err == nil {
		t.Error("Expected error for missing file, got nil")
	}

	dir, err := os.MkdirTemp("", "experiment-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	// Unparseable YAML
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("beam: ["), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}

	// A scan without a goniometer is inconsistent
	inconsistent := filepath.Join(dir, "inconsistent.yaml")
	content := `beam:
  direction: [0, 0, 1]
  wavelength: 1.0
scan:
  imageRange: [1, 10]
  oscillationStartDeg: 0
  oscillationWidthDeg: 0.1
panels:
  - name: panel0
    fastAxis: [1, 0, 0]
    slowAxis: [0, 1, 0]
    origin: [-50, -50, 100]
    pixelSize: [0.1, 0.1]
    imageSize: [1000, 1000]
crystal:
  cell: [10, 10, 10, 90, 90, 90]
  spaceGroup: P1
`
	if err := os.WriteFile(inconsistent, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Load(inconsistent); err == nil {
		t.Error("Expected error for scan without goniometer, got nil")
	}

	// An unknown space group is rejected at load time
	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte(`beam:
  direction: [0, 0, 1]
  wavelength: 1.0
panels:
  - name: panel0
    fastAxis: [1, 0, 0]
    slowAxis: [0, 1, 0]
    origin: [-50, -50, 100]
    pixelSize: [0.1, 0.1]
    imageSize: [1000, 1000]
crystal:
  cell: [10, 10, 10, 90, 90, 90]
  spaceGroup: Q9
`), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := Load(unknown); err == nil {
		t.Error("Expected error for unknown space group, got nil")
	}
}

// containsLine reports whether any line of the text starts with the prefix
func containsLine(text, prefix string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return true
		}
	}
	return false
}
