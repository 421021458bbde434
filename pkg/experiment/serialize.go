package experiment

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"xtalpredict/pkg/crystal"
)

// experimentFile is the on-disk YAML form of an Experiment. Vectors are
// laboratory-frame triples, lengths are millimetres or angstroms as in the
// runtime model, and angles are stored in degrees as the field names say.
type experimentFile struct {
	Beam       beamFile        `yaml:"beam"`
	Goniometer *goniometerFile `yaml:"goniometer,omitempty"`
	Scan       *scanFile       `yaml:"scan,omitempty"`
	Panels     []panelFile     `yaml:"panels"`
	Crystal    crystalFile     `yaml:"crystal"`
}

type beamFile struct {
	// Direction is the beam propagation direction (any length)
	Direction [3]float64 `yaml:"direction"`

	// Wavelength is in angstroms
	Wavelength float64 `yaml:"wavelength"`
}

type goniometerFile struct {
	// Axis is the rotation axis in the laboratory frame
	Axis [3]float64 `yaml:"axis"`
}

type scanFile struct {
	// ImageRange is 1-based and inclusive
	ImageRange [2]int `yaml:"imageRange"`

	// OscillationStartDeg is the rotation angle at the start of the first
	// image, in degrees
	OscillationStartDeg float64 `yaml:"oscillationStartDeg"`

	// OscillationWidthDeg is the rotation covered by one image, in degrees
	OscillationWidthDeg float64 `yaml:"oscillationWidthDeg"`
}

type panelFile struct {
	Name string `yaml:"name"`

	// FastAxis and SlowAxis span the panel plane
	FastAxis [3]float64 `yaml:"fastAxis"`
	SlowAxis [3]float64 `yaml:"slowAxis"`

	// Origin is the laboratory position of the (0,0) corner in mm
	Origin [3]float64 `yaml:"origin"`

	// PixelSize is the pitch along fast and slow in mm
	PixelSize [2]float64 `yaml:"pixelSize"`

	// ImageSize is the extent in pixels along fast and slow
	ImageSize [2]int `yaml:"imageSize"`
}

type crystalFile struct {
	// Cell is a, b, c in angstroms then alpha, beta, gamma in degrees
	Cell [6]float64 `yaml:"cell"`

	// SpaceGroup is a Hermann-Mauguin symbol, spaces allowed
	SpaceGroup string `yaml:"spaceGroup"`

	// Orientation is the row-major rotation matrix U; identity when omitted
	Orientation *[9]float64 `yaml:"orientation,omitempty"`
}

// Load reads an experiment from a YAML file and builds the validated
// runtime models.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading experiment file: %w", err)
	}

	var file experimentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing experiment file: %w", err)
	}

	exp := &Experiment{}

	exp.Beam, err = NewBeam(vecFromArray(file.Beam.Direction), file.Beam.Wavelength)
	if err != nil {
		return nil, fmt.Errorf("invalid beam: %w", err)
	}

	if file.Goniometer != nil {
		exp.Goniometer, err = NewGoniometer(vecFromArray(file.Goniometer.Axis))
		if err != nil {
			return nil, fmt.Errorf("invalid goniometer: %w", err)
		}
	}

	if file.Scan != nil {
		exp.Scan, err = NewScan(
			file.Scan.ImageRange,
			file.Scan.OscillationStartDeg*math.Pi/180,
			file.Scan.OscillationWidthDeg*math.Pi/180,
		)
		if err != nil {
			return nil, fmt.Errorf("invalid scan: %w", err)
		}
	}

	panels := make([]*Panel, 0, len(file.Panels))
	for _, pf := range file.Panels {
		p, err := NewPanel(
			pf.Name,
			vecFromArray(pf.FastAxis),
			vecFromArray(pf.SlowAxis),
			vecFromArray(pf.Origin),
			pf.PixelSize,
			pf.ImageSize,
		)
		if err != nil {
			return nil, fmt.Errorf("invalid panel: %w", err)
		}
		panels = append(panels, p)
	}
	exp.Detector, err = NewDetector(panels...)
	if err != nil {
		return nil, fmt.Errorf("invalid detector: %w", err)
	}

	cell, err := crystal.NewUnitCell(
		file.Crystal.Cell[0], file.Crystal.Cell[1], file.Crystal.Cell[2],
		file.Crystal.Cell[3], file.Crystal.Cell[4], file.Crystal.Cell[5],
	)
	if err != nil {
		return nil, fmt.Errorf("invalid unit cell: %w", err)
	}
	sg, err := crystal.NewSpaceGroup(file.Crystal.SpaceGroup)
	if err != nil {
		return nil, fmt.Errorf("invalid space group: %w", err)
	}
	var orientation *r3.Mat
	if file.Crystal.Orientation != nil {
		orientation = r3.NewMat(file.Crystal.Orientation[:])
	}
	exp.Crystal, err = NewCrystal(cell, sg, orientation)
	if err != nil {
		return nil, fmt.Errorf("invalid crystal: %w", err)
	}

	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	return exp, nil
}

// Save writes an experiment to a YAML file, creating the directory if
// needed.
func Save(exp *Experiment, path string) error {
	if err := exp.Validate(); err != nil {
		return fmt.Errorf("invalid experiment: %w", err)
	}

	var file experimentFile

	file.Beam.Direction = arrayFromVec(exp.Beam.Direction())
	file.Beam.Wavelength = exp.Beam.Wavelength()

	if exp.Goniometer != nil {
		file.Goniometer = &goniometerFile{Axis: arrayFromVec(exp.Goniometer.Axis())}
	}

	if exp.Scan != nil {
		start, width := exp.Scan.Oscillation()
		file.Scan = &scanFile{
			ImageRange:          exp.Scan.ImageRange(),
			OscillationStartDeg: start * 180 / math.Pi,
			OscillationWidthDeg: width * 180 / math.Pi,
		}
	}

	for _, p := range exp.Detector.Panels() {
		file.Panels = append(file.Panels, panelFile{
			Name:      p.Name(),
			FastAxis:  arrayFromVec(p.FastAxis()),
			SlowAxis:  arrayFromVec(p.SlowAxis()),
			Origin:    arrayFromVec(p.Origin()),
			PixelSize: p.PixelSize(),
			ImageSize: p.ImageSize(),
		})
	}

	a, b, c, alpha, beta, gamma := exp.Crystal.Cell().Parameters()
	file.Crystal.Cell = [6]float64{a, b, c, alpha, beta, gamma}
	file.Crystal.SpaceGroup = exp.Crystal.SpaceGroup().Symbol()
	u := exp.Crystal.Orientation()
	if !isIdentityMat(u) {
		var flat [9]float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				flat[3*i+j] = u.At(i, j)
			}
		}
		file.Crystal.Orientation = &flat
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating experiment directory: %w", err)
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("error marshaling experiment: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing experiment file: %w", err)
	}
	return nil
}

func vecFromArray(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

func arrayFromVec(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func isIdentityMat(m *r3.Mat) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if m.At(i, j) != want {
				return false
			}
		}
	}
	return true
}
