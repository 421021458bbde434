package experiment

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// parallelTolerance is the smallest |unit-ray . panel-normal| for which a
// plane intersection is still attempted. Rays closer to parallel miss.
const parallelTolerance = 1e-10

// Panel is one flat detector element: a rectangle in the laboratory frame
// spanned by orthogonal fast and slow unit axes from a corner origin.
// Millimetre coordinates run along fast then slow from the origin; pixel
// coordinates divide them by the pixel pitch.
type Panel struct {
	name      string
	fast      r3.Vec
	slow      r3.Vec
	origin    r3.Vec
	pixelSize [2]float64
	imageSize [2]int
}

// NewPanel creates a panel. The fast and slow axes may have any non-zero
// length and are normalized; they must be mutually orthogonal. The origin is
// the laboratory position of the (0, 0) corner in millimetres. Pixel sizes
// are in millimetres, image sizes in pixels along fast and slow.
func NewPanel(name string, fast, slow, origin r3.Vec, pixelSize [2]float64, imageSize [2]int) (*Panel, error) {
	nf := r3.Norm(fast)
	ns := r3.Norm(slow)
	if nf == 0 || ns == 0 {
		return nil, fmt.Errorf("panel %s: fast and slow axes must be non-zero", name)
	}
	fast = r3.Scale(1/nf, fast)
	slow = r3.Scale(1/ns, slow)
	if dot := r3.Dot(fast, slow); dot > 1e-6 || dot < -1e-6 {
		return nil, fmt.Errorf("panel %s: fast and slow axes must be orthogonal, dot product %g", name, dot)
	}
	if pixelSize[0] <= 0 || pixelSize[1] <= 0 {
		return nil, fmt.Errorf("panel %s: pixel size must be positive, got %v", name, pixelSize)
	}
	if imageSize[0] <= 0 || imageSize[1] <= 0 {
		return nil, fmt.Errorf("panel %s: image size must be positive, got %v", name, imageSize)
	}
	return &Panel{
		name:      name,
		fast:      fast,
		slow:      slow,
		origin:    origin,
		pixelSize: pixelSize,
		imageSize: imageSize,
	}, nil
}

// Name returns the panel name.
func (p *Panel) Name() string {
	return p.name
}

// FastAxis returns the unit axis of the fast (first) coordinate.
func (p *Panel) FastAxis() r3.Vec {
	return p.fast
}

// SlowAxis returns the unit axis of the slow (second) coordinate.
func (p *Panel) SlowAxis() r3.Vec {
	return p.slow
}

// Origin returns the laboratory position of the panel corner in millimetres.
func (p *Panel) Origin() r3.Vec {
	return p.origin
}

// PixelSize returns the pixel pitch along fast and slow in millimetres.
func (p *Panel) PixelSize() [2]float64 {
	return p.pixelSize
}

// ImageSize returns the extent in pixels along fast and slow.
func (p *Panel) ImageSize() [2]int {
	return p.imageSize
}

// Normal returns the unit panel normal fast x slow.
func (p *Panel) Normal() r3.Vec {
	return r3.Unit(r3.Cross(p.fast, p.slow))
}

// RayIntersection intersects a diffracted ray from the crystal (at the lab
// origin) with the panel plane and returns the millimetre coordinates of the
// hit. ok is false when the ray is parallel to the panel, travels away from
// it, or strikes the plane outside the panel bounds. A miss is a geometric
// non-event, not an error.
func (p *Panel) RayIntersection(s1 r3.Vec) (x, y float64, ok bool) {
	dir := r3.Unit(s1)
	n := p.Normal()
	denom := r3.Dot(dir, n)
	if denom < parallelTolerance && denom > -parallelTolerance {
		return 0, 0, false
	}
	t := r3.Dot(p.origin, n) / denom
	if t <= 0 {
		return 0, 0, false
	}
	rel := r3.Sub(r3.Scale(t, dir), p.origin)
	x = r3.Dot(rel, p.fast)
	y = r3.Dot(rel, p.slow)
	if !p.IsCoordValidMM(x, y) {
		return 0, 0, false
	}
	return x, y, true
}

// IsCoordValidMM reports whether a millimetre coordinate lies on the panel.
func (p *Panel) IsCoordValidMM(x, y float64) bool {
	return x >= 0 && x <= float64(p.imageSize[0])*p.pixelSize[0] &&
		y >= 0 && y <= float64(p.imageSize[1])*p.pixelSize[1]
}

// MillimeterToPixel converts panel millimetre coordinates to fractional
// pixel coordinates.
func (p *Panel) MillimeterToPixel(x, y float64) (px, py float64) {
	return x / p.pixelSize[0], y / p.pixelSize[1]
}

// PixelToMillimeter converts fractional pixel coordinates to millimetres.
func (p *Panel) PixelToMillimeter(px, py float64) (x, y float64) {
	return px * p.pixelSize[0], py * p.pixelSize[1]
}

// LabCoordMM returns the laboratory position of a millimetre coordinate on
// the panel.
func (p *Panel) LabCoordMM(x, y float64) r3.Vec {
	return r3.Add(p.origin, r3.Add(r3.Scale(x, p.fast), r3.Scale(y, p.slow)))
}

// Detector is an ordered collection of panels. Panel order matters: a ray
// that strikes several panels is attributed to the first one.
type Detector struct {
	panels []*Panel
}

// NewDetector creates a detector from one or more panels with distinct
// names.
func NewDetector(panels ...*Panel) (*Detector, error) {
	if len(panels) == 0 {
		return nil, fmt.Errorf("detector needs at least one panel")
	}
	names := make(map[string]bool, len(panels))
	for _, p := range panels {
		if names[p.name] {
			return nil, fmt.Errorf("duplicate panel name %q", p.name)
		}
		names[p.name] = true
	}
	return &Detector{panels: panels}, nil
}

// NumPanels returns the number of panels.
func (d *Detector) NumPanels() int {
	return len(d.panels)
}

// Panel returns the panel at an index.
func (d *Detector) Panel(i int) *Panel {
	return d.panels[i]
}

// Panels returns the ordered panel list.
func (d *Detector) Panels() []*Panel {
	return d.panels
}

// RayIntersection finds the first panel whose bounded region the ray
// strikes, returning its index and the millimetre coordinates of the hit.
// ok is false when no panel is struck.
func (d *Detector) RayIntersection(s1 r3.Vec) (panel int, x, y float64, ok bool) {
	for i, p := range d.panels {
		if px, py, hit := p.RayIntersection(s1); hit {
			return i, px, py, true
		}
	}
	return 0, 0, 0, false
}
