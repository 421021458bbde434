// Package visualization renders predicted diffraction patterns as grayscale
// images for visual inspection, one image per frame of a scan.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"xtalpredict/pkg/experiment"
	"xtalpredict/pkg/prediction"
)

// Default spot geometry: the disc radius in pixels and the distance in
// frames over which a spot fades to black on neighbouring images.
const (
	DefaultSpotRadius = 3.0
	DefaultFadeWidth  = 2.0
)

// Renderer draws the reflections of a prediction table onto per-panel
// images. Each reflection appears as a disc at its predicted pixel position,
// at full brightness on the image its frame coordinate falls on and dimming
// linearly with distance on nearby images.
type Renderer struct {
	// SpotRadius is the disc radius in pixels.
	SpotRadius float64

	// FadeWidth is the distance in frames over which a spot recorded on
	// another image fades to black.
	FadeWidth float64

	table    *prediction.Table
	detector *experiment.Detector
}

// NewRenderer creates a renderer for a prediction table and the detector it
// was predicted on.
func NewRenderer(table *prediction.Table, detector *experiment.Detector) (*Renderer, error) {
	if table == nil {
		return nil, fmt.Errorf("prediction table is required")
	}
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	return &Renderer{
		SpotRadius: DefaultSpotRadius,
		FadeWidth:  DefaultFadeWidth,
		table:      table,
		detector:   detector,
	}, nil
}

// RenderFrame draws the reflections of one panel as seen on one image. The
// frame argument is the zero-based frame coordinate, so image i of a scan
// starting at image 1 is frame i-1. Overlapping spots keep the brighter
// value.
func (r *Renderer) RenderFrame(panel, frame int) (image.Image, error) {
	if panel < 0 || panel >= r.detector.NumPanels() {
		return nil, fmt.Errorf("panel %d out of range, detector has %d panels",
			panel, r.detector.NumPanels())
	}

	size := r.detector.Panel(panel).ImageSize()
	img := image.NewGray16(image.Rect(0, 0, size[0], size[1]))

	for i := 0; i < r.table.Len(); i++ {
		row := r.table.Row(i)
		if row.Panel != panel {
			continue
		}
		value := r.brightness(row.PositionPx[2], frame)
		if value <= 0 {
			continue
		}
		r.drawSpot(img, row.PositionPx[0], row.PositionPx[1], value)
	}

	return img, nil
}

// brightness maps the distance between a reflection's frame coordinate and
// the interval [frame, frame+1) covered by an image to a value in [0, 1].
func (r *Renderer) brightness(rowFrame float64, frame int) float64 {
	var dist float64
	switch {
	case rowFrame < float64(frame):
		dist = float64(frame) - rowFrame
	case rowFrame >= float64(frame+1):
		dist = rowFrame - float64(frame+1)
	}
	if dist == 0 {
		return 1
	}
	if r.FadeWidth <= 0 {
		return 0
	}
	return 1 - dist/r.FadeWidth
}

// drawSpot fills a disc around a fractional pixel position, keeping the
// brighter value where discs overlap. Pixel (x, y) is treated as covering
// the unit square with centre (x+0.5, y+0.5).
func (r *Renderer) drawSpot(img *image.Gray16, cx, cy, value float64) {
	radius := r.SpotRadius
	if radius < 0 {
		radius = 0
	}
	gray := uint16(math.Max(0, math.Min(65535, value*65535)))
	bounds := img.Bounds()

	for y := int(math.Floor(cy - radius)); y <= int(math.Ceil(cy+radius)); y++ {
		for x := int(math.Floor(cx - radius)); x <= int(math.Ceil(cx+radius)); x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			if img.Gray16At(x, y).Y < gray {
				img.SetGray16(x, y, color.Gray16{Y: gray})
			}
		}
	}
}

// SavePNG writes a rendered image to a PNG file.
func (r *Renderer) SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveFrameSequence renders one panel over an inclusive frame range and
// saves one PNG per frame into the output directory.
func (r *Renderer) SaveFrameSequence(panel int, frameRange [2]int, outputDir string) error {
	if panel < 0 || panel >= r.detector.NumPanels() {
		return fmt.Errorf("panel %d out of range, detector has %d panels",
			panel, r.detector.NumPanels())
	}
	if frameRange[1] < frameRange[0] {
		return fmt.Errorf("frame range [%d, %d] is empty", frameRange[0], frameRange[1])
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	name := r.detector.Panel(panel).Name()
	for frame := frameRange[0]; frame <= frameRange[1]; frame++ {
		img, err := r.RenderFrame(panel, frame)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("spots_%s_%04d.png", name, frame))
		if err := r.SavePNG(img, filename); err != nil {
			return err
		}
	}

	return nil
}
