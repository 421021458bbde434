package prediction

import (
	"gonum.org/v1/gonum/spatial/r3"

	"xtalpredict/pkg/crystal"
)

// PredictionRow holds one predicted observation of a reflection.
type PredictionRow struct {
	// MillerIndex identifies the reflection.
	MillerIndex crystal.MillerIndex
	// Panel is the detector panel the ray strikes.
	Panel int
	// Entering reports whether the reciprocal vector enters the Ewald
	// sphere at the predicted angle.
	Entering bool
	// S1 is the diffracted beam vector.
	S1 r3.Vec
	// PositionPx is the predicted centroid in pixels and frames:
	// fast, slow, frame.
	PositionPx [3]float64
	// PositionMM is the predicted centroid in panel millimetres and
	// rotation angle: x, y, angle in radians.
	PositionMM [3]float64
}

// Table is a column-ordered collection of predictions.
type Table struct {
	miller   []crystal.MillerIndex
	panel    []int
	entering []bool
	s1       []r3.Vec
	px       [][3]float64
	mm       [][3]float64
}

// Len returns the number of predictions.
func (t *Table) Len() int {
	return len(t.miller)
}

// Row assembles the i-th prediction.
func (t *Table) Row(i int) PredictionRow {
	return PredictionRow{
		MillerIndex: t.miller[i],
		Panel:       t.panel[i],
		Entering:    t.entering[i],
		S1:          t.s1[i],
		PositionPx:  t.px[i],
		PositionMM:  t.mm[i],
	}
}

// MillerIndices returns the Miller index column.
func (t *Table) MillerIndices() []crystal.MillerIndex {
	return t.miller
}

// Panels returns the panel column.
func (t *Table) Panels() []int {
	return t.panel
}

// Entering returns the entering flag column.
func (t *Table) Entering() []bool {
	return t.entering
}

// S1 returns the diffracted beam vector column.
func (t *Table) S1() []r3.Vec {
	return t.s1
}

// PositionsPx returns the pixel position column.
func (t *Table) PositionsPx() [][3]float64 {
	return t.px
}

// PositionsMM returns the millimetre position column.
func (t *Table) PositionsMM() [][3]float64 {
	return t.mm
}

// TableBuilder accumulates predictions row by row.
type TableBuilder struct {
	t Table
}

// Append adds one prediction.
func (b *TableBuilder) Append(row PredictionRow) {
	b.t.miller = append(b.t.miller, row.MillerIndex)
	b.t.panel = append(b.t.panel, row.Panel)
	b.t.entering = append(b.t.entering, row.Entering)
	b.t.s1 = append(b.t.s1, row.S1)
	b.t.px = append(b.t.px, row.PositionPx)
	b.t.mm = append(b.t.mm, row.PositionMM)
}

// Concat appends every row of another builder in order.
func (b *TableBuilder) Concat(other *TableBuilder) {
	b.t.miller = append(b.t.miller, other.t.miller...)
	b.t.panel = append(b.t.panel, other.t.panel...)
	b.t.entering = append(b.t.entering, other.t.entering...)
	b.t.s1 = append(b.t.s1, other.t.s1...)
	b.t.px = append(b.t.px, other.t.px...)
	b.t.mm = append(b.t.mm, other.t.mm...)
}

// Len returns the number of rows accumulated so far.
func (b *TableBuilder) Len() int {
	return b.t.Len()
}

// Build returns the accumulated table and resets the builder.
func (b *TableBuilder) Build() *Table {
	t := b.t
	b.t = Table{}
	return &t
}
