// Package prediction computes where and when the reflections of a crystal
// diffract during an experiment. A RayPredictor solves the diffraction
// condition for rotation scans and a StillsRayPredictor for still
// exposures; an IndexGenerator enumerates the Miller indices worth
// testing; a Predictor drives either predictor over an index list,
// intersects the rays with the detector and collects one table row per
// predicted observation.
package prediction

import (
	"fmt"
	"runtime"

	"gonum.org/v1/gonum/spatial/r3"

	"xtalpredict/pkg/crystal"
	"xtalpredict/pkg/experiment"
)

// ProgressCallback receives progress during a prediction run as the number
// of reflections processed so far and the total to process.
type ProgressCallback func(completed, total int)

// Option configures a Predictor.
type Option func(*Predictor)

// WithNumWorkers sets the number of goroutines that predict reflections.
// Values below 1 select one worker per CPU. The default is a single
// worker; the output table is identical for any worker count.
func WithNumWorkers(n int) Option {
	return func(p *Predictor) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		p.numWorkers = n
	}
}

// WithProgress registers a callback invoked as prediction advances.
func WithProgress(cb ProgressCallback) Option {
	return func(p *Predictor) {
		p.progress = cb
	}
}

// Predictor drives reflection prediction over a whole experiment: rays
// from the crystal and beam models, hit positions from the detector model
// and frame coordinates from the scan model.
type Predictor struct {
	exp        *experiment.Experiment
	numWorkers int
	progress   ProgressCallback
}

// NewPredictor creates a predictor for a complete experiment.
func NewPredictor(exp *experiment.Experiment, opts ...Option) (*Predictor, error) {
	if exp == nil {
		return nil, fmt.Errorf("experiment is required")
	}
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	p := &Predictor{exp: exp, numWorkers: 1}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// AllObservable predicts every reflection that can diffract during the
// scan with a d-spacing of dmin or larger. Rows follow ascending Miller
// index order, each reflection contributing one row per predicted ray and
// matching frame.
func (p *Predictor) AllObservable(dmin float64) (*Table, error) {
	if p.exp.IsStill() {
		return nil, fmt.Errorf("still experiment has no observable-index enumeration; use Observed with a known index list")
	}
	gen, err := NewIndexGenerator(p.exp.Crystal.Cell(), p.exp.Crystal.SpaceGroup(), dmin)
	if err != nil {
		return nil, err
	}
	return p.predictIndices(gen.All())
}

// Observed predicts the given reflections in the given order, valid for
// rotation and still experiments alike. Indices that do not diffract or
// whose rays miss the detector contribute no rows.
func (p *Predictor) Observed(indices []crystal.MillerIndex) (*Table, error) {
	return p.predictIndices(indices)
}

func (p *Predictor) predictIndices(indices []crystal.MillerIndex) (*Table, error) {
	workers := p.numWorkers
	if workers > len(indices) {
		workers = len(indices)
	}
	if workers <= 1 {
		return p.predictSequential(indices)
	}
	return p.predictParallel(indices, workers)
}

func (p *Predictor) predictSequential(indices []crystal.MillerIndex) (*Table, error) {
	source, err := p.newRaySource()
	if err != nil {
		return nil, err
	}
	var builder TableBuilder
	for i, h := range indices {
		p.appendPredictions(&builder, source, h)
		if p.progress != nil {
			p.progress(i+1, len(indices))
		}
	}
	return builder.Build(), nil
}

// predictParallel fans contiguous index chunks out to worker goroutines
// with private builders and merges the results in chunk order, so the row
// order is identical to the sequential path.
func (p *Predictor) predictParallel(indices []crystal.MillerIndex, workers int) (*Table, error) {
	type chunkResult struct {
		chunkIdx int
		builder  *TableBuilder
		count    int
		err      error
	}

	perChunk := (len(indices) + workers - 1) / workers
	resultChan := make(chan chunkResult, workers)

	numChunks := 0
	for start := 0; start < len(indices); start += perChunk {
		end := start + perChunk
		if end > len(indices) {
			end = len(indices)
		}
		go func(chunkIdx int, chunk []crystal.MillerIndex) {
			source, err := p.newRaySource()
			if err != nil {
				resultChan <- chunkResult{chunkIdx: chunkIdx, err: err}
				return
			}
			builder := &TableBuilder{}
			for _, h := range chunk {
				p.appendPredictions(builder, source, h)
			}
			resultChan <- chunkResult{chunkIdx: chunkIdx, builder: builder, count: len(chunk)}
		}(numChunks, indices[start:end])
		numChunks++
	}

	builders := make([]*TableBuilder, numChunks)
	completed := 0
	var firstErr error
	for i := 0; i < numChunks; i++ {
		res := <-resultChan
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		builders[res.chunkIdx] = res.builder
		completed += res.count
		if p.progress != nil {
			p.progress(completed, len(indices))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	var merged TableBuilder
	for _, b := range builders {
		merged.Concat(b)
	}
	return merged.Build(), nil
}

// raySource yields the diffracted rays of one reflection. Each worker
// holds a private source because the still predictor records the swing
// angle of its last accepted ray.
type raySource interface {
	rays(h crystal.MillerIndex) []Ray
}

type scanRaySource struct {
	predictor *RayPredictor
	ub        *r3.Mat
}

func (s *scanRaySource) rays(h crystal.MillerIndex) []Ray {
	return s.predictor.Predict(h, s.ub)
}

type stillRaySource struct {
	predictor *StillsRayPredictor
	ub        *r3.Mat
}

func (s *stillRaySource) rays(h crystal.MillerIndex) []Ray {
	return s.predictor.Predict(h, s.ub)
}

func (p *Predictor) newRaySource() (raySource, error) {
	ub := p.exp.Crystal.UB()
	if p.exp.IsStill() {
		sp, err := NewStillsRayPredictor(p.exp.Beam.S0())
		if err != nil {
			return nil, err
		}
		return &stillRaySource{predictor: sp, ub: ub}, nil
	}
	start, end := p.exp.Scan.OscillationRange()
	rp, err := NewRayPredictor(p.exp.Beam.S0(), p.exp.Goniometer.Axis(), [2]float64{start, end})
	if err != nil {
		return nil, err
	}
	return &scanRaySource{predictor: rp, ub: ub}, nil
}

// appendPredictions turns the rays of one reflection into table rows. A
// rotation ray lands on every frame recording its angle; rays that miss
// every panel, and angles outside the scan, contribute nothing.
func (p *Predictor) appendPredictions(builder *TableBuilder, source raySource, h crystal.MillerIndex) {
	for _, ray := range source.rays(h) {
		panel, x, y, ok := p.exp.Detector.RayIntersection(ray.S1)
		if !ok {
			continue
		}
		px, py := p.exp.Detector.Panel(panel).MillimeterToPixel(x, y)
		if p.exp.IsStill() {
			builder.Append(PredictionRow{
				MillerIndex: h,
				Panel:       panel,
				Entering:    ray.Entering,
				S1:          ray.S1,
				PositionPx:  [3]float64{px, py, 0},
				PositionMM:  [3]float64{x, y, ray.Angle},
			})
			continue
		}
		for _, frame := range p.exp.Scan.FramesForAngle(ray.Angle) {
			builder.Append(PredictionRow{
				MillerIndex: h,
				Panel:       panel,
				Entering:    ray.Entering,
				S1:          ray.S1,
				PositionPx:  [3]float64{px, py, frame},
				PositionMM:  [3]float64{x, y, ray.Angle},
			})
		}
	}
}
