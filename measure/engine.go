// Package measure ties the reconstruction pipeline together: it accumulates
// scan observations into a spatial index, fits oriented bounding boxes, and
// dispatches to one of the three volume algorithms by an accuracy/speed
// trade-off.
package measure

import (
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/john-rocky/productmeasure/alphashape"
	"github.com/john-rocky/productmeasure/ballpivot"
	"github.com/john-rocky/productmeasure/boundingbox"
	"github.com/john-rocky/productmeasure/pointcloud"
	"github.com/john-rocky/productmeasure/spatialmath"
	"github.com/john-rocky/productmeasure/voxelize"
)

// Method selects a volume reconstruction algorithm by its accuracy/speed
// trade-off.
type Method int

const (
	// MethodVoxel is the fastest and coarsest: grid occupancy with
	// interior fill.
	MethodVoxel Method = iota
	// MethodAlphaShape balances speed and fidelity via the Delaunay alpha
	// complex.
	MethodAlphaShape
	// MethodBallPivoting is the slowest and most faithful to the sampled
	// surface.
	MethodBallPivoting
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodVoxel:
		return "voxel"
	case MethodAlphaShape:
		return "alpha-shape"
	case MethodBallPivoting:
		return "ball-pivoting"
	default:
		return "unknown"
	}
}

// Estimate is the method-independent summary of one volume computation.
type Estimate struct {
	Method         Method
	Volume         float64 // cubic meters
	TriangleCount  int
	IsWatertight   bool
	ProcessingTime time.Duration
}

// Engine is the long-lived measurement session. It owns the one stateful
// component, the accumulating spatial index; all algorithm dispatches are
// pure functions over a snapshot of the accumulated points and may run
// concurrently.
type Engine struct {
	index     *pointcloud.SpatialIndex
	estimator *boundingbox.Estimator
	voxel     *voxelize.Calculator
	alpha     *alphashape.Calculator
	pivot     *ballpivot.MeshBuilder
	logger    golog.Logger
}

// NewEngine returns a measurement engine deduplicating observations at the
// given minimum point spacing (<= 0 selects the default).
func NewEngine(minPointSpacing float64, logger golog.Logger) *Engine {
	if logger == nil {
		logger = golog.Global()
	}
	if minPointSpacing <= 0 {
		minPointSpacing = pointcloud.DefaultMinPointSpacing
	}
	return &Engine{
		index:     pointcloud.NewSpatialIndex(minPointSpacing, logger),
		estimator: boundingbox.NewEstimator(logger),
		voxel:     voxelize.NewCalculator(logger),
		alpha:     alphashape.NewCalculator(logger),
		pivot:     ballpivot.NewMeshBuilder(logger),
		logger:    logger,
	}
}

// AddObservation merges one scan frame's points into the session, returning
// how many survived deduplication.
func (e *Engine) AddObservation(points []r3.Vector) int {
	return e.index.Insert(points)
}

// AddWeightedObservation downsamples confidence-weighted points to one
// representative per spacing cell, then merges them.
func (e *Engine) AddWeightedObservation(points []pointcloud.WeightedPoint, cellSize float64) int {
	return e.index.Insert(pointcloud.DownsampleWeighted(points, cellSize))
}

// PointCount returns the number of consolidated points so far.
func (e *Engine) PointCount() int {
	return e.index.Size()
}

// Points returns a snapshot of the consolidated points.
func (e *Engine) Points() []r3.Vector {
	return e.index.Points()
}

// Reset discards all accumulated observations.
func (e *Engine) Reset() {
	e.index.Reset()
}

// BoundingBox fits an oriented bounding box to the accumulated points, or
// nil when too few have been observed.
func (e *Engine) BoundingBox(
	policy boundingbox.OrientationPolicy,
	planes []boundingbox.ReferencePlane,
) *spatialmath.OrientedBoundingBox {
	return e.estimator.Estimate(e.index.Points(), policy, planes)
}

// Measure runs the selected volume algorithm over a snapshot of the
// accumulated points at its default parameters.
func (e *Engine) Measure(method Method) (Estimate, error) {
	points := e.index.Points()
	switch method {
	case MethodVoxel:
		r := e.voxel.CalculateVolume(points, 0)
		return Estimate{
			Method:         method,
			Volume:         r.Volume,
			IsWatertight:   r.IsWatertight,
			ProcessingTime: r.ProcessingTime,
		}, nil
	case MethodAlphaShape:
		r := e.alpha.CalculateVolume(points, 0)
		return Estimate{
			Method:         method,
			Volume:         r.Volume,
			TriangleCount:  r.Surface.TriangleCount(),
			IsWatertight:   r.IsWatertight,
			ProcessingTime: r.ProcessingTime,
		}, nil
	case MethodBallPivoting:
		r := e.pivot.BuildMesh(points, nil, 0)
		return Estimate{
			Method:         method,
			Volume:         r.Volume,
			TriangleCount:  r.Surface.TriangleCount(),
			IsWatertight:   r.IsWatertight,
			ProcessingTime: r.ProcessingTime,
		}, nil
	default:
		return Estimate{}, errors.Errorf("unknown measurement method %d", method)
	}
}

// MeasureAll runs all three algorithms concurrently over the same snapshot
// and returns their estimates keyed by method.
func (e *Engine) MeasureAll() (map[Method]Estimate, error) {
	methods := []Method{MethodVoxel, MethodAlphaShape, MethodBallPivoting}
	estimates := make([]Estimate, len(methods))
	var group errgroup.Group
	for i, m := range methods {
		i, m := i, m
		group.Go(func() error {
			est, err := e.Measure(m)
			if err != nil {
				return err
			}
			estimates[i] = est
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	out := make(map[Method]Estimate, len(methods))
	for i, m := range methods {
		out[m] = estimates[i]
	}
	return out, nil
}

// MeasureAsync runs one measurement on a background goroutine and delivers
// the result to done. The caller decides when and whether to consume it;
// abandoning the channel abandons the result, not the computation.
func (e *Engine) MeasureAsync(method Method, done chan<- Estimate) {
	goutils.PanicCapturingGo(func() {
		est, err := e.Measure(method)
		if err != nil {
			e.logger.Errorw("background measurement failed", "method", method.String(), "error", err)
			return
		}
		done <- est
	})
}
