// Package boundingbox fits minimum-enclosing oriented bounding boxes to
// point clouds under two orientation policies.
package boundingbox

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/num/quat"

	"github.com/john-rocky/productmeasure/spatialmath"
)

// OrientationPolicy selects how the box's axes are chosen.
type OrientationPolicy int

const (
	// PolicyAxisLocked keeps the box's Z axis on world-up and finds the
	// horizontal orientation from the points' 2D convex hull. This is the
	// right choice for objects resting on a surface.
	PolicyAxisLocked OrientationPolicy = iota
	// PolicyFree orients the box by full 3D PCA of the points.
	PolicyFree
)

// ReferencePlane describes a vertical structural surface near the object
// (a wall, a shelf side) that can be used to correct orientation noise.
type ReferencePlane struct {
	Position r3.Vector
	Normal   r3.Vector
	Area     float64
}

const (
	// minPoints below which no box is estimated.
	minPoints = 4
	// hullMinPoints below which the 2D hull is skipped for PCA.
	hullMinPoints = 20
	// trimFraction of extreme values discarded per axis end when computing
	// extents.
	trimFraction = 0.01
	// refinementMargin around the current box when discarding outliers.
	refinementMargin = 0.015 // meters
	// maxRefinementRounds bounds the axis-locked refinement loop.
	maxRefinementRounds = 3
	// convergenceAngle below which refinement stops early.
	convergenceAngle = 0.1 * math.Pi / 180
	// planeSnapTolerance is how far a reference plane's orientation may be
	// from the candidate orientation (modulo 90°) and still snap it.
	planeSnapTolerance = 10 * math.Pi / 180
)

var worldUp = r3.Vector{Z: 1}

// Estimator fits oriented bounding boxes to point sets. It is stateless and
// safe for concurrent use.
type Estimator struct {
	logger golog.Logger
}

// NewEstimator returns a box estimator logging to the given logger.
func NewEstimator(logger golog.Logger) *Estimator {
	if logger == nil {
		logger = golog.Global()
	}
	return &Estimator{logger: logger}
}

// Estimate fits an oriented bounding box to the points under the given
// policy. Reference planes, if any, are only consulted by the axis-locked
// policy. Returns nil for fewer than 4 points; degenerate inputs otherwise
// degrade to a box of minimum extents rather than failing.
func (e *Estimator) Estimate(
	points []r3.Vector,
	policy OrientationPolicy,
	planes []ReferencePlane,
) *spatialmath.OrientedBoundingBox {
	if len(points) < minPoints {
		return nil
	}
	if policy == PolicyFree {
		box := e.estimateFree(points)
		return &box
	}
	box := e.estimateAxisLocked(points, planes)
	return &box
}

func (e *Estimator) estimateFree(points []r3.Vector) spatialmath.OrientedBoundingBox {
	axes, ok := spatialmath.PrincipalAxes(points)
	if !ok {
		e.logger.Debug("PCA failed, falling back to world-aligned box")
		axes = [3]r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
	}
	rotation := spatialmath.QuatFromAxes(axes[0], axes[1], axes[2])
	return fitBox(points, rotation)
}

func (e *Estimator) estimateAxisLocked(
	points []r3.Vector,
	planes []ReferencePlane,
) spatialmath.OrientedBoundingBox {
	angle := e.snapToReferencePlanes(horizontalOrientation(points), planes)
	box := fitBox(points, spatialmath.QuatFromAxisAngle(worldUp, angle))

	// Refinement: re-derive the orientation from inlier points only, but
	// always recompute extents from the full set so the box cannot shrink
	// away from real geometry round over round.
	for round := 0; round < maxRefinementRounds; round++ {
		var kept []r3.Vector
		for _, p := range points {
			if box.Contains(p, refinementMargin) {
				kept = append(kept, p)
			}
		}
		if len(kept) < hullMinPoints || len(kept)*2 < len(points) {
			e.logger.Debugf("refinement stopped at round %d, only %d/%d points retained",
				round, len(kept), len(points))
			break
		}
		newAngle := e.snapToReferencePlanes(horizontalOrientation(kept), planes)
		box = fitBox(points, spatialmath.QuatFromAxisAngle(worldUp, newAngle))
		if math.Abs(normalizeQuarterTurn(newAngle-angle)) < convergenceAngle {
			break
		}
		angle = newAngle
	}
	return box
}

// horizontalOrientation projects the points onto the horizontal plane and
// returns the minimum-area rectangle orientation of their convex hull, or
// the 2D principal axis for small or degenerate sets.
func horizontalOrientation(points []r3.Vector) float64 {
	flat := make([]r2.Point, len(points))
	for i, p := range points {
		flat[i] = r2.Point{X: p.X, Y: p.Y}
	}
	if len(flat) < hullMinPoints {
		return pca2DAngle(flat)
	}
	hull := convexHull2D(flat)
	if hull == nil {
		return pca2DAngle(flat)
	}
	return minAreaRectAngle(hull)
}

// snapToReferencePlanes aligns the candidate orientation with the largest
// qualifying vertical reference plane. A plane qualifies when its in-plane
// horizontal direction is within the snap tolerance of the candidate,
// considering 0°/90°/180°/270° equivalences.
func (e *Estimator) snapToReferencePlanes(angle float64, planes []ReferencePlane) float64 {
	bestArea := 0.0
	snapped := angle
	for _, plane := range planes {
		horiz := r2.Point{X: plane.Normal.X, Y: plane.Normal.Y}
		if horiz.Norm() < 0.5 {
			continue // not a vertical surface
		}
		planeAngle := math.Atan2(horiz.Y, horiz.X)
		diff := normalizeQuarterTurn(angle - planeAngle)
		if math.Abs(diff) <= planeSnapTolerance && plane.Area > bestArea {
			bestArea = plane.Area
			snapped = angle - diff
			e.logger.Debugf("snapping orientation by %.2f° to reference plane of area %.3f",
				diff*180/math.Pi, plane.Area)
		}
	}
	return snapped
}

// fitBox computes box extents for a fixed rotation by rotating all points
// into box-local space and taking the 1%-trimmed range per axis. The trim
// ignores a small fraction of extreme noise without the instability of
// mean/std filtering.
func fitBox(points []r3.Vector, rotation quat.Number) spatialmath.OrientedBoundingBox {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		l := spatialmath.RotateInverse(rotation, p)
		xs[i], ys[i], zs[i] = l.X, l.Y, l.Z
	}
	loX, hiX := trimmedRange(xs)
	loY, hiY := trimmedRange(ys)
	loZ, hiZ := trimmedRange(zs)

	localCenter := r3.Vector{X: (loX + hiX) / 2, Y: (loY + hiY) / 2, Z: (loZ + hiZ) / 2}
	extents := r3.Vector{X: (hiX - loX) / 2, Y: (hiY - loY) / 2, Z: (hiZ - loZ) / 2}
	center := spatialmath.Rotate(rotation, localCenter)
	return spatialmath.NewOrientedBoundingBox(center, extents, rotation)
}

func trimmedRange(values []float64) (float64, float64) {
	data := stats.Float64Data(values)
	lo, errLo := stats.Percentile(data, 100*trimFraction)
	hi, errHi := stats.Percentile(data, 100*(1-trimFraction))
	if errLo != nil || errHi != nil {
		lo, _ = stats.Min(data)
		hi, _ = stats.Max(data)
	}
	return lo, hi
}
