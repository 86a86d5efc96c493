// Package alphashape reconstructs a surface and volume from a point cloud
// via the alpha complex of its Delaunay tetrahedralization.
package alphashape

import (
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/john-rocky/productmeasure/delaunay"
	"github.com/john-rocky/productmeasure/pointcloud"
	"github.com/john-rocky/productmeasure/spatialmath"
)

const (
	// Auto-selected alpha is this multiple of the mean nearest-neighbor
	// distance, clamped to [MinAlpha, MaxAlpha].
	alphaSpacingFactor = 2.5
	// MinAlpha is the smallest auto-selected alpha.
	MinAlpha = 0.005 // meters
	// MaxAlpha is the largest auto-selected alpha.
	MaxAlpha = 0.5 // meters
	// nnSampleLimit bounds the nearest-neighbor sampling for auto alpha.
	nnSampleLimit = 100
)

// Result is the outcome of an alpha-shape volume computation. A zero
// TriangleCount means the input was insufficient or fully degenerate.
type Result struct {
	Volume         float64 // cubic meters
	Surface        spatialmath.TriangleMesh
	Alpha          float64
	IsWatertight   bool
	ProcessingTime time.Duration
}

// Calculator computes alpha-shape volumes. It is stateless and safe for
// concurrent use.
type Calculator struct {
	logger golog.Logger
}

// NewCalculator returns an alpha-shape calculator.
func NewCalculator(logger golog.Logger) *Calculator {
	if logger == nil {
		logger = golog.Global()
	}
	return &Calculator{logger: logger}
}

// CalculateVolume reconstructs the alpha shape of the points and integrates
// its volume. alpha <= 0 selects the value automatically from point cloud
// density. Fewer than 4 points yields an empty result.
func (c *Calculator) CalculateVolume(points []r3.Vector, alpha float64) Result {
	start := time.Now()
	if alpha <= 0 {
		alpha = AutoAlpha(points)
	}
	result := Result{Alpha: alpha, Surface: spatialmath.TriangleMesh{Points: points}}
	if len(points) < 4 {
		result.ProcessingTime = time.Since(start)
		return result
	}

	tri := delaunay.Triangulate(points)
	if len(tri.Tetrahedra) == 0 {
		c.logger.Debug("triangulation empty, returning zero alpha-shape result")
		result.ProcessingTime = time.Since(start)
		return result
	}

	result.Surface.Triangles = c.surfaceTriangles(&tri, alpha)
	result.Surface.OrientOutward(spatialmath.Centroid(points))
	result.Volume = result.Surface.Volume()
	result.IsWatertight = result.Surface.IsWatertight()
	result.ProcessingTime = time.Since(start)
	c.logger.Debugf("alpha shape: alpha=%.4f, %d surface triangles, volume=%.6f m^3, watertight=%t",
		alpha, result.Surface.TriangleCount(), result.Volume, result.IsWatertight)
	return result
}

// surfaceTriangles extracts the boundary of the alpha complex: a
// tetrahedron joins the complex when its circumradius is at most alpha; a
// face of an excluded tetrahedron additionally joins when its own
// circumradius is at most alpha and the tetrahedron's remaining vertex lies
// outside the face's circumsphere. Boundary faces are those with odd
// multiplicity in the complex.
func (c *Calculator) surfaceTriangles(tri *delaunay.Triangulation, alpha float64) []spatialmath.Triangle {
	count := make(map[spatialmath.TriangleKey]int, len(tri.Tetrahedra)*2)
	rep := make(map[spatialmath.TriangleKey]spatialmath.Triangle, len(tri.Tetrahedra)*2)

	for _, t := range tri.Tetrahedra {
		if tri.Circumradius(t) <= alpha {
			for _, f := range t.Faces() {
				k := f.Key()
				count[k]++
				rep[k] = f
			}
			continue
		}
		for i, f := range t.Faces() {
			center, radius, ok := triangleCircumcircle(tri.Points, f)
			if !ok || radius > alpha {
				continue
			}
			opposite := tri.Points[t.Opposite(i)]
			if opposite.Sub(center).Norm() <= radius {
				continue
			}
			k := f.Key()
			count[k]++
			rep[k] = f
		}
	}

	var out []spatialmath.Triangle
	for k, n := range count {
		if n%2 == 1 {
			out = append(out, rep[k])
		}
	}
	return out
}

// AutoAlpha picks alpha from point density: a fixed multiple of the mean
// nearest-neighbor distance sampled over at most 100 points, clamped to
// [MinAlpha, MaxAlpha].
func AutoAlpha(points []r3.Vector) float64 {
	d := pointcloud.MeanNearestNeighborDistance(points, nnSampleLimit)
	alpha := d * alphaSpacingFactor
	return math.Min(math.Max(alpha, MinAlpha), MaxAlpha)
}

// triangleCircumcircle returns the center and radius of the circle through
// the triangle's vertices (in 3D); ok is false for a degenerate triangle.
func triangleCircumcircle(points []r3.Vector, t spatialmath.Triangle) (r3.Vector, float64, bool) {
	a, b, c := points[t.A], points[t.B], points[t.C]
	ab := b.Sub(a)
	ac := c.Sub(a)
	n := ab.Cross(ac)
	n2 := n.Norm2()
	if n2 < 1e-20 {
		return r3.Vector{}, 0, false
	}
	// Standard 3D circumcenter formula.
	offset := n.Cross(ab).Mul(ac.Norm2()).
		Add(ac.Cross(n).Mul(ab.Norm2())).
		Mul(1 / (2 * n2))
	center := a.Add(offset)
	return center, offset.Norm(), true
}
