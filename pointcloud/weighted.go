package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// WeightedPoint is a world-space point with a confidence weight in [0,1],
// as reported by a depth sensor's confidence map.
type WeightedPoint struct {
	P      r3.Vector
	Weight float64
}

// DownsampleWeighted collapses weighted points into one representative per
// cubic cell of the given size: the confidence-weighted centroid of the
// cell's members. Zero- and negative-weight points are ignored; a cell whose
// total weight is zero contributes nothing.
func DownsampleWeighted(points []WeightedPoint, cellSize float64) []r3.Vector {
	if len(points) == 0 || cellSize <= 0 {
		return nil
	}
	type accum struct {
		sum    r3.Vector
		weight float64
	}
	inv := 1 / cellSize
	cells := make(map[[3]int64]*accum, len(points)/4)
	for _, wp := range points {
		if wp.Weight <= 0 {
			continue
		}
		key := [3]int64{
			int64(math.Floor(wp.P.X * inv)),
			int64(math.Floor(wp.P.Y * inv)),
			int64(math.Floor(wp.P.Z * inv)),
		}
		a, ok := cells[key]
		if !ok {
			a = &accum{}
			cells[key] = a
		}
		a.sum = a.sum.Add(wp.P.Mul(wp.Weight))
		a.weight += wp.Weight
	}
	out := make([]r3.Vector, 0, len(cells))
	for _, a := range cells {
		out = append(out, a.sum.Mul(1/a.weight))
	}
	return out
}
