package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
)

// MeanNearestNeighborDistance estimates point cloud density as the mean
// distance from a point to its nearest neighbor, sampled over at most
// maxSamples points. Returns 0 for fewer than 2 points. The reconstruction
// algorithms use this to auto-select their alpha / ball radius parameters.
func MeanNearestNeighborDistance(points []r3.Vector, maxSamples int) float64 {
	if len(points) < 2 {
		return 0
	}
	index := NewSpatialIndex(0, nil)
	index.Insert(points)

	// Ceiling division keeps the sample count at or below maxSamples.
	step := 1
	if maxSamples > 0 && len(points) > maxSamples {
		step = (len(points) + maxSamples - 1) / maxSamples
	}
	dists := make([]float64, 0, maxSamples)
	for i := 0; i < len(points); i += step {
		// Nearest neighbor excluding the point itself: ask for 2 and take
		// the farther one (the first is the query point at distance 0, or a
		// coincident duplicate).
		nn := index.KNearest(points[i], 2)
		if len(nn) < 2 {
			continue
		}
		dists = append(dists, nn[1].Sub(points[i]).Norm())
	}
	if len(dists) == 0 {
		return 0
	}
	mean, err := stats.Mean(stats.Float64Data(dists))
	if err != nil {
		return 0
	}
	return mean
}
