package boundingbox

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"
)

// convexHull2D computes the convex hull of the given points with Andrew's
// monotone chain, returned in counter-clockwise order without the closing
// point. Collinear points on the hull boundary are dropped.
func convexHull2D(points []r2.Point) []r2.Point {
	if len(points) < 3 {
		return nil
	}
	pts := make([]r2.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	cross := func(o, a, b r2.Point) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]r2.Point, 0, 2*len(pts))
	// Lower hull.
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// Upper hull.
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	if len(hull) < 4 {
		return nil
	}
	return hull[:len(hull)-1]
}

// minAreaRectAngle finds the orientation (radians) of the minimum-area
// bounding rectangle of a convex hull. For each hull edge it measures the
// axis-aligned bounding box of the hull rotated to align with that edge and
// keeps the smallest area, the classic rotating-calipers result.
func minAreaRectAngle(hull []r2.Point) float64 {
	bestArea := math.Inf(1)
	bestAngle := 0.0
	for i := range hull {
		j := (i + 1) % len(hull)
		edge := hull[j].Sub(hull[i])
		if edge.Norm() < 1e-12 {
			continue
		}
		angle := math.Atan2(edge.Y, edge.X)
		cos, sin := math.Cos(-angle), math.Sin(-angle)
		minX, maxX := math.Inf(1), math.Inf(-1)
		minY, maxY := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			x := p.X*cos - p.Y*sin
			y := p.X*sin + p.Y*cos
			minX = math.Min(minX, x)
			maxX = math.Max(maxX, x)
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
		area := (maxX - minX) * (maxY - minY)
		if area < bestArea {
			bestArea = area
			bestAngle = angle
		}
	}
	return normalizeQuarterTurn(bestAngle)
}

// pca2DAngle returns the direction of maximum variance of the points,
// the robust fallback when the hull is degenerate or the point count low.
func pca2DAngle(points []r2.Point) float64 {
	if len(points) < 2 {
		return 0
	}
	var cx, cy float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(points))
	cx /= n
	cy /= n
	var xx, xy, yy float64
	for _, p := range points {
		dx, dy := p.X-cx, p.Y-cy
		xx += dx * dx
		xy += dx * dy
		yy += dy * dy
	}
	return normalizeQuarterTurn(0.5 * math.Atan2(2*xy, xx-yy))
}

// normalizeQuarterTurn maps an angle to (-45°, 45°]; a box orientation is
// only meaningful modulo 90°.
func normalizeQuarterTurn(angle float64) float64 {
	const quarter = math.Pi / 2
	a := math.Mod(angle, quarter)
	if a > quarter/2 {
		a -= quarter
	} else if a <= -quarter/2 {
		a += quarter
	}
	return a
}
