package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// MinimumExtent is the floor applied to every box half-size. Measured
// objects are never reported thinner than this, which keeps degenerate
// (planar or linear) point sets from producing zero-volume boxes.
const MinimumExtent = 0.01 // meters

// Ordered list of box corner signs.
var boxCornerSigns = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// The 12 edges of a box, as pairs of corner indices (corners differing in
// exactly one coordinate).
var boxEdgeIndices = [12][2]int{
	{0, 1}, {0, 2}, {0, 4},
	{1, 3}, {1, 5},
	{2, 3}, {2, 6},
	{3, 7},
	{4, 5}, {4, 6},
	{5, 7},
	{6, 7},
}

// OrientedBoundingBox is a rectangular box with an arbitrary rotation. It is
// an immutable value type: every edit returns a new box and extents are
// clamped to MinimumExtent, so a box is always a valid, displayable volume.
type OrientedBoundingBox struct {
	Center   r3.Vector
	Extents  r3.Vector // half-sizes along the local axes, always >= MinimumExtent
	Rotation quat.Number
}

// NewOrientedBoundingBox builds a box from a center, half-sizes and
// rotation, clamping each half-size to MinimumExtent and normalizing the
// rotation.
func NewOrientedBoundingBox(center, extents r3.Vector, rotation quat.Number) OrientedBoundingBox {
	return OrientedBoundingBox{
		Center:   center,
		Extents:  clampExtents(extents),
		Rotation: Normalize(rotation),
	}
}

func clampExtents(e r3.Vector) r3.Vector {
	return r3.Vector{
		X: math.Max(e.X, MinimumExtent),
		Y: math.Max(e.Y, MinimumExtent),
		Z: math.Max(e.Z, MinimumExtent),
	}
}

// String returns a human readable summary of the box.
func (b OrientedBoundingBox) String() string {
	return fmt.Sprintf("Position: X:%.3f, Y:%.3f, Z:%.3f | Dims: X:%.3f, Y:%.3f, Z:%.3f",
		b.Center.X, b.Center.Y, b.Center.Z, 2*b.Extents.X, 2*b.Extents.Y, 2*b.Extents.Z)
}

// Axes returns the box's local X, Y and Z directions in world space.
func (b OrientedBoundingBox) Axes() [3]r3.Vector {
	return [3]r3.Vector{
		Rotate(b.Rotation, r3.Vector{X: 1}),
		Rotate(b.Rotation, r3.Vector{Y: 1}),
		Rotate(b.Rotation, r3.Vector{Z: 1}),
	}
}

// Corners returns the 8 world-space corners of the box, ordered to match
// boxEdgeIndices.
func (b OrientedBoundingBox) Corners() [8]r3.Vector {
	var corners [8]r3.Vector
	for i, s := range boxCornerSigns {
		local := r3.Vector{X: s.X * b.Extents.X, Y: s.Y * b.Extents.Y, Z: s.Z * b.Extents.Z}
		corners[i] = b.LocalToWorld(local)
	}
	return corners
}

// Edges returns the 12 edges of the box as world-space segment endpoints,
// for wireframe display.
func (b OrientedBoundingBox) Edges() [12][2]r3.Vector {
	corners := b.Corners()
	var edges [12][2]r3.Vector
	for i, e := range boxEdgeIndices {
		edges[i] = [2]r3.Vector{corners[e[0]], corners[e[1]]}
	}
	return edges
}

// WorldToLocal maps a world-space point into the box's local frame, where
// the box is axis-aligned and centered at the origin.
func (b OrientedBoundingBox) WorldToLocal(p r3.Vector) r3.Vector {
	return RotateInverse(b.Rotation, p.Sub(b.Center))
}

// LocalToWorld maps a box-local point back to world space.
func (b OrientedBoundingBox) LocalToWorld(p r3.Vector) r3.Vector {
	return Rotate(b.Rotation, p).Add(b.Center)
}

// Contains reports whether p lies inside the box, expanded by eps on every
// face.
func (b OrientedBoundingBox) Contains(p r3.Vector, eps float64) bool {
	l := b.WorldToLocal(p)
	return math.Abs(l.X) <= b.Extents.X+eps &&
		math.Abs(l.Y) <= b.Extents.Y+eps &&
		math.Abs(l.Z) <= b.Extents.Z+eps
}

// Volume returns the enclosed volume in cubic meters.
func (b OrientedBoundingBox) Volume() float64 {
	return 8 * b.Extents.X * b.Extents.Y * b.Extents.Z
}

// SurfaceArea returns the total face area in square meters.
func (b OrientedBoundingBox) SurfaceArea() float64 {
	x, y, z := 2*b.Extents.X, 2*b.Extents.Y, 2*b.Extents.Z
	return 2 * (x*y + y*z + z*x)
}

// Scale returns a copy of the box with each half-size multiplied by factor,
// clamped to MinimumExtent.
func (b OrientedBoundingBox) Scale(factor float64) OrientedBoundingBox {
	return NewOrientedBoundingBox(b.Center, b.Extents.Mul(factor), b.Rotation)
}

// WithExtents returns a copy of the box with the given half-sizes, clamped
// to MinimumExtent.
func (b OrientedBoundingBox) WithExtents(extents r3.Vector) OrientedBoundingBox {
	return NewOrientedBoundingBox(b.Center, extents, b.Rotation)
}

// WithCenter returns a copy of the box moved to the given center.
func (b OrientedBoundingBox) WithCenter(center r3.Vector) OrientedBoundingBox {
	return OrientedBoundingBox{Center: center, Extents: b.Extents, Rotation: b.Rotation}
}

// ExpandToFit returns the smallest box with this box's center and rotation
// whose extents cover every given point.
func (b OrientedBoundingBox) ExpandToFit(points []r3.Vector) OrientedBoundingBox {
	e := b.Extents
	for _, p := range points {
		l := b.WorldToLocal(p)
		e.X = math.Max(e.X, math.Abs(l.X))
		e.Y = math.Max(e.Y, math.Abs(l.Y))
		e.Z = math.Max(e.Z, math.Abs(l.Z))
	}
	return NewOrientedBoundingBox(b.Center, e, b.Rotation)
}
