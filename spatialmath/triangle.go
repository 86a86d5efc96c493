package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Triangle is three indices into a shared point slice. Vertex order encodes
// winding (and thus the facing of the normal); identity for hashing is the
// order-independent Key.
type Triangle struct {
	A, B, C int
}

// TriangleKey is a Triangle's canonical, sorted-index form, usable as a map
// key. Two triangles over the same vertices compare equal regardless of
// winding.
type TriangleKey [3]int

// Key returns the canonical sorted-index key of the triangle.
func (t Triangle) Key() TriangleKey {
	a, b, c := t.A, t.B, t.C
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return TriangleKey{a, b, c}
}

// Flipped returns the triangle with reversed winding.
func (t Triangle) Flipped() Triangle {
	return Triangle{A: t.A, B: t.C, C: t.B}
}

// Normal returns the (non-unit) normal implied by the triangle's winding
// over the given point slice.
func (t Triangle) Normal(points []r3.Vector) r3.Vector {
	return points[t.B].Sub(points[t.A]).Cross(points[t.C].Sub(points[t.A]))
}

// Centroid returns the triangle's centroid over the given point slice.
func (t Triangle) Centroid(points []r3.Vector) r3.Vector {
	return points[t.A].Add(points[t.B]).Add(points[t.C]).Mul(1.0 / 3.0)
}

// EdgeKey is a canonical (sorted) undirected edge between two point indices.
type EdgeKey [2]int

// NewEdgeKey returns the canonical key for the edge between a and b.
func NewEdgeKey(a, b int) EdgeKey {
	if a > b {
		a, b = b, a
	}
	return EdgeKey{a, b}
}

// Edges returns the triangle's three undirected edge keys.
func (t Triangle) Edges() [3]EdgeKey {
	return [3]EdgeKey{
		NewEdgeKey(t.A, t.B),
		NewEdgeKey(t.B, t.C),
		NewEdgeKey(t.C, t.A),
	}
}

// Tetrahedron is four indices into a shared point slice.
type Tetrahedron struct {
	A, B, C, D int
}

// TetrahedronKey is a Tetrahedron's canonical, sorted-index form.
type TetrahedronKey [4]int

// Key returns the canonical sorted-index key of the tetrahedron.
func (t Tetrahedron) Key() TetrahedronKey {
	k := TetrahedronKey{t.A, t.B, t.C, t.D}
	// 4 elements, insertion sort.
	for i := 1; i < 4; i++ {
		for j := i; j > 0 && k[j-1] > k[j]; j-- {
			k[j-1], k[j] = k[j], k[j-1]
		}
	}
	return k
}

// Faces returns the four triangular faces of the tetrahedron. Each face
// carries its opposite vertex implicitly: face i omits vertex i of (A,B,C,D).
func (t Tetrahedron) Faces() [4]Triangle {
	return [4]Triangle{
		{t.B, t.C, t.D},
		{t.A, t.C, t.D},
		{t.A, t.B, t.D},
		{t.A, t.B, t.C},
	}
}

// Opposite returns the vertex of the tetrahedron not used by face i of
// Faces().
func (t Tetrahedron) Opposite(i int) int {
	switch i {
	case 0:
		return t.A
	case 1:
		return t.B
	case 2:
		return t.C
	default:
		return t.D
	}
}

// SignedVolume returns the signed volume of the tetrahedron over the given
// point slice; the sign encodes orientation.
func (t Tetrahedron) SignedVolume(points []r3.Vector) float64 {
	a := points[t.B].Sub(points[t.A])
	b := points[t.C].Sub(points[t.A])
	c := points[t.D].Sub(points[t.A])
	return a.Cross(b).Dot(c) / 6
}
