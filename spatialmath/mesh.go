package spatialmath

import (
	"github.com/golang/geo/r3"
)

// TriangleMesh is a set of indexed triangles over a shared point slice,
// produced by the surface reconstruction algorithms.
type TriangleMesh struct {
	Points    []r3.Vector
	Triangles []Triangle
}

// TriangleCount returns the number of triangles in the mesh.
func (m *TriangleMesh) TriangleCount() int {
	return len(m.Triangles)
}

// Volume integrates the enclosed volume via the divergence theorem,
// summing signed tetrahedra from the origin to each triangle:
//
//	V = (1/6) * sum v0 . (v1 x v2)
//
// The result is only meaningful when the triangles are consistently
// oriented outward; the absolute value is returned so a globally inverted
// mesh still yields a positive volume.
func (m *TriangleMesh) Volume() float64 {
	var v float64
	for _, t := range m.Triangles {
		p0, p1, p2 := m.Points[t.A], m.Points[t.B], m.Points[t.C]
		v += p0.Dot(p1.Cross(p2))
	}
	v /= 6
	if v < 0 {
		v = -v
	}
	return v
}

// IsWatertight reports whether every undirected edge is shared by exactly
// two triangles, i.e. the surface is closed with no holes or fins.
func (m *TriangleMesh) IsWatertight() bool {
	if len(m.Triangles) == 0 {
		return false
	}
	edges := make(map[EdgeKey]int, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		for _, e := range t.Edges() {
			edges[e]++
		}
	}
	for _, count := range edges {
		if count != 2 {
			return false
		}
	}
	return true
}

// OrientOutward flips each triangle whose winding normal points toward the
// given interior reference point, so all normals face away from it. This is
// a heuristic: it is exact for star-shaped surfaces viewed from the
// reference, which covers the convex-ish objects this engine measures.
func (m *TriangleMesh) OrientOutward(interior r3.Vector) {
	for i, t := range m.Triangles {
		outward := t.Centroid(m.Points).Sub(interior)
		if t.Normal(m.Points).Dot(outward) < 0 {
			m.Triangles[i] = t.Flipped()
		}
	}
}

// BoundaryEdges returns the undirected edges used by exactly one triangle.
// An empty result together with a non-empty mesh means the mesh is closed.
func (m *TriangleMesh) BoundaryEdges() []EdgeKey {
	edges := make(map[EdgeKey]int, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		for _, e := range t.Edges() {
			edges[e]++
		}
	}
	var boundary []EdgeKey
	for e, count := range edges {
		if count == 1 {
			boundary = append(boundary, e)
		}
	}
	return boundary
}
