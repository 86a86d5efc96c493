package spatialmath

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func tetrahedronMesh() TriangleMesh {
	return TriangleMesh{
		Points: []r3.Vector{
			{},
			{X: 1},
			{Y: 1},
			{Z: 1},
		},
		Triangles: []Triangle{
			{A: 0, B: 1, C: 2},
			{A: 0, B: 1, C: 3},
			{A: 0, B: 2, C: 3},
			{A: 1, B: 2, C: 3},
		},
	}
}

func unitCubeMesh() TriangleMesh {
	return TriangleMesh{
		Points: []r3.Vector{
			{}, {X: 1}, {X: 1, Y: 1}, {Y: 1},
			{Z: 1}, {X: 1, Z: 1}, {X: 1, Y: 1, Z: 1}, {Y: 1, Z: 1},
		},
		Triangles: []Triangle{
			{A: 0, B: 1, C: 2}, {A: 0, B: 2, C: 3},
			{A: 4, B: 5, C: 6}, {A: 4, B: 6, C: 7},
			{A: 0, B: 1, C: 5}, {A: 0, B: 5, C: 4},
			{A: 3, B: 2, C: 6}, {A: 3, B: 6, C: 7},
			{A: 0, B: 3, C: 7}, {A: 0, B: 7, C: 4},
			{A: 1, B: 2, C: 6}, {A: 1, B: 6, C: 5},
		},
	}
}

func TestWatertightTetrahedron(t *testing.T) {
	mesh := tetrahedronMesh()
	test.That(t, mesh.IsWatertight(), test.ShouldBeTrue)

	// Removing any one face opens the mesh.
	open := TriangleMesh{Points: mesh.Points, Triangles: mesh.Triangles[:3]}
	test.That(t, open.IsWatertight(), test.ShouldBeFalse)
	test.That(t, len(open.BoundaryEdges()), test.ShouldEqual, 3)

	empty := TriangleMesh{Points: mesh.Points}
	test.That(t, empty.IsWatertight(), test.ShouldBeFalse)
}

func TestTetrahedronVolume(t *testing.T) {
	mesh := tetrahedronMesh()
	mesh.OrientOutward(r3.Vector{X: 0.25, Y: 0.25, Z: 0.25})
	test.That(t, mesh.Volume(), test.ShouldAlmostEqual, 1.0/6, 1e-9)
}

func TestUnitCubeVolume(t *testing.T) {
	mesh := unitCubeMesh()
	test.That(t, mesh.IsWatertight(), test.ShouldBeTrue)
	mesh.OrientOutward(r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})
	test.That(t, mesh.Volume(), test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, len(mesh.BoundaryEdges()), test.ShouldEqual, 0)
}

func TestTriangleKeyIgnoresWinding(t *testing.T) {
	t1 := Triangle{A: 5, B: 2, C: 9}
	t2 := Triangle{A: 9, B: 5, C: 2}
	test.That(t, t1.Key(), test.ShouldEqual, t2.Key())
	test.That(t, t1.Key(), test.ShouldEqual, TriangleKey{2, 5, 9})
	test.That(t, t1.Flipped().Key(), test.ShouldEqual, t1.Key())
}

func TestTetrahedronKeySorted(t *testing.T) {
	tet := Tetrahedron{A: 7, B: 1, C: 4, D: 2}
	test.That(t, tet.Key(), test.ShouldEqual, TetrahedronKey{1, 2, 4, 7})
}

func TestTetrahedronFacesCoverAllTriples(t *testing.T) {
	tet := Tetrahedron{A: 0, B: 1, C: 2, D: 3}
	seen := map[TriangleKey]bool{}
	for i, f := range tet.Faces() {
		seen[f.Key()] = true
		// The opposite vertex is the one missing from the face.
		for _, v := range []int{f.A, f.B, f.C} {
			test.That(t, v, test.ShouldNotEqual, tet.Opposite(i))
		}
	}
	test.That(t, len(seen), test.ShouldEqual, 4)
}

func TestSignedVolumeOrientation(t *testing.T) {
	points := []r3.Vector{{}, {X: 1}, {Y: 1}, {Z: 1}}
	pos := Tetrahedron{A: 0, B: 1, C: 2, D: 3}
	neg := Tetrahedron{A: 0, B: 2, C: 1, D: 3}
	test.That(t, pos.SignedVolume(points), test.ShouldAlmostEqual, 1.0/6, 1e-12)
	test.That(t, neg.SignedVolume(points), test.ShouldAlmostEqual, -1.0/6, 1e-12)
}
