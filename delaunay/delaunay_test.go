package delaunay

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestTriangulateTooFewPoints(t *testing.T) {
	test.That(t, len(Triangulate(nil).Tetrahedra), test.ShouldEqual, 0)
	three := []r3.Vector{{}, {X: 1}, {Y: 1}}
	test.That(t, len(Triangulate(three).Tetrahedra), test.ShouldEqual, 0)
}

func TestTriangulateSingleTetrahedron(t *testing.T) {
	points := []r3.Vector{{}, {X: 1}, {Y: 1}, {Z: 1}}
	tri := Triangulate(points)
	test.That(t, len(tri.Tetrahedra), test.ShouldEqual, 1)
	vol := tri.Tetrahedra[0].SignedVolume(points)
	test.That(t, math.Abs(vol), test.ShouldAlmostEqual, 1.0/6, 1e-9)
}

func TestTriangulateCoplanarPoints(t *testing.T) {
	var points []r3.Vector
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			points = append(points, r3.Vector{X: float64(x), Y: float64(y)})
		}
	}
	// All tetrahedra over coplanar points are degenerate; none survive.
	test.That(t, len(Triangulate(points).Tetrahedra), test.ShouldEqual, 0)
}

func TestFaceMultiplicityInvariant(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	points := make([]r3.Vector, 60)
	for i := range points {
		points[i] = r3.Vector{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}
	}
	tri := Triangulate(points)
	test.That(t, len(tri.Tetrahedra), test.ShouldBeGreaterThan, 0)

	// Every face of a valid 3D triangulation belongs to exactly 1 or 2
	// tetrahedra.
	for _, mult := range tri.FaceMultiplicity() {
		test.That(t, mult, test.ShouldBeBetweenOrEqual, 1, 2)
	}

	// All indices reference input points; no super-tetrahedron vertices
	// leak into the result.
	for _, tet := range tri.Tetrahedra {
		for _, v := range []int{tet.A, tet.B, tet.C, tet.D} {
			test.That(t, v, test.ShouldBeBetweenOrEqual, 0, len(points)-1)
		}
		test.That(t, math.Abs(tet.SignedVolume(points)), test.ShouldBeGreaterThan, 0)
	}
}

func TestSurfaceTrianglesBoundTheHull(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	points := make([]r3.Vector, 40)
	for i := range points {
		points[i] = r3.Vector{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}
	}
	tri := Triangulate(points)
	surface := tri.SurfaceTriangles()
	test.That(t, len(surface), test.ShouldBeGreaterThan, 3)

	// The boundary triangles are exactly the multiplicity-1 faces.
	mult := tri.FaceMultiplicity()
	for _, f := range surface {
		test.That(t, mult[f.Key()], test.ShouldEqual, 1)
	}
}

func TestTriangulationFillsVolume(t *testing.T) {
	// Near-cube corners (jittered to break cospherical symmetry): the
	// tetrahedra must tile the full enclosed volume.
	r := rand.New(rand.NewSource(2))
	var points []r3.Vector
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			for z := 0; z < 2; z++ {
				jitter := r3.Vector{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}.Mul(1e-6)
				points = append(points, r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)}.Add(jitter))
			}
		}
	}
	tri := Triangulate(points)
	var total float64
	for _, tet := range tri.Tetrahedra {
		total += math.Abs(tet.SignedVolume(points))
	}
	test.That(t, total, test.ShouldAlmostEqual, 1, 1e-3)
}

// gridShellPoints samples the axis-aligned surface of the cube [0,n]^3 at
// integer coordinates, the worst case for cospherical degeneracy.
func gridShellPoints(n int) []r3.Vector {
	var points []r3.Vector
	for x := 0; x <= n; x++ {
		for y := 0; y <= n; y++ {
			for z := 0; z <= n; z++ {
				if x == 0 || x == n || y == 0 || y == n || z == 0 || z == n {
					points = append(points, r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)})
				}
			}
		}
	}
	return points
}

func TestTriangulateGridSurface(t *testing.T) {
	// Integer-grid samples put many points on shared circumspheres; the
	// triangulation must stay manifold and tile the cube's volume.
	points := gridShellPoints(2)
	test.That(t, len(points), test.ShouldEqual, 26)
	tri := Triangulate(points)
	test.That(t, len(tri.Tetrahedra), test.ShouldBeGreaterThan, 0)

	for _, mult := range tri.FaceMultiplicity() {
		test.That(t, mult, test.ShouldBeBetweenOrEqual, 1, 2)
	}

	var total float64
	for _, tet := range tri.Tetrahedra {
		total += math.Abs(tet.SignedVolume(points))
	}
	test.That(t, total, test.ShouldAlmostEqual, 8, 0.01)
}

func TestTriangulateLargerGridSurface(t *testing.T) {
	points := gridShellPoints(4)
	test.That(t, len(points), test.ShouldEqual, 98)
	tri := Triangulate(points)
	test.That(t, len(tri.Tetrahedra), test.ShouldBeGreaterThan, 0)

	for _, mult := range tri.FaceMultiplicity() {
		test.That(t, mult, test.ShouldBeBetweenOrEqual, 1, 2)
	}

	var total float64
	for _, tet := range tri.Tetrahedra {
		total += math.Abs(tet.SignedVolume(points))
	}
	test.That(t, total, test.ShouldAlmostEqual, 64, 0.5)
}

func TestCircumradius(t *testing.T) {
	points := []r3.Vector{{}, {X: 1}, {Y: 1}, {Z: 1}}
	tri := Triangulate(points)
	test.That(t, len(tri.Tetrahedra), test.ShouldEqual, 1)
	// The circumsphere of this corner tetrahedron passes through all four
	// vertices; its center is at (0.5, 0.5, 0.5).
	test.That(t, tri.Circumradius(tri.Tetrahedra[0]), test.ShouldAlmostEqual, math.Sqrt(3)/2, 1e-9)

	degenerate := []r3.Vector{{}, {X: 1}, {Y: 1}, {X: 1, Y: 1}}
	flat := Triangulate(degenerate)
	test.That(t, len(flat.Tetrahedra), test.ShouldEqual, 0)
}
