// Package delaunay builds 3D Delaunay tetrahedralizations with the
// incremental Bowyer-Watson algorithm.
package delaunay

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r3"

	"github.com/john-rocky/productmeasure/spatialmath"
)

const (
	// degeneracyEpsilon is the determinant threshold, relative to the edge
	// lengths, below which a tetrahedron is considered coplanar and skipped.
	degeneracyEpsilon = 1e-10
	// jitterScale sizes the perturbation of the working coordinates,
	// relative to the cloud's bounding diagonal.
	jitterScale = 1e-6
)

// Triangulation is the result of tetrahedralizing a point set. Tetrahedra
// index into Points, which is the input point slice (super-tetrahedron
// vertices are stripped before returning).
type Triangulation struct {
	Points     []r3.Vector
	Tetrahedra []spatialmath.Tetrahedron
}

// circumsphere is a tetrahedron's circumscribed sphere; ephemeral,
// recomputed per triangulation run.
type circumsphere struct {
	center  r3.Vector
	radius2 float64
}

func (c circumsphere) contains(p r3.Vector) bool {
	return p.Sub(c.center).Norm2() < c.radius2
}

// Triangulate builds the Delaunay tetrahedralization of the given points.
// Fewer than 4 points, or a fully degenerate (coplanar) input, yields an
// empty triangulation rather than an error.
//
// The working coordinates are perturbed by a tiny deterministic jitter:
// grid-sampled clouds put many points on shared circumspheres, and
// Bowyer-Watson needs points in general position. The output tetrahedra
// still index the caller's unperturbed points.
func Triangulate(points []r3.Vector) Triangulation {
	result := Triangulation{Points: points}
	if len(points) < 4 {
		return result
	}
	min, max := bounds(points)
	diag := max.Sub(min).Norm()
	if diag == 0 || isCoplanar(points, diag) {
		return result
	}

	n := len(points)
	work := make([]r3.Vector, n, n+4)
	rng := rand.New(rand.NewSource(1))
	for i, p := range points {
		work[i] = p.Add(r3.Vector{
			X: rng.Float64() - 0.5,
			Y: rng.Float64() - 0.5,
			Z: rng.Float64() - 0.5,
		}.Mul(diag * jitterScale))
	}
	work = append(work, superTetrahedron(points)...)

	type tet struct {
		t      spatialmath.Tetrahedron
		sphere circumsphere
		valid  bool
	}
	sphere, ok := computeCircumsphere(work, n, n+1, n+2, n+3)
	if !ok {
		return result
	}
	super := spatialmath.Tetrahedron{A: n, B: n + 1, C: n + 2, D: n + 3}
	tets := []tet{{t: super, sphere: sphere, valid: true}}
	live := map[spatialmath.TetrahedronKey]bool{super.Key(): true}
	dead := 0

	for i := 0; i < n; i++ {
		p := work[i]

		// Find all tetrahedra whose circumsphere contains the new point.
		var bad []int
		for ti := range tets {
			if tets[ti].valid && tets[ti].sphere.contains(p) {
				bad = append(bad, ti)
			}
		}
		if len(bad) == 0 {
			// Numerically outside all spheres; the point is skipped, its
			// neighbors still shape the surface.
			continue
		}

		// The cavity boundary is the set of faces belonging to exactly one
		// bad tetrahedron.
		faceRep := make(map[spatialmath.TriangleKey]spatialmath.Triangle, len(bad)*4)
		faceSeen := make(map[spatialmath.TriangleKey]int, len(bad)*4)
		for _, ti := range bad {
			for _, f := range tets[ti].t.Faces() {
				k := f.Key()
				faceSeen[k]++
				faceRep[k] = f
			}
		}
		for _, ti := range bad {
			delete(live, tets[ti].t.Key())
			tets[ti].valid = false
			dead++
		}

		// Re-triangulate the cavity by connecting each boundary face to the
		// new point, skipping degenerate tetrahedra and sorted-key
		// duplicates.
		for k, f := range faceRep {
			if faceSeen[k] != 1 {
				continue
			}
			nt := spatialmath.Tetrahedron{A: f.A, B: f.B, C: f.C, D: i}
			if live[nt.Key()] {
				continue
			}
			sphere, ok := computeCircumsphere(work, nt.A, nt.B, nt.C, nt.D)
			if !ok {
				continue
			}
			tets = append(tets, tet{t: nt, sphere: sphere, valid: true})
			live[nt.Key()] = true
		}

		// Compact once dead entries dominate the scan.
		if dead*2 > len(tets) {
			kept := tets[:0]
			for _, t := range tets {
				if t.valid {
					kept = append(kept, t)
				}
			}
			tets = kept
			dead = 0
		}
	}

	// Drop everything touching a super-tetrahedron vertex.
	for _, t := range tets {
		if !t.valid {
			continue
		}
		if t.t.A >= n || t.t.B >= n || t.t.C >= n || t.t.D >= n {
			continue
		}
		result.Tetrahedra = append(result.Tetrahedra, t.t)
	}
	return result
}

// isCoplanar reports whether every point lies on a single plane, within a
// tolerance proportional to the cloud's bounding diagonal.
func isCoplanar(points []r3.Vector, diag float64) bool {
	axes, ok := spatialmath.PrincipalAxes(points)
	if !ok {
		return true
	}
	center := spatialmath.Centroid(points)
	tol := diag * jitterScale
	for _, p := range points {
		if math.Abs(p.Sub(center).Dot(axes[2])) > tol {
			return false
		}
	}
	return true
}

// superTetrahedron returns 4 vertices of a tetrahedron guaranteed to contain
// every input point, centered on the cloud and sized at 10x its bounding
// diagonal.
func superTetrahedron(points []r3.Vector) []r3.Vector {
	min, max := bounds(points)
	center := min.Add(max).Mul(0.5)
	d := max.Sub(min).Norm() * 10
	if d == 0 {
		d = 1
	}
	return []r3.Vector{
		center.Add(r3.Vector{X: d, Y: 0, Z: -d / math.Sqrt2}),
		center.Add(r3.Vector{X: -d, Y: 0, Z: -d / math.Sqrt2}),
		center.Add(r3.Vector{X: 0, Y: d, Z: d / math.Sqrt2}),
		center.Add(r3.Vector{X: 0, Y: -d, Z: d / math.Sqrt2}),
	}
}

func bounds(points []r3.Vector) (r3.Vector, r3.Vector) {
	min, max := points[0], points[0]
	for _, p := range points[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	return min, max
}

// computeCircumsphere solves for the center equidistant from the 4 vertices
// via the standard determinant formulation; ok is false when the vertices
// are (near) coplanar. The degeneracy test is relative to the edge lengths,
// so it is independent of the cloud's scale.
func computeCircumsphere(points []r3.Vector, a, b, c, d int) (circumsphere, bool) {
	pa, pb, pc, pd := points[a], points[b], points[c], points[d]
	// Rows of the linear system 2*(pi - pa) . x = |pi|^2 - |pa|^2.
	ab := pb.Sub(pa)
	ac := pc.Sub(pa)
	ad := pd.Sub(pa)

	det := ab.Dot(ac.Cross(ad))
	scale := ab.Norm() * ac.Norm() * ad.Norm()
	if scale == 0 || math.Abs(det) < degeneracyEpsilon*scale {
		return circumsphere{}, false
	}

	ab2 := pb.Norm2() - pa.Norm2()
	ac2 := pc.Norm2() - pa.Norm2()
	ad2 := pd.Norm2() - pa.Norm2()

	// Cramer's rule on the 3x3 system with rows 2*ab, 2*ac, 2*ad.
	center := ac.Cross(ad).Mul(ab2).
		Add(ad.Cross(ab).Mul(ac2)).
		Add(ab.Cross(ac).Mul(ad2)).
		Mul(1 / (2 * det))
	return circumsphere{center: center, radius2: center.Sub(pa).Norm2()}, true
}

// Circumradius returns the circumscribed sphere radius of the tetrahedron,
// or +Inf for a degenerate one (so it is never included in an alpha
// complex).
func (tr *Triangulation) Circumradius(t spatialmath.Tetrahedron) float64 {
	sphere, ok := computeCircumsphere(tr.Points, t.A, t.B, t.C, t.D)
	if !ok {
		return math.Inf(1)
	}
	return math.Sqrt(sphere.radius2)
}

// FaceMultiplicity counts, for every triangular face in the triangulation,
// how many tetrahedra share it. In a valid triangulation every face belongs
// to exactly 1 (boundary) or 2 (interior) tetrahedra.
func (tr *Triangulation) FaceMultiplicity() map[spatialmath.TriangleKey]int {
	faces := make(map[spatialmath.TriangleKey]int, len(tr.Tetrahedra)*2)
	for _, t := range tr.Tetrahedra {
		for _, f := range t.Faces() {
			faces[f.Key()]++
		}
	}
	return faces
}

// SurfaceTriangles returns the faces belonging to exactly one tetrahedron,
// i.e. the boundary of the triangulated volume.
func (tr *Triangulation) SurfaceTriangles() []spatialmath.Triangle {
	count := make(map[spatialmath.TriangleKey]int, len(tr.Tetrahedra)*2)
	rep := make(map[spatialmath.TriangleKey]spatialmath.Triangle, len(tr.Tetrahedra)*2)
	for _, t := range tr.Tetrahedra {
		for _, f := range t.Faces() {
			k := f.Key()
			count[k]++
			rep[k] = f
		}
	}
	var out []spatialmath.Triangle
	for k, c := range count {
		if c == 1 {
			out = append(out, rep[k])
		}
	}
	return out
}
