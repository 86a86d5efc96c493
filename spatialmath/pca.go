package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Centroid returns the arithmetic mean of the given points, or the zero
// vector for an empty slice.
func Centroid(points []r3.Vector) r3.Vector {
	if len(points) == 0 {
		return r3.Vector{}
	}
	var sum r3.Vector
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// PrincipalAxes eigen-decomposes the 3x3 covariance matrix of the given
// points and returns the eigenvectors as a right-handed orthonormal frame,
// ordered by decreasing variance. ok is false when the decomposition fails
// or fewer than 3 points are given.
func PrincipalAxes(points []r3.Vector) (axes [3]r3.Vector, ok bool) {
	if len(points) < 3 {
		return axes, false
	}
	c := Centroid(points)
	var xx, xy, xz, yy, yz, zz float64
	for _, p := range points {
		d := p.Sub(c)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	n := float64(len(points))
	cov := mat.NewSymDense(3, []float64{
		xx / n, xy / n, xz / n,
		xy / n, yy / n, yz / n,
		xz / n, yz / n, zz / n,
	})

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return axes, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// EigenSym orders eigenvalues ascending; we want descending variance.
	for i := 0; i < 3; i++ {
		col := 2 - i
		axes[i] = r3.Vector{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}
		if axes[i].Norm() < 1e-12 {
			return axes, false
		}
		axes[i] = axes[i].Normalize()
	}

	// Re-orthogonalize and force a right-handed frame; eigenvector signs are
	// arbitrary and near-degenerate spectra can drift off orthogonal.
	axes[1] = axes[1].Sub(axes[0].Mul(axes[0].Dot(axes[1])))
	if axes[1].Norm() < 1e-12 {
		return axes, false
	}
	axes[1] = axes[1].Normalize()
	axes[2] = axes[0].Cross(axes[1])
	return axes, true
}

// EstimateNormal fits a plane to the neighborhood and returns its unit
// normal (the direction of least variance). ok is false for degenerate
// neighborhoods.
func EstimateNormal(neighborhood []r3.Vector) (r3.Vector, bool) {
	axes, ok := PrincipalAxes(neighborhood)
	if !ok {
		return r3.Vector{}, false
	}
	return axes[2], true
}
