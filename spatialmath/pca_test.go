package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestCentroid(t *testing.T) {
	test.That(t, Centroid(nil), test.ShouldResemble, r3.Vector{})
	c := Centroid([]r3.Vector{{X: 1}, {X: 3}, {Y: 2}, {Y: -2}})
	test.That(t, c.Sub(r3.Vector{X: 1}).Norm(), test.ShouldBeLessThan, 1e-12)
}

func TestPrincipalAxesElongatedCloud(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	dir := r3.Vector{X: 1, Y: 1, Z: 1}.Normalize()
	points := make([]r3.Vector, 300)
	for i := range points {
		s := r.Float64()*2 - 1
		noise := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}.Mul(0.01)
		points[i] = dir.Mul(s).Add(noise)
	}
	axes, ok := PrincipalAxes(points)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(axes[0].Dot(dir)), test.ShouldBeGreaterThan, 0.99)

	// Orthonormal and right-handed.
	test.That(t, axes[0].Dot(axes[1]), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, axes[0].Cross(axes[1]).Sub(axes[2]).Norm(), test.ShouldBeLessThan, 1e-9)
}

func TestPrincipalAxesDegenerate(t *testing.T) {
	_, ok := PrincipalAxes([]r3.Vector{{X: 1}, {X: 2}})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestEstimateNormalOfPlane(t *testing.T) {
	var points []r3.Vector
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			points = append(points, r3.Vector{X: float64(x) * 0.01, Y: float64(y) * 0.01})
		}
	}
	n, ok := EstimateNormal(points)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(n.Z), test.ShouldBeGreaterThan, 0.999)
}
