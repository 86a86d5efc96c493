package boundingbox

import (
	"math"
	"math/rand"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/john-rocky/productmeasure/spatialmath"
)

// uniformBoxPoints samples points uniformly inside a box with the given
// half-sizes, centered at the origin, axis-aligned.
func uniformBoxPoints(n int, extents r3.Vector, seed int64) []r3.Vector {
	r := rand.New(rand.NewSource(seed))
	points := make([]r3.Vector, n)
	for i := range points {
		points[i] = r3.Vector{
			X: (r.Float64()*2 - 1) * extents.X,
			Y: (r.Float64()*2 - 1) * extents.Y,
			Z: (r.Float64()*2 - 1) * extents.Z,
		}
	}
	return points
}

func rotateAboutZ(points []r3.Vector, angle float64) []r3.Vector {
	rot := spatialmath.QuatFromAxisAngle(r3.Vector{Z: 1}, angle)
	out := make([]r3.Vector, len(points))
	for i, p := range points {
		out[i] = spatialmath.Rotate(rot, p)
	}
	return out
}

func TestEstimateTooFewPoints(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	test.That(t, e.Estimate(nil, PolicyAxisLocked, nil), test.ShouldBeNil)
	few := []r3.Vector{{}, {X: 1}, {Y: 1}}
	test.That(t, e.Estimate(few, PolicyAxisLocked, nil), test.ShouldBeNil)
	test.That(t, e.Estimate(few, PolicyFree, nil), test.ShouldBeNil)
}

func TestEstimateAxisAlignedBox(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	extents := r3.Vector{X: 0.1, Y: 0.05, Z: 0.08}
	points := uniformBoxPoints(500, extents, 42)

	box := e.Estimate(points, PolicyAxisLocked, nil)
	test.That(t, box, test.ShouldNotBeNil)

	test.That(t, box.Extents.X, test.ShouldAlmostEqual, extents.X, extents.X*0.1)
	test.That(t, box.Extents.Y, test.ShouldAlmostEqual, extents.Y, extents.Y*0.1)
	test.That(t, box.Extents.Z, test.ShouldAlmostEqual, extents.Z, extents.Z*0.1)

	identity := spatialmath.NewZeroRotation()
	angle := spatialmath.AngleBetweenQuats(box.Rotation, identity)
	// Orientation is modulo 90°; fold before comparing to identity.
	angle = math.Min(angle, math.Abs(math.Pi/2-angle))
	test.That(t, angle, test.ShouldBeLessThan, 5*math.Pi/180)
	test.That(t, box.Center.Norm(), test.ShouldBeLessThan, 0.02)
}

func TestEstimateContainment(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	points := uniformBoxPoints(400, r3.Vector{X: 0.1, Y: 0.07, Z: 0.05}, 3)
	box := e.Estimate(points, PolicyAxisLocked, nil)
	test.That(t, box, test.ShouldNotBeNil)
	// The 1% trim may exclude a sliver of extreme samples; everything must
	// still be within a small epsilon of the box.
	for _, p := range points {
		test.That(t, box.Contains(p, 0.01), test.ShouldBeTrue)
	}
}

func TestEstimateIdempotent(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	points := uniformBoxPoints(300, r3.Vector{X: 0.1, Y: 0.05, Z: 0.08}, 9)

	b1 := e.Estimate(points, PolicyAxisLocked, nil)
	b2 := e.Estimate(points, PolicyAxisLocked, nil)
	test.That(t, b1, test.ShouldNotBeNil)
	test.That(t, b2, test.ShouldNotBeNil)
	test.That(t, b1.Center.Sub(b2.Center).Norm(), test.ShouldBeLessThan, 1e-5)
	test.That(t, b1.Extents.Sub(b2.Extents).Norm(), test.ShouldBeLessThan, 1e-5)
	test.That(t, spatialmath.QuaternionAlmostEqual(b1.Rotation, b2.Rotation, 1e-5), test.ShouldBeTrue)
}

func TestEstimateRotatedBox(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	extents := r3.Vector{X: 0.12, Y: 0.06, Z: 0.04}
	angle := 30 * math.Pi / 180
	points := rotateAboutZ(uniformBoxPoints(500, extents, 17), angle)

	box := e.Estimate(points, PolicyAxisLocked, nil)
	test.That(t, box, test.ShouldNotBeNil)
	test.That(t, box.Volume(), test.ShouldAlmostEqual, 8*extents.X*extents.Y*extents.Z, 0.3*8*extents.X*extents.Y*extents.Z)

	// The recovered horizontal axis must align with the rotated box's X
	// axis, modulo quarter turns.
	got := box.Axes()[0]
	want := r3.Vector{X: math.Cos(angle), Y: math.Sin(angle)}
	align := math.Abs(got.Dot(want))
	align = math.Max(align, math.Abs(got.Dot(r3.Vector{X: -want.Y, Y: want.X})))
	test.That(t, align, test.ShouldBeGreaterThan, math.Cos(5*math.Pi/180))
}

func TestEstimateFreePolicy(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	r := rand.New(rand.NewSource(5))
	dir := r3.Vector{X: 1, Y: 1, Z: 1}.Normalize()
	points := make([]r3.Vector, 400)
	for i := range points {
		s := r.Float64()*0.4 - 0.2
		noise := r3.Vector{X: r.NormFloat64(), Y: r.NormFloat64(), Z: r.NormFloat64()}.Mul(0.005)
		points[i] = dir.Mul(s).Add(noise)
	}
	box := e.Estimate(points, PolicyFree, nil)
	test.That(t, box, test.ShouldNotBeNil)
	test.That(t, math.Abs(box.Axes()[0].Dot(dir)), test.ShouldBeGreaterThan, 0.95)
	test.That(t, box.Extents.X, test.ShouldBeGreaterThan, box.Extents.Y)
}

func TestReferencePlaneSnapping(t *testing.T) {
	e := NewEstimator(golog.NewTestLogger(t))
	// Box rotated 5° off axis; a large wall aligned with the world X axis
	// should snap the orientation back.
	points := rotateAboutZ(uniformBoxPoints(500, r3.Vector{X: 0.1, Y: 0.05, Z: 0.08}, 23), 5*math.Pi/180)
	planes := []ReferencePlane{{
		Position: r3.Vector{X: 1},
		Normal:   r3.Vector{X: 1},
		Area:     2.0,
	}}

	box := e.Estimate(points, PolicyAxisLocked, planes)
	test.That(t, box, test.ShouldNotBeNil)
	axes := box.Axes()
	align := math.Max(math.Abs(axes[0].Dot(r3.Vector{X: 1})), math.Abs(axes[0].Dot(r3.Vector{Y: 1})))
	test.That(t, align, test.ShouldBeGreaterThan, math.Cos(0.5*math.Pi/180))
}

func TestConvexHull(t *testing.T) {
	square := []r2.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
		{X: 0.5, Y: 0.5}, {X: 0.25, Y: 0.75}, // interior points
	}
	hull := convexHull2D(square)
	test.That(t, len(hull), test.ShouldEqual, 4)

	test.That(t, convexHull2D([]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}), test.ShouldBeNil)
	collinear := []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	test.That(t, convexHull2D(collinear), test.ShouldBeNil)
}

func TestMinAreaRectAngle(t *testing.T) {
	// A rectangle rotated by 20° is recovered modulo 90°.
	angle := 20 * math.Pi / 180
	cos, sin := math.Cos(angle), math.Sin(angle)
	var pts []r2.Point
	for _, c := range [][2]float64{{-2, -1}, {2, -1}, {2, 1}, {-2, 1}} {
		pts = append(pts, r2.Point{X: c[0]*cos - c[1]*sin, Y: c[0]*sin + c[1]*cos})
	}
	hull := convexHull2D(pts)
	test.That(t, hull, test.ShouldNotBeNil)
	got := minAreaRectAngle(hull)
	test.That(t, math.Abs(normalizeQuarterTurn(got-angle)), test.ShouldBeLessThan, 1e-9)
}

func TestNormalizeQuarterTurn(t *testing.T) {
	test.That(t, normalizeQuarterTurn(0), test.ShouldEqual, 0)
	test.That(t, normalizeQuarterTurn(math.Pi/2), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, normalizeQuarterTurn(math.Pi), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, normalizeQuarterTurn(100*math.Pi/180), test.ShouldAlmostEqual, 10*math.Pi/180, 1e-12)
	test.That(t, normalizeQuarterTurn(-100*math.Pi/180), test.ShouldAlmostEqual, -10*math.Pi/180, 1e-12)
}
