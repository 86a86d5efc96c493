// Package ballpivot grows a triangle mesh over a point cloud by rolling a
// fixed-radius ball across point triples, the classic ball-pivoting surface
// reconstruction.
package ballpivot

import (
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/john-rocky/productmeasure/pointcloud"
	"github.com/john-rocky/productmeasure/spatialmath"
)

const (
	// normalNeighbors is the neighborhood size for per-point normal
	// estimation.
	normalNeighbors = 10
	// seedSearchLimit bounds the exhaustive seed-triangle search to the
	// first points of the input. This is order dependent: a valid seed
	// further into the array can be missed. Known limitation, kept for
	// tractability.
	seedSearchLimit = 100
	// maxTriangles is the hard cap on mesh size; hitting it returns the
	// partial mesh built so far.
	maxTriangles = 100000
	// radiusSpacingFactor scales the mean nearest-neighbor distance into
	// the auto-selected ball radius.
	radiusSpacingFactor = 3
	// MinBallRadius is the smallest auto-selected ball radius.
	MinBallRadius = 0.005 // meters
	// MaxBallRadius is the largest auto-selected ball radius.
	MaxBallRadius = 0.2 // meters
)

// holeFillFactors are the radius multiples retried on unresolved front
// edges to close small holes.
var holeFillFactors = []float64{1.5, 2, 3}

// Result is the outcome of a ball-pivoting reconstruction. A zero
// TriangleCount means no seed triangle was found or the input was
// insufficient.
type Result struct {
	Volume         float64 // cubic meters
	Surface        spatialmath.TriangleMesh
	BallRadius     float64
	IsWatertight   bool
	ProcessingTime time.Duration
}

// MeshBuilder reconstructs surfaces by ball pivoting. The builder itself is
// stateless; all per-run state is private to each BuildMesh call, so
// concurrent calls are safe.
type MeshBuilder struct {
	logger golog.Logger
}

// NewMeshBuilder returns a ball-pivoting mesh builder.
func NewMeshBuilder(logger golog.Logger) *MeshBuilder {
	if logger == nil {
		logger = golog.Global()
	}
	return &MeshBuilder{logger: logger}
}

// BuildMesh reconstructs a triangle mesh over the points. Normals may be
// nil, in which case they are estimated from each point's neighborhood and
// oriented away from the global centroid. ballRadius <= 0 selects the
// radius automatically from point density. Fewer than 3 points yields an
// empty result.
func (b *MeshBuilder) BuildMesh(points, normals []r3.Vector, ballRadius float64) Result {
	start := time.Now()
	if ballRadius <= 0 {
		ballRadius = AutoBallRadius(points)
	}
	result := Result{
		BallRadius: ballRadius,
		Surface:    spatialmath.TriangleMesh{Points: points},
	}
	if len(points) < 3 {
		result.ProcessingTime = time.Since(start)
		return result
	}

	run := newPivotRun(points, normals, ballRadius)
	run.build(b.logger)

	result.Surface.Triangles = run.triangles
	result.Surface.OrientOutward(spatialmath.Centroid(points))
	result.Volume = result.Surface.Volume()
	result.IsWatertight = result.Surface.IsWatertight()
	result.ProcessingTime = time.Since(start)
	b.logger.Debugf("ball pivoting: radius=%.4f, %d triangles, volume=%.6f m^3, watertight=%t",
		ballRadius, len(run.triangles), result.Volume, result.IsWatertight)
	return result
}

// AutoBallRadius picks the ball radius from point density: a fixed multiple
// of the mean nearest-neighbor distance, clamped to [MinBallRadius,
// MaxBallRadius].
func AutoBallRadius(points []r3.Vector) float64 {
	d := pointcloud.MeanNearestNeighborDistance(points, seedSearchLimit)
	r := d * radiusSpacingFactor
	return math.Min(math.Max(r, MinBallRadius), MaxBallRadius)
}

// EstimateNormals fits a plane to each point's nearest neighbors and
// returns the per-point unit normals, oriented away from the global
// centroid.
func EstimateNormals(points []r3.Vector) []r3.Vector {
	index := pointcloud.NewSpatialIndex(0, nil)
	index.Insert(points)
	centroid := spatialmath.Centroid(points)

	normals := make([]r3.Vector, len(points))
	for i, p := range points {
		neighborhood := index.KNearest(p, normalNeighbors+1)
		n, ok := spatialmath.EstimateNormal(neighborhood)
		if !ok {
			n = p.Sub(centroid)
			if n.Norm() < 1e-12 {
				n = r3.Vector{Z: 1}
			}
			n = n.Normalize()
		}
		if n.Dot(p.Sub(centroid)) < 0 {
			n = n.Mul(-1)
		}
		normals[i] = n
	}
	return normals
}

// frontEdge is a directed edge of the advancing front. The triangle that
// created it traversed from -> to; opposite is that triangle's third
// vertex, and center is the resting position of the ball on that triangle.
type frontEdge struct {
	from, to int
	opposite int
	center   r3.Vector
}

// pivotRun is the private, per-call state of one reconstruction.
type pivotRun struct {
	points    []r3.Vector
	normals   []r3.Vector
	radius    float64
	index     *pointcloud.SpatialIndex
	indexOf   map[r3.Vector]int
	triangles []spatialmath.Triangle
	edgeUse   map[spatialmath.EdgeKey]int
	front     []frontEdge
	meshed    []bool
}

func newPivotRun(points, normals []r3.Vector, radius float64) *pivotRun {
	if normals == nil {
		normals = EstimateNormals(points)
	}
	index := pointcloud.NewSpatialIndex(0, nil)
	index.Insert(points)
	indexOf := make(map[r3.Vector]int, len(points))
	for i, p := range points {
		if _, ok := indexOf[p]; !ok {
			indexOf[p] = i
		}
	}
	return &pivotRun{
		points:  points,
		normals: normals,
		radius:  radius,
		index:   index,
		indexOf: indexOf,
		edgeUse: make(map[spatialmath.EdgeKey]int),
		meshed:  make([]bool, len(points)),
	}
}

func (r *pivotRun) build(logger golog.Logger) {
	for len(r.triangles) < maxTriangles {
		if len(r.front) == 0 {
			if !r.findSeedTriangle() {
				break
			}
		}
		edge := r.front[len(r.front)-1]
		r.front = r.front[:len(r.front)-1]
		if r.edgeUse[spatialmath.NewEdgeKey(edge.from, edge.to)] != 1 {
			continue // already glued by a triangle added since it was queued
		}
		r.pivotEdge(edge, r.radius)
	}
	if len(r.triangles) >= maxTriangles {
		logger.Warnf("ball pivoting hit the %d triangle cap, returning partial mesh", maxTriangles)
		return
	}
	r.fillHoles(logger)
}

// fillHoles retries the remaining boundary edges with progressively larger
// balls to close small gaps the original radius could not bridge.
func (r *pivotRun) fillHoles(logger golog.Logger) {
	for _, factor := range holeFillFactors {
		boundary := r.boundaryEdges()
		if len(boundary) == 0 {
			return
		}
		logger.Debugf("hole fill at %.1fx radius, %d open edges", factor, len(boundary))
		for _, edge := range boundary {
			if len(r.triangles) >= maxTriangles {
				return
			}
			if r.edgeUse[spatialmath.NewEdgeKey(edge.from, edge.to)] != 1 {
				continue
			}
			r.pivotEdge(edge, r.radius*factor)
		}
	}
}

// boundaryEdges reconstructs directed front edges for every undirected edge
// used by exactly one triangle.
func (r *pivotRun) boundaryEdges() []frontEdge {
	var out []frontEdge
	for _, t := range r.triangles {
		verts := [3]int{t.A, t.B, t.C}
		for i := 0; i < 3; i++ {
			from, to := verts[i], verts[(i+1)%3]
			if r.edgeUse[spatialmath.NewEdgeKey(from, to)] != 1 {
				continue
			}
			opposite := verts[(i+2)%3]
			center, ok := r.ballCenterOnTriangle(from, to, opposite, r.radius)
			if !ok {
				// Triangle flatter than the larger ball allows; use its
				// plane normal side as the resting position.
				n := t.Normal(r.points)
				if n.Norm() < 1e-12 {
					continue
				}
				center = t.Centroid(r.points).Add(n.Normalize().Mul(r.radius))
			}
			out = append(out, frontEdge{from: from, to: to, opposite: opposite, center: center})
		}
	}
	return out
}

// findSeedTriangle exhaustively searches small point triples near the first
// points of the input for one the ball can rest on without enclosing any
// other point, then seeds the front with its three edges.
func (r *pivotRun) findSeedTriangle() bool {
	limit := len(r.points)
	if limit > seedSearchLimit {
		limit = seedSearchLimit
	}
	for i := 0; i < limit; i++ {
		if r.meshed[i] {
			continue
		}
		neighbors := r.neighborIndices(r.points[i], 2*r.radius)
		for ji, j := range neighbors {
			if j == i {
				continue
			}
			for _, k := range neighbors[ji+1:] {
				if k == i || k == j {
					continue
				}
				center, ok := r.seedBallCenter(i, j, k)
				if !ok || !r.ballIsEmpty(center, r.radius, i, j, k) {
					continue
				}
				r.addSeed(i, j, k, center)
				return true
			}
		}
	}
	return false
}

// seedBallCenter places the ball on the triple on the side agreeing with
// the vertex normals.
func (r *pivotRun) seedBallCenter(i, j, k int) (r3.Vector, bool) {
	up := r.normals[i].Add(r.normals[j]).Add(r.normals[k])
	center, ok := r.ballCenter(i, j, k, r.radius, up)
	return center, ok
}

// ballCenter returns the center of a radius-rho ball resting on the three
// points, on the side indicated by side (any vector with a positive
// component along the desired triangle normal). ok is false when the points
// are too far apart or collinear.
func (r *pivotRun) ballCenter(i, j, k int, rho float64, side r3.Vector) (r3.Vector, bool) {
	a, b, c := r.points[i], r.points[j], r.points[k]
	ab := b.Sub(a)
	ac := c.Sub(a)
	n := ab.Cross(ac)
	n2 := n.Norm2()
	if n2 < 1e-20 {
		return r3.Vector{}, false
	}
	toCenter := n.Cross(ab).Mul(ac.Norm2()).
		Add(ac.Cross(n).Mul(ab.Norm2())).
		Mul(1 / (2 * n2))
	circumradius2 := toCenter.Norm2()
	h2 := rho*rho - circumradius2
	if h2 <= 0 {
		return r3.Vector{}, false
	}
	dir := n.Normalize()
	if dir.Dot(side) < 0 {
		dir = dir.Mul(-1)
	}
	return a.Add(toCenter).Add(dir.Mul(math.Sqrt(h2))), true
}

// ballCenterOnTriangle rests the ball on an existing mesh triangle, on the
// triangle's winding side.
func (r *pivotRun) ballCenterOnTriangle(from, to, opposite int, rho float64) (r3.Vector, bool) {
	t := spatialmath.Triangle{A: opposite, B: from, C: to}
	return r.ballCenter(opposite, from, to, rho, t.Normal(r.points))
}

// ballIsEmpty reports whether no point other than the supporting triple
// lies strictly inside the ball.
func (r *pivotRun) ballIsEmpty(center r3.Vector, rho float64, exclude ...int) bool {
	inside := r.index.PointsInSphere(center, rho*(1-1e-9))
	for _, p := range inside {
		idx := r.indexOf[p]
		excluded := false
		for _, e := range exclude {
			if idx == e || r.points[e] == p {
				excluded = true
				break
			}
		}
		if !excluded {
			return false
		}
	}
	return true
}

func (r *pivotRun) addSeed(i, j, k int, center r3.Vector) {
	// Orient the seed so its winding normal points toward the ball.
	t := spatialmath.Triangle{A: i, B: j, C: k}
	if t.Normal(r.points).Dot(center.Sub(r.points[i])) < 0 {
		t = t.Flipped()
	}
	r.appendTriangle(t, center)
}

// appendTriangle records the triangle and pushes its newly open edges onto
// the front.
func (r *pivotRun) appendTriangle(t spatialmath.Triangle, center r3.Vector) {
	r.triangles = append(r.triangles, t)
	r.meshed[t.A] = true
	r.meshed[t.B] = true
	r.meshed[t.C] = true
	verts := [3]int{t.A, t.B, t.C}
	for i := 0; i < 3; i++ {
		from, to := verts[i], verts[(i+1)%3]
		key := spatialmath.NewEdgeKey(from, to)
		r.edgeUse[key]++
		if r.edgeUse[key] == 1 {
			opposite := verts[(i+2)%3]
			r.front = append(r.front, frontEdge{from: from, to: to, opposite: opposite, center: center})
		}
	}
}

// pivotEdge rolls the ball around the edge, looking for the candidate point
// reached at the smallest positive pivot angle whose ball position is
// empty, and glues the resulting triangle into the mesh.
func (r *pivotRun) pivotEdge(edge frontEdge, rho float64) {
	a, b := r.points[edge.from], r.points[edge.to]
	mid := a.Add(b).Mul(0.5)
	axis := b.Sub(a)
	if axis.Norm() < 1e-12 {
		return
	}
	axis = axis.Normalize()

	bestAngle := math.Inf(1)
	bestCandidate := -1
	var bestCenter r3.Vector

	for _, c := range r.neighborIndices(mid, 2*rho) {
		if c == edge.from || c == edge.to || c == edge.opposite {
			continue
		}
		// Both resting positions of the ball on (from, to, c) are reachable
		// by the rotation; measure each.
		for _, sideSign := range []float64{1, -1} {
			side := r.pivotSide(edge, c, sideSign)
			center, ok := r.ballCenter(edge.from, edge.to, c, rho, side)
			if !ok {
				continue
			}
			angle := pivotAngle(axis, mid, edge.center, center)
			if angle <= 1e-9 || angle >= bestAngle {
				continue
			}
			if !r.ballIsEmpty(center, rho, edge.from, edge.to, c) {
				continue
			}
			bestAngle = angle
			bestCandidate = c
			bestCenter = center
		}
	}
	if bestCandidate < 0 {
		return
	}
	// Refuse to create a non-manifold edge: the candidate's edges must not
	// already be interior.
	if r.edgeUse[spatialmath.NewEdgeKey(edge.from, bestCandidate)] >= 2 ||
		r.edgeUse[spatialmath.NewEdgeKey(bestCandidate, edge.to)] >= 2 {
		return
	}
	// The new triangle traverses the shared edge opposite to its creator,
	// keeping winding consistent across the mesh.
	t := spatialmath.Triangle{A: edge.to, B: edge.from, C: bestCandidate}
	r.appendTriangle(t, bestCenter)
}

// pivotSide disambiguates the two ball resting positions for a candidate.
func (r *pivotRun) pivotSide(edge frontEdge, candidate int, sign float64) r3.Vector {
	t := spatialmath.Triangle{A: edge.to, B: edge.from, C: candidate}
	return t.Normal(r.points).Mul(sign)
}

// pivotAngle measures the rotation about the edge axis taking the ball from
// its previous resting position to the candidate one, in (0, 2*pi).
func pivotAngle(axis, mid, oldCenter, newCenter r3.Vector) float64 {
	v0 := perpendicular(oldCenter.Sub(mid), axis)
	v1 := perpendicular(newCenter.Sub(mid), axis)
	if v0.Norm() < 1e-12 || v1.Norm() < 1e-12 {
		return math.Inf(1)
	}
	angle := math.Atan2(axis.Dot(v0.Cross(v1)), v0.Dot(v1))
	if angle <= 0 {
		angle += 2 * math.Pi
	}
	return angle
}

func perpendicular(v, axis r3.Vector) r3.Vector {
	return v.Sub(axis.Mul(v.Dot(axis)))
}

// neighborIndices returns the indices of all points within radius of the
// target, via the spatial index.
func (r *pivotRun) neighborIndices(target r3.Vector, radius float64) []int {
	pts := r.index.PointsInSphere(target, radius)
	out := make([]int, 0, len(pts))
	for _, p := range pts {
		out = append(out, r.indexOf[p])
	}
	return out
}
