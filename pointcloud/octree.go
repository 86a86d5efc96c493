// Package pointcloud provides the deduplicating octree spatial index used to
// consolidate depth-sensor observations, plus weighted downsampling and PLY
// exchange for point clouds.
package pointcloud

import (
	"math"
	"sort"
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
)

const (
	// DefaultMinPointSpacing is the minimum distance between two retained
	// points. A new point closer than this to an existing one is treated as
	// a duplicate observation of the same real-world point and dropped.
	DefaultMinPointSpacing = 0.005 // meters

	// maxPointsPerNode is how many points a leaf holds before subdividing.
	maxPointsPerNode = 16

	// minNodeHalfSize stops subdivision; below this, coincident points would
	// otherwise split forever.
	minNodeHalfSize = 0.001 // meters

	// rootMargin pads the root cube around the first batch of points.
	rootMargin = 0.1 // meters

	noChild = int32(-1)
)

// node is one octree cell in the arena. A node is either a leaf (points
// populated, no children) or internal (points empty, all 8 children set).
type node struct {
	center   r3.Vector
	halfSize float64
	points   []r3.Vector
	children [8]int32
	internal bool
}

func (n *node) contains(p r3.Vector) bool {
	return math.Abs(p.X-n.center.X) <= n.halfSize &&
		math.Abs(p.Y-n.center.Y) <= n.halfSize &&
		math.Abs(p.Z-n.center.Z) <= n.halfSize
}

// distanceToCube returns the distance from p to the nearest point of the
// node's cube, zero if p is inside.
func (n *node) distanceToCube(p r3.Vector) float64 {
	dx := math.Max(math.Abs(p.X-n.center.X)-n.halfSize, 0)
	dy := math.Max(math.Abs(p.Y-n.center.Y)-n.halfSize, 0)
	dz := math.Max(math.Abs(p.Z-n.center.Z)-n.halfSize, 0)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// octant returns which of the 8 children of this node p belongs to.
func (n *node) octant(p r3.Vector) int {
	idx := 0
	if p.X >= n.center.X {
		idx |= 1
	}
	if p.Y >= n.center.Y {
		idx |= 2
	}
	if p.Z >= n.center.Z {
		idx |= 4
	}
	return idx
}

func octantOffset(idx int, halfSize float64) r3.Vector {
	off := r3.Vector{X: -halfSize, Y: -halfSize, Z: -halfSize}
	if idx&1 != 0 {
		off.X = halfSize
	}
	if idx&2 != 0 {
		off.Y = halfSize
	}
	if idx&4 != 0 {
		off.Z = halfSize
	}
	return off
}

// SpatialIndex is a deduplicating octree over world-space points. It is the
// one long-lived, stateful piece of the engine: observations from many scan
// frames accumulate into it, and samples of the same physical point collapse
// into a single entry. Inserts are serialized with a write lock; queries may
// run concurrently with each other.
//
// Nodes live in an arena addressed by index rather than behind owning
// pointers; children are 8 index slots with -1 meaning absent.
type SpatialIndex struct {
	mu      sync.RWMutex
	nodes   []node
	root    int32
	size    int
	spacing float64
	logger  golog.Logger
}

// NewSpatialIndex returns an empty index enforcing the given minimum point
// spacing. A spacing of 0 disables deduplication entirely.
func NewSpatialIndex(minPointSpacing float64, logger golog.Logger) *SpatialIndex {
	if logger == nil {
		logger = golog.Global()
	}
	return &SpatialIndex{
		root:    noChild,
		spacing: minPointSpacing,
		logger:  logger,
	}
}

// Size returns the number of retained points.
func (si *SpatialIndex) Size() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.size
}

// Reset discards the whole tree. The index is rebuilt from scratch by the
// next Insert.
func (si *SpatialIndex) Reset() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.logger.Debugf("resetting spatial index, discarding %d points", si.size)
	si.nodes = nil
	si.root = noChild
	si.size = 0
}

// Insert adds the given points, dropping any that land within the minimum
// spacing of an already retained point, and returns how many were actually
// inserted. The root cube grows by doubling as needed to cover points
// outside the current bounds.
func (si *SpatialIndex) Insert(points []r3.Vector) int {
	if len(points) == 0 {
		return 0
	}
	si.mu.Lock()
	defer si.mu.Unlock()

	if si.root == noChild {
		si.initRoot(points)
	}
	inserted := 0
	for _, p := range points {
		for !si.nodes[si.root].contains(p) {
			si.expandRoot(p)
		}
		if si.spacing > 0 && si.hasPointNearLocked(p, si.spacing) {
			continue
		}
		si.insertPoint(si.root, p)
		si.size++
		inserted++
	}
	return inserted
}

// initRoot sizes the root cube to cover the first batch with a margin.
func (si *SpatialIndex) initRoot(points []r3.Vector) {
	min := points[0]
	max := points[0]
	for _, p := range points[1:] {
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		min.Z = math.Min(min.Z, p.Z)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
		max.Z = math.Max(max.Z, p.Z)
	}
	center := min.Add(max).Mul(0.5)
	halfSize := math.Max(max.X-min.X, math.Max(max.Y-min.Y, max.Z-min.Z))/2 + rootMargin
	si.nodes = append(si.nodes[:0], node{
		center:   center,
		halfSize: halfSize,
		children: [8]int32{noChild, noChild, noChild, noChild, noChild, noChild, noChild, noChild},
	})
	si.root = 0
}

// expandRoot doubles the root cube toward p, re-parenting the old root as
// one octant of the new one.
func (si *SpatialIndex) expandRoot(p r3.Vector) {
	old := si.nodes[si.root]
	shift := r3.Vector{X: old.halfSize, Y: old.halfSize, Z: old.halfSize}
	if p.X < old.center.X {
		shift.X = -shift.X
	}
	if p.Y < old.center.Y {
		shift.Y = -shift.Y
	}
	if p.Z < old.center.Z {
		shift.Z = -shift.Z
	}
	newRoot := node{
		center:   old.center.Add(shift),
		halfSize: old.halfSize * 2,
		children: [8]int32{noChild, noChild, noChild, noChild, noChild, noChild, noChild, noChild},
		internal: true,
	}
	// The old root sits at the octant opposite the growth direction.
	oldIdx := newRoot.octant(old.center)
	newRoot.children[oldIdx] = si.root
	si.nodes = append(si.nodes, newRoot)
	si.root = int32(len(si.nodes) - 1)
	// The other 7 octants start as empty leaves.
	for i := range si.nodes[si.root].children {
		if si.nodes[si.root].children[i] != noChild {
			continue
		}
		child := node{
			center:   si.nodes[si.root].center.Add(octantOffset(i, old.halfSize)),
			halfSize: old.halfSize,
			children: [8]int32{noChild, noChild, noChild, noChild, noChild, noChild, noChild, noChild},
		}
		si.nodes = append(si.nodes, child)
		si.nodes[si.root].children[i] = int32(len(si.nodes) - 1)
	}
}

func (si *SpatialIndex) insertPoint(idx int32, p r3.Vector) {
	for {
		n := &si.nodes[idx]
		if n.internal {
			idx = n.children[n.octant(p)]
			continue
		}
		if len(n.points) < maxPointsPerNode || n.halfSize <= minNodeHalfSize {
			n.points = append(n.points, p)
			return
		}
		si.subdivide(idx)
		// idx is now internal; descend on the next iteration.
	}
}

// subdivide turns a full leaf into an internal node, redistributing its
// points into 8 new leaves.
func (si *SpatialIndex) subdivide(idx int32) {
	points := si.nodes[idx].points
	center := si.nodes[idx].center
	halfSize := si.nodes[idx].halfSize / 2
	var children [8]int32
	for i := 0; i < 8; i++ {
		child := node{
			center:   center.Add(octantOffset(i, halfSize)),
			halfSize: halfSize,
			children: [8]int32{noChild, noChild, noChild, noChild, noChild, noChild, noChild, noChild},
		}
		si.nodes = append(si.nodes, child)
		children[i] = int32(len(si.nodes) - 1)
	}
	// Appends above may have moved the arena; re-take the pointer.
	n := &si.nodes[idx]
	n.internal = true
	n.points = nil
	n.children = children
	for _, p := range points {
		ci := children[n.octant(p)]
		si.nodes[ci].points = append(si.nodes[ci].points, p)
	}
}

// Points returns all retained points.
func (si *SpatialIndex) Points() []r3.Vector {
	si.mu.RLock()
	defer si.mu.RUnlock()
	out := make([]r3.Vector, 0, si.size)
	if si.root == noChild {
		return out
	}
	si.collect(si.root, &out)
	return out
}

func (si *SpatialIndex) collect(idx int32, out *[]r3.Vector) {
	n := &si.nodes[idx]
	if !n.internal {
		*out = append(*out, n.points...)
		return
	}
	for _, c := range n.children {
		if c != noChild {
			si.collect(c, out)
		}
	}
}

// PointsInSphere returns all retained points within radius of center.
func (si *SpatialIndex) PointsInSphere(center r3.Vector, radius float64) []r3.Vector {
	si.mu.RLock()
	defer si.mu.RUnlock()
	var out []r3.Vector
	if si.root != noChild {
		si.searchSphere(si.root, center, radius, &out)
	}
	return out
}

func (si *SpatialIndex) searchSphere(idx int32, center r3.Vector, radius float64, out *[]r3.Vector) {
	n := &si.nodes[idx]
	if n.distanceToCube(center) > radius {
		return
	}
	if !n.internal {
		for _, p := range n.points {
			if p.Sub(center).Norm() <= radius {
				*out = append(*out, p)
			}
		}
		return
	}
	for _, c := range n.children {
		if c != noChild {
			si.searchSphere(c, center, radius, out)
		}
	}
}

// HasPointNear reports whether any retained point lies within distance of
// target.
func (si *SpatialIndex) HasPointNear(target r3.Vector, distance float64) bool {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return si.hasPointNearLocked(target, distance)
}

func (si *SpatialIndex) hasPointNearLocked(target r3.Vector, distance float64) bool {
	if si.root == noChild {
		return false
	}
	return si.searchNear(si.root, target, distance)
}

func (si *SpatialIndex) searchNear(idx int32, target r3.Vector, distance float64) bool {
	n := &si.nodes[idx]
	if n.distanceToCube(target) > distance {
		return false
	}
	if !n.internal {
		for _, p := range n.points {
			if p.Sub(target).Norm() < distance {
				return true
			}
		}
		return false
	}
	for _, c := range n.children {
		if c != noChild && si.searchNear(c, target, distance) {
			return true
		}
	}
	return false
}

// KNearest returns up to k retained points closest to target, ordered
// nearest first. Children are visited nearest-cube-first and pruned against
// the current k-th best distance.
func (si *SpatialIndex) KNearest(target r3.Vector, k int) []r3.Vector {
	si.mu.RLock()
	defer si.mu.RUnlock()
	if si.root == noChild || k <= 0 {
		return nil
	}
	best := &kBest{k: k}
	si.searchKNearest(si.root, target, best)
	out := make([]r3.Vector, len(best.entries))
	for i, e := range best.entries {
		out[i] = e.p
	}
	return out
}

type kEntry struct {
	p    r3.Vector
	dist float64
}

// kBest keeps the k nearest candidates in sorted order. k is small (10 for
// normal estimation) so insertion into a slice beats a heap here.
type kBest struct {
	k       int
	entries []kEntry
}

func (b *kBest) worst() float64 {
	if len(b.entries) < b.k {
		return math.Inf(1)
	}
	return b.entries[len(b.entries)-1].dist
}

func (b *kBest) add(p r3.Vector, dist float64) {
	i := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].dist > dist })
	b.entries = append(b.entries, kEntry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = kEntry{p: p, dist: dist}
	if len(b.entries) > b.k {
		b.entries = b.entries[:b.k]
	}
}

func (si *SpatialIndex) searchKNearest(idx int32, target r3.Vector, best *kBest) {
	n := &si.nodes[idx]
	if n.distanceToCube(target) > best.worst() {
		return
	}
	if !n.internal {
		for _, p := range n.points {
			d := p.Sub(target).Norm()
			if d < best.worst() {
				best.add(p, d)
			}
		}
		return
	}
	type childDist struct {
		idx  int32
		dist float64
	}
	order := make([]childDist, 0, 8)
	for _, c := range n.children {
		if c != noChild {
			order = append(order, childDist{c, si.nodes[c].distanceToCube(target)})
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].dist < order[j].dist })
	for _, cd := range order {
		if cd.dist > best.worst() {
			break
		}
		si.searchKNearest(cd.idx, target, best)
	}
}
