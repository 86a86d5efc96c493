// Package voxelize estimates object volume by rasterizing a point cloud
// into a sparse occupancy grid and flood-filling the enclosed interior.
package voxelize

import (
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
)

const (
	// DefaultVoxelSize is the edge length of a grid cell.
	DefaultVoxelSize = 0.01 // meters
	// maxGridCells bounds each grid dimension; the voxel size is coarsened
	// to stay within it.
	maxGridCells = 500
	// minPoints below which no volume is computed.
	minPoints = 10
	// maxSurfaceVoxels caps the surface sample returned for display.
	maxSurfaceVoxels = 5000
)

// VoxelIndex identifies a cubic grid cell.
type VoxelIndex struct {
	I, J, K int64
}

// Result is the outcome of a voxel volume computation. A zero OccupiedCount
// means the input was insufficient.
type Result struct {
	Volume         float64 // cubic meters
	VoxelSize      float64
	OccupiedCount  int
	InteriorCount  int
	SurfaceVoxels  []r3.Vector // cell centers, subsampled for display
	IsWatertight   bool
	ProcessingTime time.Duration
}

// Calculator computes voxel volumes. It is stateless and safe for
// concurrent use; each call owns a private grid.
type Calculator struct {
	logger golog.Logger
}

// NewCalculator returns a voxel volume calculator.
func NewCalculator(logger golog.Logger) *Calculator {
	if logger == nil {
		logger = golog.Global()
	}
	return &Calculator{logger: logger}
}

// CalculateVolume voxelizes the points at the given cell size (<= 0 selects
// DefaultVoxelSize), marks cells containing points as occupied, closes the
// enclosed interior with an exterior flood fill, and returns occupied-cell
// count times cell volume. The cell size is automatically coarsened when
// the grid would exceed the per-dimension cap.
func (c *Calculator) CalculateVolume(points []r3.Vector, voxelSize float64) Result {
	start := time.Now()
	if voxelSize <= 0 {
		voxelSize = DefaultVoxelSize
	}
	result := Result{VoxelSize: voxelSize}
	if len(points) < minPoints {
		result.ProcessingTime = time.Since(start)
		return result
	}

	min, max := bounds(points)
	span := max.Sub(min)
	maxSpan := math.Max(span.X, math.Max(span.Y, span.Z))
	// A dimension spans floor(span/size)+1 cells, so the ratio must stay at
	// or below maxGridCells-1.
	if maxSpan/voxelSize > maxGridCells-1 {
		coarsened := maxSpan / (maxGridCells - 1)
		c.logger.Warnf("voxel size %.4f m would exceed %d^3 cells, coarsening to %.4f m",
			voxelSize, maxGridCells, coarsened)
		voxelSize = coarsened
		result.VoxelSize = voxelSize
	}

	grid := newOccupancyGrid(
		int(math.Floor(span.X/voxelSize))+1,
		int(math.Floor(span.Y/voxelSize))+1,
		int(math.Floor(span.Z/voxelSize))+1,
	)
	for _, p := range points {
		grid.occupy(voxelOf(p, min, voxelSize))
	}

	interior := grid.fillInterior()

	result.OccupiedCount = grid.occupiedCount
	result.InteriorCount = interior
	result.Volume = float64(grid.occupiedCount) * voxelSize * voxelSize * voxelSize
	// A closed scan encloses interior cells; a shell with holes leaks the
	// flood fill inside and closes nothing.
	result.IsWatertight = interior > 0
	result.SurfaceVoxels = grid.surfaceVoxels(min, voxelSize)
	result.ProcessingTime = time.Since(start)
	c.logger.Debugf("voxel volume: size=%.4f m, %d occupied (%d interior), volume=%.6f m^3",
		voxelSize, result.OccupiedCount, result.InteriorCount, result.Volume)
	return result
}

func voxelOf(p, min r3.Vector, voxelSize float64) VoxelIndex {
	return VoxelIndex{
		I: int64(math.Floor((p.X - min.X) / voxelSize)),
		J: int64(math.Floor((p.Y - min.Y) / voxelSize)),
		K: int64(math.Floor((p.Z - min.Z) / voxelSize)),
	}
}

// occupancyGrid is a dense bitset grid with a one-cell exterior pad on
// every side, so the flood fill can start from a guaranteed-empty corner.
// Dense storage keeps the fill linear even at the per-dimension cap, where
// a hash-set grid would thrash.
type occupancyGrid struct {
	nx, ny, nz    int // inner dimensions, without padding
	px, py, pz    int // padded dimensions
	occupied      bitset
	exterior      bitset
	occupiedCount int
}

func newOccupancyGrid(nx, ny, nz int) *occupancyGrid {
	px, py, pz := nx+2, ny+2, nz+2
	n := px * py * pz
	return &occupancyGrid{
		nx: nx, ny: ny, nz: nz,
		px: px, py: py, pz: pz,
		occupied: newBitset(n),
		exterior: newBitset(n),
	}
}

// cell maps padded coordinates (-1..n) to a linear index.
func (g *occupancyGrid) cell(i, j, k int) int {
	return ((i+1)*g.py+(j+1))*g.pz + (k + 1)
}

func (g *occupancyGrid) occupy(v VoxelIndex) {
	idx := g.cell(int(v.I), int(v.J), int(v.K))
	if !g.occupied.get(idx) {
		g.occupied.set(idx)
		g.occupiedCount++
	}
}

// fillInterior flood-fills the empty space 6-connectedly from the padding,
// marks every reachable cell exterior, then turns each unreached empty cell
// into an occupied interior cell. Returns the interior cell count.
func (g *occupancyGrid) fillInterior() int {
	stack := []int{g.cell(-1, -1, -1)}
	g.exterior.set(stack[0])
	strideI := g.py * g.pz
	strideJ := g.pz
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		i := idx/strideI - 1
		j := (idx/strideJ)%g.py - 1
		k := idx%g.pz - 1
		for _, d := range [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}} {
			ni, nj, nk := i+d[0], j+d[1], k+d[2]
			if ni < -1 || ni > g.nx || nj < -1 || nj > g.ny || nk < -1 || nk > g.nz {
				continue
			}
			nidx := g.cell(ni, nj, nk)
			if g.occupied.get(nidx) || g.exterior.get(nidx) {
				continue
			}
			g.exterior.set(nidx)
			stack = append(stack, nidx)
		}
	}

	interior := 0
	for i := 0; i < g.nx; i++ {
		for j := 0; j < g.ny; j++ {
			for k := 0; k < g.nz; k++ {
				idx := g.cell(i, j, k)
				if !g.occupied.get(idx) && !g.exterior.get(idx) {
					g.occupied.set(idx)
					g.occupiedCount++
					interior++
				}
			}
		}
	}
	return interior
}

// surfaceVoxels returns the centers of occupied cells with at least one
// empty 6-neighbor, subsampled to the display cap. These are for
// visualization only and do not affect the volume.
func (g *occupancyGrid) surfaceVoxels(min r3.Vector, voxelSize float64) []r3.Vector {
	var surface []VoxelIndex
	for i := 0; i < g.nx; i++ {
		for j := 0; j < g.ny; j++ {
			for k := 0; k < g.nz; k++ {
				if !g.occupied.get(g.cell(i, j, k)) {
					continue
				}
				open := !g.occupied.get(g.cell(i+1, j, k)) ||
					!g.occupied.get(g.cell(i-1, j, k)) ||
					!g.occupied.get(g.cell(i, j+1, k)) ||
					!g.occupied.get(g.cell(i, j-1, k)) ||
					!g.occupied.get(g.cell(i, j, k+1)) ||
					!g.occupied.get(g.cell(i, j, k-1))
				if open {
					surface = append(surface, VoxelIndex{int64(i), int64(j), int64(k)})
				}
			}
		}
	}
	step := 1
	if len(surface) > maxSurfaceVoxels {
		step = (len(surface) + maxSurfaceVoxels - 1) / maxSurfaceVoxels
	}
	out := make([]r3.Vector, 0, maxSurfaceVoxels)
	for i := 0; i < len(surface); i += step {
		v := surface[i]
		out = append(out, r3.Vector{
			X: min.X + (float64(v.I)+0.5)*voxelSize,
			Y: min.Y + (float64(v.J)+0.5)*voxelSize,
			Z: min.Z + (float64(v.K)+0.5)*voxelSize,
		})
	}
	return out
}

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) get(i int) bool {
	return b[i/64]&(1<<(uint(i)%64)) != 0
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
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
