package voxelize

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// cubeShellPoints samples the faces of a unit cube on a regular grid. Faces
// lists which of the six sides to include, in the order -Z, +Z, -Y, +Y, -X,
// +X; a closed shell includes all of them.
func cubeShellPoints(spacing float64, faces [6]bool) []r3.Vector {
	seen := map[[3]int]bool{}
	var points []r3.Vector
	add := func(p r3.Vector) {
		key := [3]int{int(p.X/spacing + 0.5), int(p.Y/spacing + 0.5), int(p.Z/spacing + 0.5)}
		if seen[key] {
			return
		}
		seen[key] = true
		points = append(points, p)
	}
	n := int(1/spacing) + 1
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			u, v := float64(i)*spacing, float64(j)*spacing
			if faces[0] {
				add(r3.Vector{X: u, Y: v, Z: 0})
			}
			if faces[1] {
				add(r3.Vector{X: u, Y: v, Z: 1})
			}
			if faces[2] {
				add(r3.Vector{X: u, Y: 0, Z: v})
			}
			if faces[3] {
				add(r3.Vector{X: u, Y: 1, Z: v})
			}
			if faces[4] {
				add(r3.Vector{X: 0, Y: u, Z: v})
			}
			if faces[5] {
				add(r3.Vector{X: 1, Y: u, Z: v})
			}
		}
	}
	return points
}

func TestCalculateVolumeTooFewPoints(t *testing.T) {
	c := NewCalculator(golog.NewTestLogger(t))
	result := c.CalculateVolume([]r3.Vector{{}, {X: 1}, {Y: 1}}, 0)
	test.That(t, result.OccupiedCount, test.ShouldEqual, 0)
	test.That(t, result.Volume, test.ShouldEqual, 0)
	test.That(t, result.VoxelSize, test.ShouldEqual, DefaultVoxelSize)
	test.That(t, result.IsWatertight, test.ShouldBeFalse)
}

func TestCalculateVolumeClosedCube(t *testing.T) {
	c := NewCalculator(golog.NewTestLogger(t))
	// The 1/16 m spacing is exactly representable, so every sample maps to
	// its own grid cell with no rounding slop.
	points := cubeShellPoints(0.0625, [6]bool{true, true, true, true, true, true})

	result := c.CalculateVolume(points, 0.0625)
	// A 1 m cube at 1/16 m cells spans 17 cells per axis; the shell is the
	// outer layer and the interior fill closes the remaining 15^3.
	test.That(t, result.OccupiedCount, test.ShouldEqual, 17*17*17)
	test.That(t, result.InteriorCount, test.ShouldEqual, 15*15*15)
	test.That(t, result.Volume, test.ShouldAlmostEqual, 17*17*17*0.0625*0.0625*0.0625, 1e-9)
	test.That(t, result.IsWatertight, test.ShouldBeTrue)
	test.That(t, result.ProcessingTime, test.ShouldBeGreaterThan, 0)

	// Every shell cell touches empty space, so the surface sample is the
	// full shell.
	test.That(t, len(result.SurfaceVoxels), test.ShouldEqual, 17*17*17-15*15*15)
}

func TestCalculateVolumeOpenShellLeaks(t *testing.T) {
	c := NewCalculator(golog.NewTestLogger(t))
	// Missing top face: the flood fill reaches the inside, so nothing is
	// closed and only the shell cells count.
	points := cubeShellPoints(0.0625, [6]bool{true, false, true, true, true, true})

	result := c.CalculateVolume(points, 0.0625)
	test.That(t, result.InteriorCount, test.ShouldEqual, 0)
	test.That(t, result.IsWatertight, test.ShouldBeFalse)
	test.That(t, result.Volume, test.ShouldAlmostEqual,
		float64(result.OccupiedCount)*0.0625*0.0625*0.0625, 1e-9)
	test.That(t, result.Volume, test.ShouldBeLessThan, 0.5)
}

func TestCalculateVolumeCoarsensOversizedGrid(t *testing.T) {
	c := NewCalculator(golog.NewTestLogger(t))
	// A 10 m span at 1 cm cells would need a 1000-cell axis; the cell size
	// must coarsen to fit the cap.
	points := make([]r3.Vector, 20)
	for i := range points {
		points[i] = r3.Vector{X: float64(i) * 0.5}
	}
	result := c.CalculateVolume(points, 0.01)
	test.That(t, result.VoxelSize, test.ShouldAlmostEqual, 9.5/(maxGridCells-1), 1e-12)
	test.That(t, result.OccupiedCount, test.ShouldBeGreaterThan, 0)
	test.That(t, result.IsWatertight, test.ShouldBeFalse)
}

func TestCalculateVolumeCoarseningRespectsCellCap(t *testing.T) {
	c := NewCalculator(golog.NewTestLogger(t))
	// A 5 m span at 1 cm cells sits right at the cap; the coarsened size
	// must still keep floor(span/size)+1 within maxGridCells per axis.
	points := make([]r3.Vector, 11)
	for i := range points {
		points[i] = r3.Vector{X: float64(i) * 0.5}
	}
	result := c.CalculateVolume(points, 0.01)
	test.That(t, int(5.0/result.VoxelSize)+1, test.ShouldBeLessThanOrEqualTo, maxGridCells)
	test.That(t, result.OccupiedCount, test.ShouldEqual, 11)
}

func TestVoxelOf(t *testing.T) {
	min := r3.Vector{X: -1, Y: -1, Z: -1}
	v := voxelOf(r3.Vector{X: 0, Y: -0.95, Z: 1}, min, 0.1)
	test.That(t, v, test.ShouldResemble, VoxelIndex{I: 10, J: 0, K: 20})
}
