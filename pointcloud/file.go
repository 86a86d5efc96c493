package pointcloud

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chenzhekl/goply"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// NewFromFile reads a point cloud from the given file. Only PLY is
// supported; it is the exchange format between the capture side and this
// engine.
func NewFromFile(fn string, logger golog.Logger) ([]r3.Vector, error) {
	switch filepath.Ext(fn) {
	case ".ply":
		return NewFromPLYFile(fn, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// NewFromPLYFile reads the vertex element of a PLY file into a point slice.
func NewFromPLYFile(fn string, logger golog.Logger) (points []r3.Vector, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadPLY(f, logger)
}

// ReadPLY reads the vertex element of PLY data into a point slice. Vertices
// with missing or non-numeric coordinates are skipped with a warning rather
// than failing the whole read.
func ReadPLY(r io.Reader, logger golog.Logger) ([]r3.Vector, error) {
	if logger == nil {
		logger = golog.Global()
	}
	ply := goply.New(r)
	vertices := ply.Elements("vertex")
	points := make([]r3.Vector, 0, len(vertices))
	skipped := 0
	for _, v := range vertices {
		x, okX := plyFloat(v["x"])
		y, okY := plyFloat(v["y"])
		z, okZ := plyFloat(v["z"])
		if !okX || !okY || !okZ {
			skipped++
			continue
		}
		points = append(points, r3.Vector{X: x, Y: y, Z: z})
	}
	if skipped > 0 {
		logger.Warnf("skipped %d PLY vertices with unusable coordinates", skipped)
	}
	return points, nil
}

func plyFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// WritePLYFile writes the points to fn as ASCII PLY.
func WritePLYFile(fn string, points []r3.Vector) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WritePLY(f, points)
}

// WritePLY writes the points to w as ASCII PLY with a single vertex element.
func WritePLY(w io.Writer, points []r3.Vector) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw,
		"ply\nformat ascii 1.0\nelement vertex %d\n"+
			"property float x\nproperty float y\nproperty float z\nend_header\n",
		len(points)); err != nil {
		return err
	}
	for _, p := range points {
		if _, err := fmt.Fprintf(bw, "%f %f %f\n", p.X, p.Y, p.Z); err != nil {
			return err
		}
	}
	return bw.Flush()
}
