// Command productmeasure measures an object scanned into a PLY point cloud:
// it prints the fitted bounding box dimensions and the volume estimated by
// the selected reconstruction algorithm.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/john-rocky/productmeasure/boundingbox"
	"github.com/john-rocky/productmeasure/measure"
	"github.com/john-rocky/productmeasure/pointcloud"
)

func main() {
	var (
		plyPath    = flag.String("ply", "", "path to a PLY point cloud (required)")
		methodName = flag.String("method", "voxel", "volume algorithm: voxel, alpha-shape, ball-pivoting, all")
		spacing    = flag.Float64("spacing", pointcloud.DefaultMinPointSpacing, "minimum point spacing in meters")
		freeAxes   = flag.Bool("free-orientation", false, "orient the box by 3D PCA instead of locking to world-up")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := golog.NewLogger("productmeasure")
	if *debug {
		logger = golog.NewDevelopmentLogger("productmeasure")
	}
	if err := realMain(*plyPath, *methodName, *spacing, *freeAxes, logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func realMain(plyPath, methodName string, spacing float64, freeAxes bool, logger golog.Logger) error {
	if plyPath == "" {
		return errors.New("missing required -ply argument")
	}
	points, err := pointcloud.NewFromFile(plyPath, logger)
	if err != nil {
		return err
	}
	logger.Infof("loaded %d points from %s", len(points), plyPath)

	engine := measure.NewEngine(spacing, logger)
	kept := engine.AddObservation(points)
	logger.Infof("%d points retained after deduplication", kept)

	policy := boundingbox.PolicyAxisLocked
	if freeAxes {
		policy = boundingbox.PolicyFree
	}
	box := engine.BoundingBox(policy, nil)
	if box == nil {
		return errors.New("too few points to fit a bounding box")
	}
	fmt.Printf("bounding box  %s\n", box)
	fmt.Printf("box volume    %.6f m^3\n", box.Volume())

	if methodName == "all" {
		estimates, err := engine.MeasureAll()
		if err != nil {
			return err
		}
		for _, m := range []measure.Method{
			measure.MethodVoxel, measure.MethodAlphaShape, measure.MethodBallPivoting,
		} {
			printEstimate(estimates[m])
		}
		return nil
	}

	method, err := parseMethod(methodName)
	if err != nil {
		return err
	}
	est, err := engine.Measure(method)
	if err != nil {
		return err
	}
	printEstimate(est)
	return nil
}

func parseMethod(name string) (measure.Method, error) {
	switch name {
	case "voxel":
		return measure.MethodVoxel, nil
	case "alpha-shape":
		return measure.MethodAlphaShape, nil
	case "ball-pivoting":
		return measure.MethodBallPivoting, nil
	default:
		return 0, errors.Errorf("unknown method %q", name)
	}
}

func printEstimate(est measure.Estimate) {
	fmt.Printf("%-13s %.6f m^3 (triangles=%d, watertight=%t, took %s)\n",
		est.Method, est.Volume, est.TriangleCount, est.IsWatertight, est.ProcessingTime)
}
