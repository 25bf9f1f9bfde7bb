//go:build !nogpu

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/imageio"
)

// NewDepthCmd creates the depth cobra command.
func NewDepthCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depth",
		Short: "Refine a 16-bit depth map",
		Long: "Loads a 16-bit grayscale depth map, smooths it with the guided filter while\n" +
			"keeping invalid (zero) samples at zero, and writes the refined map as a\n" +
			"16-bit PNG. With --guide the depth is smoothed under the structure of an\n" +
			"aligned color image. --cloud additionally back-projects the refined depth\n" +
			"through the camera model into an ASCII point cloud.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			guide, _ := cmd.Flags().GetString("guide")
			cloud, _ := cmd.Flags().GetString("cloud")
			radius, _ := cmd.Flags().GetInt("radius")
			eps, _ := cmd.Flags().GetFloat32("eps")
			focal, _ := cmd.Flags().GetFloat32("focal")
			scale, _ := cmd.Flags().GetFloat32("depth-scale")

			if in == "" && len(args) > 0 {
				in = args[0]
			}
			if in == "" {
				return fmt.Errorf("input depth map is required. Use --in flag or provide as argument")
			}
			if out == "" {
				out = outputName(in, "_refined")
			}
			return runDepth(ctx, in, guide, out, cloud, radius, eps, focal, scale)
		},
	}

	pf := cmd.Flags()
	pf.StringP("in", "i", "", "input 16-bit depth PNG")
	pf.StringP("out", "o", "", "output PNG path (default: input name + _refined)")
	pf.StringP("guide", "g", "", "aligned color image guiding the refinement")
	pf.IntP("radius", "r", 4, "smoothing window radius")
	pf.Float32("eps", 0.01, "variance regularization")
	pf.Float32("focal", 525, "focal length of the camera model, in pixels")
	pf.Float32("depth-scale", 1e-3, "working units per raw depth unit")
	pf.String("cloud", "", "also export the refined depth as an ASCII point cloud")
	return cmd
}

func runDepth(ctx context.Context, inPath, guidePath, outPath, cloudPath string, radius int, eps, focal, scale float32) error {
	img, err := loadOnGrid(ctx, inPath)
	if err != nil {
		return err
	}
	raw, width, height := imageio.Depth16(img)

	dcfg := guidedfilter.DefaultDepthConfig(width, height)
	dcfg.Radius = radius
	dcfg.Eps = eps
	dcfg.FocalLength = focal
	dcfg.DepthScaling = scale

	df, err := guidedfilter.NewDepthFilter(dcfg)
	if err != nil {
		return err
	}

	refined := guidedfilter.NewPlane(width, height)
	if guidePath != "" {
		gimg, err := loadOnGrid(ctx, guidePath)
		if err != nil {
			return err
		}
		gb := gimg.Bounds()
		if gb.Dx() != width || gb.Dy() != height {
			return fmt.Errorf("guide is %dx%d, depth is %dx%d", gb.Dx(), gb.Dy(), width, height)
		}
		err = df.RefineGuided(refined, imageio.Gray(gimg), raw)
	} else {
		err = df.Refine(refined, raw)
	}
	if err != nil {
		return err
	}

	if err := imageio.SavePNG(outPath, imageio.Depth16Image(refined, scale)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "refined depth written",
		"in", inPath, "out", outPath,
		"size", fmt.Sprintf("%dx%d", width, height),
		"radius", radius, "eps", eps)

	if cloudPath != "" {
		kept, err := exportCloud(cloudPath, df, refined)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "point cloud written", "path", cloudPath, "points", kept)
	}
	return nil
}

// exportCloud back-projects a refined depth plane into a CloudCompare
// compatible ASCII file, skipping invalid (zero-depth) points. It returns the
// number of points written.
func exportCloud(path string, df *guidedfilter.DepthFilter, depth *guidedfilter.Plane) (int, error) {
	cfg := df.Config()
	points := make([][4]float32, cfg.Width*cfg.Height)
	if err := df.PointCloud(points, depth); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fmt.Fprintf(f, "# Refined depth point cloud\n")
	fmt.Fprintf(f, "# Format: X Y Z\n")
	kept := 0
	for _, p := range points {
		if p[2] == 0 {
			continue
		}
		fmt.Fprintf(f, "%.6f %.6f %.6f\n", p[0], p[1], p[2])
		kept++
	}
	return kept, nil
}
