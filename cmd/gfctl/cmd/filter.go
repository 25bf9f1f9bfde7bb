//go:build !nogpu

package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/imageio"
)

// NewFilterCmd creates the filter cobra command.
func NewFilterCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Smooth an image with the guided filter",
		Long: "Loads an image, resamples it onto the 16-pixel grid the filter requires,\n" +
			"smooths it edge-preservingly and writes the result as PNG. With --guide the\n" +
			"image is smoothed under the structure of a second image instead of its own.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			guide, _ := cmd.Flags().GetString("guide")
			radius, _ := cmd.Flags().GetInt("radius")
			eps, _ := cmd.Flags().GetFloat32("eps")
			gray, _ := cmd.Flags().GetBool("gray")

			if in == "" && len(args) > 0 {
				in = args[0]
			}
			if in == "" {
				return fmt.Errorf("input image is required. Use --in flag or provide as argument")
			}
			if out == "" {
				out = outputName(in, "_filtered")
			}
			return runFilter(ctx, in, guide, out, radius, eps, gray)
		},
	}

	pf := cmd.Flags()
	pf.StringP("in", "i", "", "input image (PNG or JPEG)")
	pf.StringP("out", "o", "", "output PNG path (default: input name + _filtered)")
	pf.StringP("guide", "g", "", "guide image for cross-guided filtering")
	pf.IntP("radius", "r", 4, "smoothing window radius")
	pf.Float32("eps", 0.01, "variance regularization; larger smooths more")
	pf.Bool("gray", false, "filter the luma plane only and write a grayscale PNG")
	return cmd
}

func runFilter(ctx context.Context, inPath, guidePath, outPath string, radius int, eps float32, gray bool) error {
	img, err := loadOnGrid(ctx, inPath)
	if err != nil {
		return err
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	cfg := guidedfilter.DefaultConfig(width, height)
	cfg.Radius = radius
	cfg.Eps = eps

	var guide *guidedfilter.Plane
	if guidePath != "" {
		gimg, err := loadOnGrid(ctx, guidePath)
		if err != nil {
			return err
		}
		gb := gimg.Bounds()
		if gb.Dx() != width || gb.Dy() != height {
			return fmt.Errorf("guide is %dx%d, input is %dx%d", gb.Dx(), gb.Dy(), width, height)
		}
		guide = imageio.Gray(gimg)
	}

	var result image.Image
	switch {
	case gray:
		f, err := guidedfilter.New(cfg)
		if err != nil {
			return err
		}
		p := imageio.Gray(img)
		if guide != nil {
			err = f.ApplyGuided(p, guide, p)
		} else {
			err = f.Apply(p, p)
		}
		if err != nil {
			return err
		}
		result = imageio.GrayImage(p)

	case guide != nil:
		f, err := guidedfilter.New(cfg)
		if err != nil {
			return err
		}
		rp, gp, bp := imageio.Planes(img)
		for _, pl := range []*guidedfilter.Plane{rp, gp, bp} {
			if err := f.ApplyGuided(pl, guide, pl); err != nil {
				return err
			}
		}
		result, err = imageio.Compose(rp, gp, bp)
		if err != nil {
			return err
		}

	default:
		rf, err := guidedfilter.NewRGBFilter(cfg)
		if err != nil {
			return err
		}
		data, w, h := imageio.Interleaved(img)
		if err := rf.Apply(data, data); err != nil {
			return err
		}
		result, err = imageio.FromInterleaved(data, w, h)
		if err != nil {
			return err
		}
	}

	if err := imageio.SavePNG(outPath, result); err != nil {
		return err
	}
	slog.InfoContext(ctx, "filtered image written",
		"in", inPath, "out", outPath,
		"size", fmt.Sprintf("%dx%d", width, height),
		"radius", radius, "eps", eps)
	return nil
}

// loadOnGrid loads an image and resamples it down to the filter grid when its
// extent is not a multiple of 16.
func loadOnGrid(ctx context.Context, path string) (image.Image, error) {
	img, err := imageio.Load(path)
	if err != nil {
		return nil, err
	}
	snapped, err := imageio.SnapToGrid(img)
	if err != nil {
		return nil, err
	}
	if !snapped.Bounds().Eq(img.Bounds()) {
		slog.InfoContext(ctx, "resampled image onto the filter grid",
			"path", path,
			"from", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()),
			"to", fmt.Sprintf("%dx%d", snapped.Bounds().Dx(), snapped.Bounds().Dy()))
	}
	return snapped, nil
}

// outputName derives an output path from the input name: photo.jpg becomes
// photo<suffix>.png.
func outputName(in, suffix string) string {
	return strings.TrimSuffix(in, filepath.Ext(in)) + suffix + ".png"
}
