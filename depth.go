package guidedfilter

import (
	"fmt"

	"github.com/gogpu/guidedfilter/internal/satcompute"
)

// DepthConfig configures a DepthFilter: the guided filter parameters plus
// the camera model used for point cloud back-projection.
type DepthConfig struct {
	Config

	// FocalLength of the pinhole camera model, in pixels.
	FocalLength float32

	// DepthScaling converts raw 16-bit depth units to the working unit,
	// for example 1e-3 for a millimeter sensor and meter output.
	DepthScaling float32

	// NormalizeColors divides point colors by their channel sum when
	// building colored clouds, removing global illumination differences.
	NormalizeColors bool
}

// DefaultDepthConfig returns a depth filter configuration for a Kinect-class
// sensor: millimeter depth units, 525 px focal length, zero-out enabled so
// depth holes survive the filter.
func DefaultDepthConfig(width, height int) DepthConfig {
	cfg := DefaultConfig(width, height)
	cfg.ZeroOut = true
	return DepthConfig{
		Config:       cfg,
		FocalLength:  525,
		DepthScaling: 1e-3,
	}
}

// Validate checks the camera parameters on top of the base configuration
// rules.
func (c DepthConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.FocalLength <= 0 {
		return fmt.Errorf("guidedfilter: focal length must be positive, got %g: %w", c.FocalLength, ErrConfig)
	}
	if c.DepthScaling == 0 {
		return fmt.Errorf("guidedfilter: depth scaling must be nonzero: %w", ErrConfig)
	}
	return nil
}

// DepthFilter refines raw 16-bit depth maps with the guided filter and
// back-projects them into point clouds.
type DepthFilter struct {
	cfg DepthConfig
	f   *Filter
}

// NewDepthFilter creates a depth filter with the given configuration.
func NewDepthFilter(cfg DepthConfig) (*DepthFilter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f, err := New(cfg.Config)
	if err != nil {
		return nil, err
	}
	return &DepthFilter{cfg: cfg, f: f}, nil
}

// Config returns the filter's current configuration.
func (d *DepthFilter) Config() DepthConfig {
	cfg := d.cfg
	cfg.Config = d.f.Config()
	return cfg
}

// SetRadius changes the smoothing window radius.
func (d *DepthFilter) SetRadius(radius int) error {
	return d.f.SetRadius(radius)
}

// SetEps changes the variance regularization.
func (d *DepthFilter) SetEps(eps float32) error {
	return d.f.SetEps(eps)
}

// Refine converts raw depth to the working unit and smooths it under its own
// structure, keeping exact zeros where the sensor reported none.
func (d *DepthFilter) Refine(dst *Plane, depth []uint16) error {
	if err := d.checkDepth(dst, depth); err != nil {
		return err
	}
	satcompute.DepthToFloat(dst.data, depth, d.cfg.DepthScaling)
	return d.f.Apply(dst, dst)
}

// RefineGuided converts raw depth to the working unit and smooths it under
// the structure of an intensity guide, typically a grayscale of the aligned
// color image.
func (d *DepthFilter) RefineGuided(dst, guide *Plane, depth []uint16) error {
	if err := d.checkDepth(dst, depth); err != nil {
		return err
	}
	satcompute.DepthToFloat(dst.data, depth, d.cfg.DepthScaling)
	return d.f.ApplyGuided(dst, guide, dst)
}

// PointCloud back-projects a refined depth plane through the camera model
// into homogeneous 4-float points. points must hold Width*Height records.
func (d *DepthFilter) PointCloud(points [][4]float32, depth *Plane) error {
	if err := d.f.checkPlane(depth); err != nil {
		return err
	}
	if len(points) != d.cfg.pixels() {
		return fmt.Errorf("guidedfilter: point buffer holds %d records, want %d: %w",
			len(points), d.cfg.pixels(), ErrConfig)
	}
	satcompute.DepthTo3D(points, depth.data, d.cfg.Width, d.cfg.Height, d.cfg.FocalLength, 1)
	return nil
}

// ColoredPointCloud fuses a refined depth plane and three color planes into
// 8-float point records: homogeneous geometry then RGBA color.
func (d *DepthFilter) ColoredPointCloud(points [][8]float32, depth, r, g, b *Plane) error {
	for _, pl := range []*Plane{depth, r, g, b} {
		if err := d.f.checkPlane(pl); err != nil {
			return err
		}
	}
	if len(points) != d.cfg.pixels() {
		return fmt.Errorf("guidedfilter: point buffer holds %d records, want %d: %w",
			len(points), d.cfg.pixels(), ErrConfig)
	}
	satcompute.RGBDTo8D(points, depth.data, r.data, g.data, b.data,
		d.cfg.Width, d.cfg.Height, d.cfg.FocalLength, 1, d.cfg.NormalizeColors)
	return nil
}

// Close marks the filter closed.
func (d *DepthFilter) Close() error {
	return d.f.Close()
}

func (d *DepthFilter) checkDepth(dst *Plane, depth []uint16) error {
	if err := d.f.checkPlane(dst); err != nil {
		return err
	}
	if len(depth) != d.cfg.pixels() {
		return fmt.Errorf("guidedfilter: depth map holds %d samples, want %d: %w",
			len(depth), d.cfg.pixels(), ErrConfig)
	}
	return nil
}
