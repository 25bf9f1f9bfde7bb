package guidedfilter

import (
	"errors"
	"fmt"

	"github.com/gogpu/guidedfilter/internal/satcompute"
)

// ErrConfig is the class of configuration errors: zeroed or misaligned
// dimensions, out-of-range parameters, unusable staging modes. Test with
// errors.Is.
var ErrConfig = errors.New("invalid configuration")

// GridSize is the pixel alignment the filter requires: plane width and
// height must both be multiples of it. It is the side of the box filter's
// work group, and a multiple-of-GridSize extent also satisfies the 4-wide
// vector kernels and every transpose tile size.
const GridSize = 16

// A scan row is limited to one full block of blocks.
const maxScanExtent = satcompute.ScanBlockElems * satcompute.ScanBlockElems

// Staging selects which host-visible staging buffers a pipeline allocates,
// and therefore which directions of host I/O its Write/Read perform.
type Staging uint8

const (
	// StagingNone allocates no staging buffers. The pipeline only works on
	// device buffers bound from other pipelines.
	StagingNone Staging = iota

	// StagingIn stages host writes into the input buffers.
	StagingIn

	// StagingOut stages device results back to the host.
	StagingOut

	// StagingInOut stages both directions. This is what standalone use of a
	// pipeline needs.
	StagingInOut
)

func (s Staging) String() string {
	switch s {
	case StagingNone:
		return "none"
	case StagingIn:
		return "in"
	case StagingOut:
		return "out"
	case StagingInOut:
		return "inout"
	default:
		return fmt.Sprintf("staging(%d)", int(s))
	}
}

// Config holds the parameters of a guided filter pipeline. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	// Width and Height of the image planes, in pixels. Both must be
	// multiples of 16 so that every kernel's dispatch grid divides evenly.
	Width  int
	Height int

	// Radius of the square smoothing window.
	Radius int

	// Eps is the regularization added to the guide variance. Larger values
	// smooth more aggressively.
	Eps float32

	// ZeroOut forces an exactly-zero output for every exactly-zero input
	// pixel, so invalid depth readings stay invalid through the filter.
	ZeroOut bool

	// BoxScaling scales elements on their way into the summed-area tables
	// and is divided back out when the box means are read. It keeps the
	// running sums of large images inside float32 range.
	BoxScaling float32

	// OutputScaling multiplies the final output of the self-guided filter.
	// The cross-guided variant ignores it.
	OutputScaling float32

	// Staging selects the host I/O directions the GPU pipeline supports.
	// The CPU path ignores it.
	Staging Staging
}

// DefaultConfig returns the configuration used by the stock filter: radius 4,
// eps 0.01, box scaling 1e-4, unscaled output, full host staging.
func DefaultConfig(width, height int) Config {
	return Config{
		Width:         width,
		Height:        height,
		Radius:        4,
		Eps:           0.01,
		BoxScaling:    1e-4,
		OutputScaling: 1,
		Staging:       StagingInOut,
	}
}

// Validate checks every configuration rule eagerly so that misconfiguration
// surfaces at construction, not at the first Run. All violations wrap
// ErrConfig.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("guidedfilter: dimensions must be positive, got %dx%d: %w", c.Width, c.Height, ErrConfig)
	}
	if c.Width%GridSize != 0 || c.Height%GridSize != 0 {
		return fmt.Errorf("guidedfilter: dimensions must be multiples of %d, got %dx%d: %w", GridSize, c.Width, c.Height, ErrConfig)
	}
	if c.Width > maxScanExtent || c.Height > maxScanExtent {
		return fmt.Errorf("guidedfilter: dimensions %dx%d exceed the per-row scan limit %d: %w", c.Width, c.Height, maxScanExtent, ErrConfig)
	}
	if c.Radius < 0 {
		return fmt.Errorf("guidedfilter: radius must be non-negative, got %d: %w", c.Radius, ErrConfig)
	}
	if c.Eps < 0 {
		return fmt.Errorf("guidedfilter: eps must be non-negative, got %g: %w", c.Eps, ErrConfig)
	}
	if c.BoxScaling == 0 {
		return fmt.Errorf("guidedfilter: box scaling must be nonzero: %w", ErrConfig)
	}
	if c.Staging > StagingInOut {
		return fmt.Errorf("guidedfilter: unknown staging mode %d: %w", c.Staging, ErrConfig)
	}
	return nil
}

// pixels returns the number of elements in one plane.
func (c Config) pixels() int {
	return c.Width * c.Height
}
