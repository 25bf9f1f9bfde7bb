package guidedfilter

import (
	"fmt"

	"github.com/gogpu/guidedfilter/internal/satcompute"
)

// RGBFilter runs the self-guided filter independently over the three
// channels of an interleaved RGB image. On the GPU the whole
// separate/filter/combine chain executes without host round-trips.
type RGBFilter struct {
	f *Filter
}

// NewRGBFilter creates an RGB filter with the given configuration.
func NewRGBFilter(cfg Config) (*RGBFilter, error) {
	f, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &RGBFilter{f: f}, nil
}

// Config returns the filter's current configuration.
func (r *RGBFilter) Config() Config {
	return r.f.Config()
}

// SetRadius changes the smoothing window radius.
func (r *RGBFilter) SetRadius(radius int) error {
	return r.f.SetRadius(radius)
}

// SetEps changes the variance regularization.
func (r *RGBFilter) SetEps(eps float32) error {
	return r.f.SetEps(eps)
}

// Apply filters an interleaved RGB float image. Both slices must hold
// 3*Width*Height values. dst may be the same slice as src.
func (r *RGBFilter) Apply(dst, src []float32) error {
	if r.f.closed {
		return ErrClosed
	}
	if err := r.checkLen(len(dst)); err != nil {
		return err
	}
	if err := r.checkLen(len(src)); err != nil {
		return err
	}

	cfg := r.f.cfg
	if err := r.f.tryGPU(AccelRGB, func(a GPUAccelerator) error {
		return a.FilterRGB(dst, src, cfg)
	}); err == nil {
		return nil
	}

	pixels := cfg.pixels()
	planes := make([]float32, 4*pixels)
	rp := planes[:pixels]
	gp := planes[pixels : 2*pixels]
	bp := planes[2*pixels : 3*pixels]
	q := planes[3*pixels:]

	satcompute.SeparateRGB(rp, gp, bp, src, pixels)
	par := r.f.params()
	satcompute.SelfGuided(q, rp, cfg.Width, cfg.Height, par)
	copy(rp, q)
	satcompute.SelfGuided(q, gp, cfg.Width, cfg.Height, par)
	copy(gp, q)
	satcompute.SelfGuided(q, bp, cfg.Width, cfg.Height, par)
	satcompute.CombineRGB(dst, rp, gp, q, pixels)
	return nil
}

// Apply8 filters an interleaved 8-bit RGB image. Channels are normalized to
// [0, 1] on the way in and scaled back with a truncating conversion on the
// way out, matching the device kernels.
func (r *RGBFilter) Apply8(dst, src []uint8) error {
	if r.f.closed {
		return ErrClosed
	}
	if err := r.checkLen(len(dst)); err != nil {
		return err
	}
	if err := r.checkLen(len(src)); err != nil {
		return err
	}

	n := 3 * r.f.cfg.pixels()
	buf := make([]float32, n)
	for i, v := range src {
		buf[i] = float32(v) / 255
	}
	if err := r.Apply(buf, buf); err != nil {
		return err
	}
	for i, v := range buf {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		dst[i] = uint8(v * 255)
	}
	return nil
}

// Close marks the filter closed.
func (r *RGBFilter) Close() error {
	return r.f.Close()
}

func (r *RGBFilter) checkLen(n int) error {
	if want := 3 * r.f.cfg.pixels(); n != want {
		return fmt.Errorf("guidedfilter: interleaved RGB length %d, want %d: %w", n, want, ErrConfig)
	}
	return nil
}
