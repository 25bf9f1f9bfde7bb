package guidedfilter

import (
	"errors"
	"fmt"

	"github.com/gogpu/guidedfilter/internal/satcompute"
)

// ErrClosed is returned by operations on a closed filter.
var ErrClosed = errors.New("guidedfilter: filter is closed")

// Filter is an edge-preserving guided image filter.
//
// Apply smooths a plane under its own structure (guide == input); ApplyGuided
// smooths one plane under the structure of another. When a GPU accelerator is
// registered (blank import of guidedfilter/gpu), supported operations run on
// the device and transparently fall back to the CPU path on any error.
//
// A Filter is cheap: the heavy device state lives in the accelerator and is
// cached per configuration. Filters are not safe for concurrent use.
type Filter struct {
	cfg    Config
	closed bool
}

// New creates a filter with the given configuration.
func New(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Filter{cfg: cfg}, nil
}

// Config returns the filter's current configuration.
func (f *Filter) Config() Config {
	return f.cfg
}

// SetRadius changes the smoothing window radius.
func (f *Filter) SetRadius(radius int) error {
	return f.update(func(c *Config) { c.Radius = radius })
}

// SetEps changes the variance regularization.
func (f *Filter) SetEps(eps float32) error {
	return f.update(func(c *Config) { c.Eps = eps })
}

// SetBoxScaling changes the summed-area-table scaling.
func (f *Filter) SetBoxScaling(scaling float32) error {
	return f.update(func(c *Config) { c.BoxScaling = scaling })
}

// SetOutputScaling changes the output scaling of the self-guided variant.
func (f *Filter) SetOutputScaling(scaling float32) {
	f.cfg.OutputScaling = scaling
}

// SetZeroOut enables or disables the zero-propagation policy for invalid
// pixels.
func (f *Filter) SetZeroOut(on bool) {
	f.cfg.ZeroOut = on
}

// update applies a mutation to a copy of the configuration and keeps it only
// if it still validates.
func (f *Filter) update(mutate func(*Config)) error {
	cfg := f.cfg
	mutate(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.cfg = cfg
	return nil
}

// Apply runs the self-guided filter: p is smoothed under its own structure
// and the result is written to q. q may be the same plane as p.
func (f *Filter) Apply(q, p *Plane) error {
	if f.closed {
		return ErrClosed
	}
	if err := f.checkPlane(q); err != nil {
		return err
	}
	if err := f.checkPlane(p); err != nil {
		return err
	}
	if err := f.tryGPU(AccelSelfGuided, func(a GPUAccelerator) error {
		return a.SelfGuided(q.data, p.data, f.cfg)
	}); err == nil {
		return nil
	}
	satcompute.SelfGuided(q.data, p.data, f.cfg.Width, f.cfg.Height, f.params())
	return nil
}

// ApplyGuided runs the cross-guided filter: p is smoothed under the structure
// of guide and the result is written to q. q may be the same plane as p, but
// not as guide.
func (f *Filter) ApplyGuided(q, guide, p *Plane) error {
	if f.closed {
		return ErrClosed
	}
	for _, pl := range []*Plane{q, guide, p} {
		if err := f.checkPlane(pl); err != nil {
			return err
		}
	}
	if err := f.tryGPU(AccelCrossGuided, func(a GPUAccelerator) error {
		return a.CrossGuided(q.data, guide.data, p.data, f.cfg)
	}); err == nil {
		return nil
	}
	satcompute.CrossGuided(q.data, guide.data, p.data, f.cfg.Width, f.cfg.Height, f.params())
	return nil
}

// Box computes the mean of src over the filter's smoothing window into dst,
// with the window clipped at the borders. dst must not alias src.
func (f *Filter) Box(dst, src *Plane) error {
	if f.closed {
		return ErrClosed
	}
	if err := f.checkPlane(dst); err != nil {
		return err
	}
	if err := f.checkPlane(src); err != nil {
		return err
	}
	if err := f.tryGPU(AccelBoxFilter, func(a GPUAccelerator) error {
		return a.BoxFilter(dst.data, src.data, f.cfg.Width, f.cfg.Height, f.cfg.Radius)
	}); err == nil {
		return nil
	}
	satcompute.BoxFilter(dst.data, src.data, f.cfg.Width, f.cfg.Height, f.cfg.Radius)
	return nil
}

// Close marks the filter closed. Subsequent operations return ErrClosed.
// Device state is owned by the accelerator and outlives individual filters.
func (f *Filter) Close() error {
	f.closed = true
	return nil
}

// tryGPU attempts run on the registered accelerator. A non-fallback error is
// logged before the caller proceeds on the CPU.
func (f *Filter) tryGPU(op AcceleratedOp, run func(GPUAccelerator) error) error {
	a := Accelerator()
	if a == nil || !a.CanAccelerate(op) {
		return ErrFallbackToCPU
	}
	err := run(a)
	if err != nil && !errors.Is(err, ErrFallbackToCPU) {
		Logger().Warn("GPU filter failed, falling back to CPU",
			"accelerator", a.Name(), "op", op, "error", err)
	}
	return err
}

func (f *Filter) checkPlane(p *Plane) error {
	if p == nil {
		return fmt.Errorf("guidedfilter: nil plane: %w", ErrConfig)
	}
	if p.width != f.cfg.Width || p.height != f.cfg.Height {
		return fmt.Errorf("guidedfilter: plane is %dx%d, filter configured for %dx%d: %w",
			p.width, p.height, f.cfg.Width, f.cfg.Height, ErrConfig)
	}
	return nil
}

func (f *Filter) params() satcompute.GuidedParams {
	return satcompute.GuidedParams{
		Radius:        f.cfg.Radius,
		Eps:           f.cfg.Eps,
		OutputScaling: f.cfg.OutputScaling,
		ZeroOut:       f.cfg.ZeroOut,
	}
}
