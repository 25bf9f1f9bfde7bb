package guidedfilter

import (
	"errors"
	"sync"
)

// ErrFallbackToCPU indicates the GPU accelerator cannot handle this operation.
// The caller should transparently fall back to the CPU filter path.
var ErrFallbackToCPU = errors.New("guidedfilter: falling back to CPU filtering")

// AcceleratedOp describes operation types for GPU capability checking.
type AcceleratedOp uint32

const (
	// AccelSelfGuided represents the self-guided (guide == input) filter.
	AccelSelfGuided AcceleratedOp = 1 << iota

	// AccelCrossGuided represents the cross-guided (guide != input) filter.
	AccelCrossGuided

	// AccelBoxFilter represents standalone box filtering.
	AccelBoxFilter

	// AccelRGB represents the fused separate/filter/combine RGB pipeline.
	AccelRGB
)

// GPUAccelerator is an optional GPU acceleration provider.
//
// When registered via RegisterAccelerator, Filter tries GPU acceleration
// first for supported operations. If the accelerator returns ErrFallbackToCPU
// or any error, filtering transparently falls back to the CPU path.
//
// Implementations are provided by GPU backend packages (guidedfilter/gpu).
// Users opt in to GPU acceleration via blank import:
//
//	import _ "github.com/gogpu/guidedfilter/gpu" // enables GPU acceleration
type GPUAccelerator interface {
	// Name returns the accelerator name (e.g., "wgpu", "vulkan").
	Name() string

	// Init initializes GPU resources. Called once during registration.
	Init() error

	// Close releases GPU resources.
	Close()

	// CanAccelerate reports whether the accelerator supports the given operation.
	// This is a fast check used to skip GPU entirely for unsupported operations.
	CanAccelerate(op AcceleratedOp) bool

	// SelfGuided runs the guide == input filter over a cfg.Width x cfg.Height
	// plane p and writes the result into q.
	// Returns ErrFallbackToCPU if the configuration cannot be GPU-accelerated.
	SelfGuided(q, p []float32, cfg Config) error

	// CrossGuided runs the guide != input filter: p is smoothed under the
	// structure of guide.
	// Returns ErrFallbackToCPU if the configuration cannot be GPU-accelerated.
	CrossGuided(q, guide, p []float32, cfg Config) error

	// BoxFilter computes the clipped-window mean of src into dst.
	// Returns ErrFallbackToCPU if the geometry cannot be GPU-accelerated.
	BoxFilter(dst, src []float32, width, height, radius int) error

	// FilterRGB runs the self-guided filter over the three channels of an
	// interleaved RGB float image without host round-trips between stages.
	// Returns ErrFallbackToCPU if the configuration cannot be GPU-accelerated.
	FilterRGB(dst, src []float32, cfg Config) error
}

// DeviceProviderAware is an optional interface for accelerators that can share
// GPU resources with an external provider (e.g., gogpu window).
// When SetDeviceProvider is called, the accelerator reuses the provided GPU
// device instead of creating its own.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	accelMu sync.RWMutex
	accel   GPUAccelerator
)

// RegisterAccelerator registers a GPU accelerator for optional GPU filtering.
//
// Only one accelerator can be registered. Subsequent calls replace the previous one.
// The accelerator's Init() method is called during registration.
// If Init() fails, the accelerator is not registered and the error is returned.
//
// Typical usage via blank import in GPU backend packages:
//
//	func init() {
//	    gf.RegisterAccelerator(compute.NewAccelerator())
//	}
func RegisterAccelerator(a GPUAccelerator) error {
	if a == nil {
		return errors.New("guidedfilter: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Accelerator returns the currently registered GPU accelerator, or nil if none.
func Accelerator() GPUAccelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// SetAcceleratorDeviceProvider passes a device provider to the registered
// accelerator, enabling GPU device sharing. If no accelerator is registered
// or it doesn't support device sharing, this is a no-op.
//
// The provider should implement HalDevice() any and HalQueue() any methods
// that return wgpu/hal types.
func SetAcceleratorDeviceProvider(provider any) error {
	a := Accelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
