//go:build !nogpu

// Package gpu registers the GPU accelerator for hardware-accelerated
// guided filtering.
//
// Import this package to run supported filter operations on the GPU
// through wgpu/hal compute shaders. If GPU initialization fails (no
// Vulkan available), filtering transparently falls back to the CPU path.
//
// Usage:
//
//	import _ "github.com/gogpu/guidedfilter/gpu" // enable GPU acceleration
package gpu

import (
	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/internal/compute"
)

// accelerator is the registered instance. The profiling entry points below
// reach it directly.
var accelerator = compute.NewAccelerator()

func init() {
	if err := guidedfilter.RegisterAccelerator(accelerator); err != nil {
		guidedfilter.Logger().Warn("GPU accelerator not available", "err", err)
	}
}

// SetDeviceProvider configures the GPU accelerator to use a shared GPU
// device from an external provider (e.g., a gogpu window). This avoids
// creating a separate GPU instance and enables efficient device sharing.
//
// The provider should expose HalDevice() any and HalQueue() any returning
// wgpu/hal types, as gpucontext device providers do.
func SetDeviceProvider(provider any) error {
	return guidedfilter.SetAcceleratorDeviceProvider(provider)
}
