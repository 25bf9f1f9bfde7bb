//go:build !nogpu

package gpu

import (
	"errors"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/guidedfilter"
)

// ErrNoHALAccess is returned by ShareDevice when the handle cannot expose
// raw wgpu/hal types.
var ErrNoHALAccess = errors.New("gpu: device handle does not expose HAL types")

// DeviceHandle provides GPU device access from the host application.
//
// The host (e.g., a gogpu window) implements DeviceHandle and passes it to
// ShareDevice, letting the filter pipelines run on the shared GPU device
// instead of creating their own. DeviceHandle is an alias for
// gpucontext.DeviceProvider, keeping full compatibility with the
// gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// ShareDevice wires the host's GPU device into the registered accelerator.
//
// The handle must also implement gpucontext.HalProvider so the compute
// pipelines can reach the underlying hal.Device and hal.Queue. Sharing is
// optional: without it the accelerator opens a standalone Vulkan device on
// first use.
func ShareDevice(handle DeviceHandle) error {
	if handle == nil {
		return errors.New("gpu: nil device handle")
	}
	hp, ok := handle.(gpucontext.HalProvider)
	if !ok {
		return ErrNoHALAccess
	}
	return guidedfilter.SetAcceleratorDeviceProvider(hp)
}
