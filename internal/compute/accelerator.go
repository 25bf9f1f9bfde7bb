// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Accelerator provides GPU-accelerated guided filtering on the wgpu HAL.
// It implements guidedfilter.GPUAccelerator and keeps one configured
// pipeline per operation, rebuilt only when the image geometry changes;
// parameter changes rewrite the uniforms in place.
type Accelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	eng *Engine

	selfStage  *SelfGuidedStage
	crossStage *CrossGuidedStage
	rgbStage   *RGBFilterStage

	boxStage           *BoxFilterStage
	boxW, boxH, boxRad int

	gpuReady       bool
	initFailed     bool
	externalDevice bool // true when using shared device (don't destroy on Close)
}

// Interface compliance checks.
var _ guidedfilter.GPUAccelerator = (*Accelerator)(nil)
var _ guidedfilter.DeviceProviderAware = (*Accelerator)(nil)

// NewAccelerator creates an unregistered accelerator. GPU state is not
// touched until the first operation.
func NewAccelerator() *Accelerator {
	return &Accelerator{}
}

// Name returns the accelerator identifier.
func (a *Accelerator) Name() string { return "wgpu-compute" }

// Init registers the accelerator. GPU device initialization is deferred
// until the first use or until SetDeviceProvider is called, to avoid
// creating a standalone Vulkan device that may interfere with an external
// DX12/Metal device provided later.
func (a *Accelerator) Init() error {
	return nil
}

// Close releases all GPU resources held by the accelerator.
func (a *Accelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.freeStages()

	if a.eng != nil {
		a.eng.Close()
		a.eng = nil
	}
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
			a.device = nil
		}
		if a.instance != nil {
			a.instance.Destroy()
			a.instance = nil
		}
	} else {
		// Don't destroy shared resources -- we don't own them.
		a.device = nil
		a.instance = nil
	}
	a.queue = nil
	a.gpuReady = false
	a.initFailed = false
	a.externalDevice = false
}

// SetLogger sets the logger for the accelerator and its internal packages.
// Called by guidedfilter.SetLogger to propagate logging configuration.
func (a *Accelerator) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// CanAccelerate reports whether this accelerator supports the given
// operation. All four filter operations have device pipelines.
func (a *Accelerator) CanAccelerate(op guidedfilter.AcceleratedOp) bool {
	const ops = guidedfilter.AccelSelfGuided | guidedfilter.AccelCrossGuided |
		guidedfilter.AccelBoxFilter | guidedfilter.AccelRGB
	return op&ops != 0
}

// SetDeviceProvider switches the accelerator to use a shared GPU device
// from an external provider (e.g., a gogpu window). The provider must
// implement HalDevice() any and HalQueue() any returning hal types.
func (a *Accelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("compute: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("compute: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("compute: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Destroy own resources if we created them.
	a.freeStages()
	if a.eng != nil {
		a.eng.Close()
		a.eng = nil
	}
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	// Use provided resources.
	a.device = device
	a.queue = queue
	a.externalDevice = true
	a.initFailed = false

	eng := NewEngine(device, queue)
	if err := eng.Init(); err != nil {
		slogger().Warn("compute: pipeline init failed, compute unavailable", "error", err)
		// Still mark gpuReady -- the device is valid, just compute isn't.
		a.gpuReady = true
		return nil
	}
	a.eng = eng

	a.gpuReady = true
	slogger().Debug("compute: switched to shared GPU device")
	return nil
}

// SelfGuided runs the guide == input filter on the device.
func (a *Accelerator) SelfGuided(q, p []float32, cfg guidedfilter.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return err
	}
	stage, err := a.selfPipeline(cfg)
	if err != nil {
		return err
	}
	if err := stage.Write(p); err != nil {
		return err
	}
	if err := stage.Run(); err != nil {
		// The graph error is sticky; rebuild on the next call.
		stage.Free()
		a.selfStage = nil
		return err
	}
	return stage.Read(q)
}

// CrossGuided runs the guide != input filter on the device.
func (a *Accelerator) CrossGuided(q, guide, p []float32, cfg guidedfilter.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return err
	}
	stage, err := a.crossPipeline(cfg)
	if err != nil {
		return err
	}
	if err := stage.Write(p); err != nil {
		return err
	}
	if err := stage.WriteGuide(guide); err != nil {
		return err
	}
	if err := stage.Run(); err != nil {
		stage.Free()
		a.crossStage = nil
		return err
	}
	return stage.Read(q)
}

// BoxFilter computes the clipped-window mean of src on the device using
// the direct kernel. Geometry the dispatch grid cannot cover falls back.
func (a *Accelerator) BoxFilter(dst, src []float32, width, height, radius int) error {
	if width <= 0 || height <= 0 || width%tileSide != 0 || height%tileSide != 0 || radius < 0 {
		return guidedfilter.ErrFallbackToCPU
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return err
	}
	stage, err := a.boxPipeline(width, height, radius)
	if err != nil {
		return err
	}
	if err := stage.Write(src); err != nil {
		return err
	}
	if err := stage.Run(); err != nil {
		return err
	}
	return stage.Read(dst)
}

// FilterRGB runs the fused separate/filter/combine pipeline on the device.
func (a *Accelerator) FilterRGB(dst, src []float32, cfg guidedfilter.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return err
	}
	stage, err := a.rgbPipeline(cfg)
	if err != nil {
		return err
	}
	if err := stage.Write(src); err != nil {
		return err
	}
	if err := stage.Run(); err != nil {
		stage.Free()
		a.rgbStage = nil
		return err
	}
	return stage.Read(dst)
}

// ProfileSelfGuided runs the self-guided pipeline once with per-segment
// timing enabled and returns the timings alongside the filtered result.
// Profiled runs wait out each segment, so the numbers describe stage cost
// rather than overlapped wall time.
func (a *Accelerator) ProfileSelfGuided(q, p []float32, cfg guidedfilter.Config) ([]SegmentTiming, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return nil, err
	}
	stage, err := a.selfPipeline(cfg)
	if err != nil {
		return nil, err
	}
	stage.SetProfile(true)
	defer stage.SetProfile(false)
	if err := stage.Write(p); err != nil {
		return nil, err
	}
	if err := stage.Run(); err != nil {
		stage.Free()
		a.selfStage = nil
		return nil, err
	}
	if err := stage.Read(q); err != nil {
		return nil, err
	}
	return append([]SegmentTiming(nil), stage.Timings()...), nil
}

// ProfileCrossGuided is ProfileSelfGuided for the cross-guided pipeline.
func (a *Accelerator) ProfileCrossGuided(q, guide, p []float32, cfg guidedfilter.Config) ([]SegmentTiming, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return nil, err
	}
	stage, err := a.crossPipeline(cfg)
	if err != nil {
		return nil, err
	}
	stage.SetProfile(true)
	defer stage.SetProfile(false)
	if err := stage.Write(p); err != nil {
		return nil, err
	}
	if err := stage.WriteGuide(guide); err != nil {
		return nil, err
	}
	if err := stage.Run(); err != nil {
		stage.Free()
		a.crossStage = nil
		return nil, err
	}
	if err := stage.Read(q); err != nil {
		return nil, err
	}
	return append([]SegmentTiming(nil), stage.Timings()...), nil
}

// ProfileRGB is ProfileSelfGuided for the fused three-channel pipeline.
func (a *Accelerator) ProfileRGB(dst, src []float32, cfg guidedfilter.Config) ([]SegmentTiming, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureGPU(); err != nil {
		return nil, err
	}
	stage, err := a.rgbPipeline(cfg)
	if err != nil {
		return nil, err
	}
	stage.SetProfile(true)
	defer stage.SetProfile(false)
	if err := stage.Write(src); err != nil {
		return nil, err
	}
	if err := stage.Run(); err != nil {
		stage.Free()
		a.rgbStage = nil
		return nil, err
	}
	if err := stage.Read(dst); err != nil {
		return nil, err
	}
	return append([]SegmentTiming(nil), stage.Timings()...), nil
}

// ensureGPU makes sure a device and compiled pipelines exist. A failed
// standalone init is remembered so the driver is probed only once.
func (a *Accelerator) ensureGPU() error {
	if a.eng != nil && a.eng.ready() {
		return nil
	}
	if a.initFailed {
		return guidedfilter.ErrFallbackToCPU
	}
	if !a.gpuReady {
		if err := a.initGPU(); err != nil {
			a.initFailed = true
			slogger().Warn("compute: GPU init failed, filtering on CPU", "error", err)
			return guidedfilter.ErrFallbackToCPU
		}
	}
	if a.eng == nil || !a.eng.ready() {
		return guidedfilter.ErrFallbackToCPU
	}
	return nil
}

// selfPipeline returns the cached self-guided pipeline for cfg, rebuilding
// on a geometry change and rewriting parameters in place otherwise.
func (a *Accelerator) selfPipeline(cfg guidedfilter.Config) (*SelfGuidedStage, error) {
	if st := a.selfStage; st != nil {
		have := st.Config()
		if have.Width != cfg.Width || have.Height != cfg.Height {
			st.Free()
			a.selfStage = nil
		}
	}
	if a.selfStage == nil {
		st := NewSelfGuidedStage(a.eng, guidedfilter.StagingInOut)
		if err := st.Configure(cfg); err != nil {
			return nil, err
		}
		a.selfStage = st
		return st, nil
	}
	st := a.selfStage
	have := st.Config()
	if have.Radius != cfg.Radius {
		if err := st.SetRadius(cfg.Radius); err != nil {
			return nil, err
		}
	}
	if have.Eps != cfg.Eps {
		if err := st.SetEps(cfg.Eps); err != nil {
			return nil, err
		}
	}
	if have.BoxScaling != cfg.BoxScaling {
		if err := st.SetBoxScaling(cfg.BoxScaling); err != nil {
			return nil, err
		}
	}
	if have.OutputScaling != cfg.OutputScaling {
		if err := st.SetOutputScaling(cfg.OutputScaling); err != nil {
			return nil, err
		}
	}
	if have.ZeroOut != cfg.ZeroOut {
		if err := st.SetZeroOut(cfg.ZeroOut); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// crossPipeline is selfPipeline for the cross-guided variant. Output
// scaling is not compared; the cross pipeline ignores it.
func (a *Accelerator) crossPipeline(cfg guidedfilter.Config) (*CrossGuidedStage, error) {
	if st := a.crossStage; st != nil {
		have := st.Config()
		if have.Width != cfg.Width || have.Height != cfg.Height {
			st.Free()
			a.crossStage = nil
		}
	}
	if a.crossStage == nil {
		st := NewCrossGuidedStage(a.eng, guidedfilter.StagingInOut)
		if err := st.Configure(cfg); err != nil {
			return nil, err
		}
		a.crossStage = st
		return st, nil
	}
	st := a.crossStage
	have := st.Config()
	if have.Radius != cfg.Radius {
		if err := st.SetRadius(cfg.Radius); err != nil {
			return nil, err
		}
	}
	if have.Eps != cfg.Eps {
		if err := st.SetEps(cfg.Eps); err != nil {
			return nil, err
		}
	}
	if have.BoxScaling != cfg.BoxScaling {
		if err := st.SetBoxScaling(cfg.BoxScaling); err != nil {
			return nil, err
		}
	}
	if have.ZeroOut != cfg.ZeroOut {
		if err := st.SetZeroOut(cfg.ZeroOut); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// boxPipeline returns the cached direct box filter for the geometry.
func (a *Accelerator) boxPipeline(width, height, radius int) (*BoxFilterStage, error) {
	if a.boxStage != nil && (a.boxW != width || a.boxH != height) {
		a.boxStage.Free()
		a.boxStage = nil
	}
	if a.boxStage == nil {
		st := NewBoxFilterStage(a.eng, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, radius, 1); err != nil {
			return nil, err
		}
		a.boxStage = st
		a.boxW, a.boxH, a.boxRad = width, height, radius
		return st, nil
	}
	if a.boxRad != radius {
		if err := a.boxStage.SetRadius(radius); err != nil {
			return nil, err
		}
		a.boxRad = radius
	}
	return a.boxStage, nil
}

// rgbPipeline returns the cached fused RGB pipeline. Radius and eps are
// rewritten in place; any other change rebuilds.
func (a *Accelerator) rgbPipeline(cfg guidedfilter.Config) (*RGBFilterStage, error) {
	if st := a.rgbStage; st != nil {
		have := st.Config()
		if have.Width != cfg.Width || have.Height != cfg.Height ||
			have.BoxScaling != cfg.BoxScaling ||
			have.OutputScaling != cfg.OutputScaling ||
			have.ZeroOut != cfg.ZeroOut {
			st.Free()
			a.rgbStage = nil
		}
	}
	if a.rgbStage == nil {
		st := NewRGBFilterStage(a.eng, guidedfilter.StagingInOut)
		if err := st.Configure(cfg); err != nil {
			return nil, err
		}
		a.rgbStage = st
		return st, nil
	}
	st := a.rgbStage
	have := st.Config()
	if have.Radius != cfg.Radius {
		if err := st.SetRadius(cfg.Radius); err != nil {
			return nil, err
		}
	}
	if have.Eps != cfg.Eps {
		if err := st.SetEps(cfg.Eps); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (a *Accelerator) freeStages() {
	if a.selfStage != nil {
		a.selfStage.Free()
		a.selfStage = nil
	}
	if a.crossStage != nil {
		a.crossStage.Free()
		a.crossStage = nil
	}
	if a.boxStage != nil {
		a.boxStage.Free()
		a.boxStage = nil
	}
	if a.rgbStage != nil {
		a.rgbStage.Free()
		a.rgbStage = nil
	}
}

// initGPU creates a standalone Vulkan device for compute-only use. This
// is the fallback path when no external device is provided via
// SetDeviceProvider.
func (a *Accelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	lim := gputypes.DefaultLimits()
	if lim.MaxComputeWorkgroupSizeX < wgSize {
		slogger().Warn("compute: kernel workgroup size exceeds device limit",
			"workgroup", wgSize, "maxSizeX", lim.MaxComputeWorkgroupSizeX)
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), lim)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue

	eng := NewEngine(a.device, a.queue)
	if err := eng.Init(); err != nil {
		slogger().Warn("compute: pipeline init failed, compute unavailable", "error", err)
		a.gpuReady = true
		return nil
	}
	a.eng = eng

	a.gpuReady = true
	slogger().Info("compute: GPU initialized (standalone)", "adapter", selected.Info.Name)
	return nil
}
