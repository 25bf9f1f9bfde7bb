// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// engine.go owns the per-device pipeline registry. Every kernel compiles
// once at Init; stages borrow pipelines and bind group layouts from here
// and allocate their own buffers.

package compute

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

const (
	// wgSize is the workgroup size of the one-dimensional kernels.
	// Matches @workgroup_size in the element-wise WGSL sources.
	wgSize = 256

	// fenceTimeout bounds every GPU wait. A timeout is a device error,
	// not a retry.
	fenceTimeout = 5 * time.Second
)

// Engine compiles and caches the compute pipelines for one device. It is
// safe for concurrent use once initialized; stages and graphs hold a
// reference and never outlive it.
type Engine struct {
	mu sync.RWMutex

	// device is the HAL device providing GPU resource creation.
	device hal.Device

	// queue is the HAL queue for command submission and buffer writes.
	queue hal.Queue

	// pipelines are the compiled compute pipelines, one per kernel.
	pipelines [kernelCount]hal.ComputePipeline

	// pipelineLayouts are the pipeline layouts, one per kernel.
	pipelineLayouts [kernelCount]hal.PipelineLayout

	// bgLayouts are the bind group layouts, one per kernel.
	bgLayouts [kernelCount]hal.BindGroupLayout

	// shaderModules are the compiled shader modules, one per kernel.
	shaderModules [kernelCount]hal.ShaderModule

	// initialized indicates whether shaders have been compiled.
	initialized bool
}

// NewEngine creates an engine attached to the given HAL device and queue.
// Init must run before any stage is configured.
func NewEngine(device hal.Device, queue hal.Queue) *Engine {
	return &Engine{device: device, queue: queue}
}

// Init compiles every WGSL kernel through naga and creates the compute
// pipelines. It is safe to call Init multiple times; subsequent calls are
// no-ops if already initialized.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	for k := kernel(0); k < kernelCount; k++ {
		src := kernelSource(k)
		if src == "" {
			return fmt.Errorf("compute: missing shader source for kernel %s", k)
		}

		spirv, err := compileKernel(src)
		if err != nil {
			e.destroyPartialInit(k)
			return fmt.Errorf("compute: compile %s: %w", k, err)
		}

		module, err := e.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  k.String(),
			Source: hal.ShaderSource{SPIRV: spirv},
		})
		if err != nil {
			e.destroyPartialInit(k)
			return fmt.Errorf("compute: create shader module for %s: %w", k, err)
		}
		e.shaderModules[k] = module

		entries := kernelLayoutEntries(k)
		bgLayout, err := e.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   k.String() + "_bgl",
			Entries: entries,
		})
		if err != nil {
			e.destroyPartialInit(k + 1) // module was already stored
			return fmt.Errorf("compute: create bind group layout for %s: %w", k, err)
		}
		e.bgLayouts[k] = bgLayout

		pipelineLayout, err := e.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            k.String() + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			e.destroyPartialInit(k + 1)
			return fmt.Errorf("compute: create pipeline layout for %s: %w", k, err)
		}
		e.pipelineLayouts[k] = pipelineLayout

		pipeline, err := e.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  k.String(),
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			e.destroyPartialInit(k + 1)
			return fmt.Errorf("compute: create compute pipeline for %s: %w", k, err)
		}
		e.pipelines[k] = pipeline

		slogger().Debug("compute: pipeline created",
			"kernel", k.String(),
			"bindings", len(entries),
			"spirv_words", len(spirv))
	}

	slogger().Info("compute: all pipelines initialized",
		"kernels", int(kernelCount))

	e.initialized = true
	return nil
}

// destroyPartialInit cleans up resources for kernels [0, upTo) during a
// failed Init, so partial initialization never leaks.
func (e *Engine) destroyPartialInit(upTo kernel) {
	for j := kernel(0); j < upTo; j++ {
		if e.pipelines[j] != nil {
			e.device.DestroyComputePipeline(e.pipelines[j])
			e.pipelines[j] = nil
		}
		if e.pipelineLayouts[j] != nil {
			e.device.DestroyPipelineLayout(e.pipelineLayouts[j])
			e.pipelineLayouts[j] = nil
		}
		if e.bgLayouts[j] != nil {
			e.device.DestroyBindGroupLayout(e.bgLayouts[j])
			e.bgLayouts[j] = nil
		}
		if e.shaderModules[j] != nil {
			e.device.DestroyShaderModule(e.shaderModules[j])
			e.shaderModules[j] = nil
		}
	}
}

// Close releases all pipelines. Stages must be freed first; after Close
// the engine must be re-initialized before use.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.destroyPartialInit(kernelCount)
	e.initialized = false
}

// ready reports whether Init has completed.
func (e *Engine) ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// createBuffer creates a GPU buffer with a minimum size guarantee.
func (e *Engine) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	const minBufSize = 4
	if size < minBufSize {
		size = minBufSize
	}
	return e.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
}

// copyToHost copies a device buffer into a MapRead staging buffer and
// reads it back synchronously. Out's length selects the copied byte span.
func (e *Engine) copyToHost(label string, src, staging hal.Buffer, out []byte) error {
	encoder, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label + "_read",
	})
	if err != nil {
		return fmt.Errorf("compute: %s: create readback encoder: %w", label, err)
	}
	if err := encoder.BeginEncoding(label + "_read"); err != nil {
		return fmt.Errorf("compute: %s: begin readback encoding: %w", label, err)
	}
	encoder.CopyBufferToBuffer(src, staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: uint64(len(out))},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("compute: %s: end readback encoding: %w", label, err)
	}
	defer e.device.FreeCommandBuffer(cmdBuf)

	fence, err := e.device.CreateFence()
	if err != nil {
		return fmt.Errorf("compute: %s: create fence: %w", label, err)
	}
	defer e.device.DestroyFence(fence)

	if err := e.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("compute: %s: submit readback: %w", label, err)
	}
	ok, err := e.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("compute: %s: wait for readback: %w", label, err)
	}
	if !ok {
		return fmt.Errorf("compute: %s: GPU timeout after %v", label, fenceTimeout)
	}

	if err := e.queue.ReadBuffer(staging, 0, out); err != nil {
		return fmt.Errorf("compute: %s: read staging buffer: %w", label, err)
	}
	return nil
}

// recordPass records one compute pass: pipeline, bind group, dispatch.
func (e *Engine) recordPass(enc hal.CommandEncoder, label string, k kernel, bg hal.BindGroup, x, y uint32) {
	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{
		Label: label,
	})
	pass.SetPipeline(e.pipelines[k])
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(x, y, 1)
	pass.End()
}

// runOnce encodes the recorded passes into a single command buffer,
// submits it and waits for completion. Standalone stage Runs go through
// here; composed pipelines batch their stages through a Graph instead.
func (e *Engine) runOnce(label string, record func(enc hal.CommandEncoder)) error {
	encoder, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return fmt.Errorf("compute: %s: create command encoder: %w", label, err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("compute: %s: begin encoding: %w", label, err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("compute: %s: end encoding: %w", label, err)
	}
	defer e.device.FreeCommandBuffer(cmdBuf)

	fence, err := e.device.CreateFence()
	if err != nil {
		return fmt.Errorf("compute: %s: create fence: %w", label, err)
	}
	defer e.device.DestroyFence(fence)

	if err := e.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("compute: %s: submit: %w", label, err)
	}
	ok, err := e.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("compute: %s: wait for GPU: %w", label, err)
	}
	if !ok {
		return fmt.Errorf("compute: %s: GPU timeout after %v", label, fenceTimeout)
	}
	return nil
}
