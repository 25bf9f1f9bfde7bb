// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// RGBFilterStage runs the self-guided filter over the three channels of
// an interleaved RGB float image. The separate pass, the three channel
// pipelines and the combine pass share every intermediate buffer on the
// device, so a Run moves no pixel data across the host boundary.
//
// Mirrors RGBFilter.Apply in rgb.go at the module root.
type RGBFilterStage struct {
	state stageState
	cfg   guidedfilter.Config

	separate *ImageStage
	channels [3]*SelfGuidedStage
	combine  *ImageStage

	graph *Graph
}

// NewRGBFilterStage creates an unconfigured fused RGB pipeline.
func NewRGBFilterStage(eng *Engine, staging guidedfilter.Staging) *RGBFilterStage {
	return newRGBFilterStage(eng, "rgbfilter", staging)
}

func newRGBFilterStage(eng *Engine, label string, staging guidedfilter.Staging) *RGBFilterStage {
	r := &RGBFilterStage{}
	r.state.init(eng, label, staging)
	return r
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (r *RGBFilterStage) Bind(role Role, buf hal.Buffer) error { return r.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (r *RGBFilterStage) Buffer(role Role) hal.Buffer { return r.state.buffer(role) }

// Config returns the pipeline's configuration.
func (r *RGBFilterStage) Config() guidedfilter.Config { return r.cfg }

// Configure freezes the pipeline for cfg. The In and Out slots hold
// interleaved RGB, three floats per pixel.
func (r *RGBFilterStage) Configure(cfg guidedfilter.Config) error {
	if r.state.configured {
		return fmt.Errorf("compute: %s: already configured", r.state.label)
	}
	if !r.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", r.state.label)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.cfg = cfg

	pixels := cfg.Width * cfg.Height
	rgbBytes := uint64(pixels) * 3 * 4
	if err := r.state.allocate([]slotSpec{
		{role: RoleIn, size: rgbBytes, usage: usageUpload},
		{role: RoleOut, size: rgbBytes, usage: usageReadout},
	}); err != nil {
		return err
	}
	if err := r.build(); err != nil {
		r.Free()
		return err
	}
	return nil
}

func (r *RGBFilterStage) build() error {
	eng := r.state.eng
	label := r.state.label
	cfg := r.cfg

	r.separate = newImageStage(eng, label+"_separate", OpSeparateRGB, guidedfilter.StagingNone)
	if err := r.separate.Bind(RoleIn, r.state.buffer(RoleIn)); err != nil {
		return err
	}
	if err := r.separate.Configure(cfg.Width, cfg.Height, ImageParams{}); err != nil {
		return err
	}

	planes := [3]Role{RoleRed, RoleGreen, RoleBlue}
	names := [3]string{"r", "g", "b"}
	for i := range r.channels {
		ch := newSelfGuidedStage(eng, label+"_"+names[i], guidedfilter.StagingNone)
		if err := ch.Bind(RoleIn, r.separate.Buffer(planes[i])); err != nil {
			return err
		}
		if err := ch.Configure(cfg); err != nil {
			return err
		}
		r.channels[i] = ch
	}

	r.combine = newImageStage(eng, label+"_combine", OpCombineRGB, guidedfilter.StagingNone)
	for i, role := range planes {
		if err := r.combine.Bind(role, r.channels[i].Buffer(RoleOut)); err != nil {
			return err
		}
	}
	if err := r.combine.Bind(RoleOut, r.state.buffer(RoleOut)); err != nil {
		return err
	}
	if err := r.combine.Configure(cfg.Width, cfg.Height, ImageParams{}); err != nil {
		return err
	}

	r.graph = r.buildGraph()
	return nil
}

// buildGraph splices the three channel pipelines into one graph behind
// the separate pass, so the channels pipeline across the two lanes
// instead of draining the device between colors.
func (r *RGBFilterStage) buildGraph() *Graph {
	g := NewGraph(r.state.eng, r.state.label)

	in := r.state.buffer(RoleIn)
	out := r.state.buffer(RoleOut)
	red := r.separate.Buffer(RoleRed)
	green := r.separate.Buffer(RoleGreen)
	blue := r.separate.Buffer(RoleBlue)

	nSep := g.AddNode("separate", 0, r.separate.record,
		[]any{in}, []any{red, green, blue})
	var outs []NodeID
	for i, prefix := range [3]string{"r_", "g_", "b_"} {
		outs = append(outs, r.channels[i].addNodes(g, prefix, nSep))
	}
	g.AddNode("combine", 0, r.combine.record,
		[]any{
			r.channels[0].Buffer(RoleOut),
			r.channels[1].Buffer(RoleOut),
			r.channels[2].Buffer(RoleOut),
		}, []any{out}, outs...)
	return g
}

// SetRadius rewrites the window radius of every channel pipeline.
func (r *RGBFilterStage) SetRadius(radius int) error {
	if !r.state.configured {
		return fmt.Errorf("compute: %s: SetRadius before Configure", r.state.label)
	}
	for _, ch := range r.channels {
		if err := ch.SetRadius(radius); err != nil {
			return err
		}
	}
	r.cfg.Radius = radius
	return nil
}

// SetEps rewrites the regularization term of every channel pipeline.
func (r *RGBFilterStage) SetEps(eps float32) error {
	if !r.state.configured {
		return fmt.Errorf("compute: %s: SetEps before Configure", r.state.label)
	}
	for _, ch := range r.channels {
		if err := ch.SetEps(eps); err != nil {
			return err
		}
	}
	r.cfg.Eps = eps
	return nil
}

// SetProfile toggles per-segment timing on the next Runs.
func (r *RGBFilterStage) SetProfile(enabled bool) {
	if r.graph != nil {
		r.graph.SetProfile(enabled)
	}
}

// Timings returns the segment timings of the last profiled Run.
func (r *RGBFilterStage) Timings() []SegmentTiming {
	if r.graph == nil {
		return nil
	}
	return r.graph.Timings()
}

// Write uploads the interleaved RGB input, gated by the staging mode.
func (r *RGBFilterStage) Write(src []float32) error {
	return r.state.writeBytes(RoleIn, floatsToBytes(src))
}

// Read downloads the interleaved RGB output, gated by the staging mode.
func (r *RGBFilterStage) Read(dst []float32) error {
	tmp := make([]byte, len(dst)*4)
	if err := r.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, dst)
	return nil
}

// Run executes the fused pipeline and waits for both lanes to drain.
func (r *RGBFilterStage) Run() error {
	if !r.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", r.state.label)
	}
	return r.graph.Execute()
}

// Free releases the pipeline and its internal stages.
func (r *RGBFilterStage) Free() {
	if r.separate != nil {
		r.separate.Free()
		r.separate = nil
	}
	for i, ch := range r.channels {
		if ch != nil {
			ch.Free()
		}
		r.channels[i] = nil
	}
	if r.combine != nil {
		r.combine.Free()
		r.combine = nil
	}
	r.graph = nil
	r.state.free()
}
