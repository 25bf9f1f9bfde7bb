// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// image.go wraps the image adapter kernels behind one table-driven stage.
// The adapters convert between host pixel formats and the float planes
// the filter pipelines work on, and assemble point clouds from filtered
// depth. They share a uniform layout and differ only in slots and
// granularity, so a single stage type with an operation switch covers
// them, the same way the raster dispatcher switches per stage.

package compute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// ImageOp selects the conversion an ImageStage performs. The names track
// the CPU primitives in internal/satcompute/image.go.
type ImageOp int

const (
	// OpSeparateRGB splits interleaved float RGB into three planes.
	OpSeparateRGB ImageOp = iota
	// OpSeparateRGB8 splits packed 8-bit RGB into normalized planes.
	OpSeparateRGB8
	// OpCombineRGB interleaves three planes into float RGB.
	OpCombineRGB
	// OpCombineRGB8 clamps, quantizes and packs three planes to 8-bit RGB.
	OpCombineRGB8
	// OpDepthToFloat widens 16-bit depth to a scaled float plane.
	OpDepthToFloat
	// OpRGBNorm rescales each interleaved pixel to unit component sum.
	OpRGBNorm
	// OpDepthTo3D back-projects a depth plane through the pinhole model.
	OpDepthTo3D
	// OpRGBDTo8D assembles xyz+rgb point records from depth and planes.
	OpRGBDTo8D
	// OpSplitPC8D splits point records into position and color arrays.
	OpSplitPC8D
)

// String returns the op name used in labels and logs.
func (op ImageOp) String() string {
	switch op {
	case OpSeparateRGB:
		return "separate_rgb"
	case OpSeparateRGB8:
		return "separate_rgb8"
	case OpCombineRGB:
		return "combine_rgb"
	case OpCombineRGB8:
		return "combine_rgb8"
	case OpDepthToFloat:
		return "depth_to_float"
	case OpRGBNorm:
		return "rgb_norm"
	case OpDepthTo3D:
		return "depth_to_3d"
	case OpRGBDTo8D:
		return "rgbd_to_8d"
	case OpSplitPC8D:
		return "split_pc8d"
	default:
		return fmt.Sprintf("image_op(%d)", int(op))
	}
}

func (op ImageOp) kernel() kernel {
	switch op {
	case OpSeparateRGB:
		return kSeparateRGB
	case OpSeparateRGB8:
		return kSeparateRGBU8
	case OpCombineRGB:
		return kCombineRGB
	case OpCombineRGB8:
		return kCombineRGBU8
	case OpDepthToFloat:
		return kDepthU16
	case OpRGBNorm:
		return kRGBNorm
	case OpDepthTo3D:
		return kDepthTo3D
	case OpRGBDTo8D:
		return kRGBDTo8D
	default:
		return kSplitPC8D
	}
}

// quad reports whether the kernel handles four pixels per invocation.
// The packed formats do, because their pixels straddle word boundaries.
func (op ImageOp) quad() bool {
	switch op {
	case OpSeparateRGB8, OpCombineRGB8, OpDepthToFloat:
		return true
	default:
		return false
	}
}

// ImageParams carries the per-op knobs. Unused fields are ignored.
type ImageParams struct {
	// Scaling multiplies depth values (DepthToFloat, DepthTo3D, RGBDTo8D).
	Scaling float32
	// Focal is the pinhole focal length in pixels (DepthTo3D, RGBDTo8D).
	Focal float32
	// Normalize asks RGBDTo8D for unit-sum colors in the records.
	Normalize bool
	// Offset is the record index SplitPC8D starts writing at, so several
	// frames can land in one cloud.
	Offset int
}

// ImageStage runs one of the image adapter kernels.
type ImageStage struct {
	state stageState
	op    ImageOp
	n     int
	par   ImageParams

	u  hal.Buffer
	bg hal.BindGroup
}

// NewImageStage creates an unconfigured adapter stage for op.
func NewImageStage(eng *Engine, op ImageOp, staging guidedfilter.Staging) *ImageStage {
	return newImageStage(eng, op.String(), op, staging)
}

func newImageStage(eng *Engine, label string, op ImageOp, staging guidedfilter.Staging) *ImageStage {
	st := &ImageStage{op: op}
	st.state.init(eng, label, staging)
	return st
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (st *ImageStage) Bind(role Role, buf hal.Buffer) error { return st.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (st *ImageStage) Buffer(role Role) hal.Buffer { return st.state.buffer(role) }

// Op returns the configured operation.
func (st *ImageStage) Op() ImageOp { return st.op }

// Configure freezes the stage for a width x height extent. SplitPC8D
// treats width*height as a flat record count.
func (st *ImageStage) Configure(width, height int, par ImageParams) error {
	if st.state.configured {
		return fmt.Errorf("compute: %s: already configured", st.state.label)
	}
	if !st.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", st.state.label)
	}
	n := width * height
	if width <= 0 || height <= 0 || n%4 != 0 {
		return fmt.Errorf("compute: %s: extent %dx%d must be positive with a multiple-of-4 area",
			st.state.label, width, height)
	}
	if par.Offset < 0 {
		return fmt.Errorf("compute: %s: negative record offset %d", st.state.label, par.Offset)
	}
	st.n = n
	st.par = par

	if err := st.state.allocate(st.slotSpecs()); err != nil {
		return err
	}

	flag := uint32(0)
	if par.Normalize {
		flag = 1
	}
	cfg := imageConfig{
		Width:   uint32(width),
		Height:  uint32(height),
		Scaling: par.Scaling,
		Focal:   par.Focal,
		Flag:    flag,
		Offset:  uint32(par.Offset),
	}
	u, err := st.state.newUniform("cfg", cfg.toBytes())
	if err != nil {
		st.state.free()
		return err
	}
	st.u = u

	bg, err := st.state.newBindGroup(st.op.kernel(), st.bindEntries())
	if err != nil {
		st.state.free()
		return err
	}
	st.bg = bg
	return nil
}

// slotSpecs returns the op's buffer layout. Sizes are in bytes; n is the
// pixel (or record) count.
func (st *ImageStage) slotSpecs() []slotSpec {
	n := uint64(st.n)
	plane := n * 4
	switch st.op {
	case OpSeparateRGB:
		return []slotSpec{
			{role: RoleIn, size: 3 * plane, usage: usageUpload},
			{role: RoleRed, size: plane, usage: usageReadout},
			{role: RoleGreen, size: plane, usage: usageReadout},
			{role: RoleBlue, size: plane, usage: usageReadout},
		}
	case OpSeparateRGB8:
		return []slotSpec{
			{role: RoleIn, size: 3 * n, usage: usageUpload},
			{role: RoleRed, size: plane, usage: usageReadout},
			{role: RoleGreen, size: plane, usage: usageReadout},
			{role: RoleBlue, size: plane, usage: usageReadout},
		}
	case OpCombineRGB:
		return []slotSpec{
			{role: RoleRed, size: plane, usage: usageUpload},
			{role: RoleGreen, size: plane, usage: usageUpload},
			{role: RoleBlue, size: plane, usage: usageUpload},
			{role: RoleOut, size: 3 * plane, usage: usageReadout},
		}
	case OpCombineRGB8:
		return []slotSpec{
			{role: RoleRed, size: plane, usage: usageUpload},
			{role: RoleGreen, size: plane, usage: usageUpload},
			{role: RoleBlue, size: plane, usage: usageUpload},
			{role: RoleOut, size: 3 * n, usage: usageReadout},
		}
	case OpDepthToFloat:
		return []slotSpec{
			{role: RoleIn, size: 2 * n, usage: usageUpload},
			{role: RoleOut, size: plane, usage: usageReadout},
		}
	case OpRGBNorm:
		return []slotSpec{
			{role: RoleIn, size: 3 * plane, usage: usageUpload},
			{role: RoleOut, size: 3 * plane, usage: usageReadout},
		}
	case OpDepthTo3D:
		return []slotSpec{
			{role: RoleIn, size: plane, usage: usageUpload},
			{role: RolePoints, size: n * 16, usage: usageReadout},
		}
	case OpRGBDTo8D:
		return []slotSpec{
			{role: RoleIn, size: plane, usage: usageUpload},
			{role: RoleRed, size: plane, usage: usageUpload},
			{role: RoleGreen, size: plane, usage: usageUpload},
			{role: RoleBlue, size: plane, usage: usageUpload},
			{role: RolePoints, size: 2 * n * 16, usage: usageReadout},
		}
	default: // OpSplitPC8D
		cloud := (uint64(st.par.Offset) + n) * 16
		return []slotSpec{
			{role: RoleIn, size: 2 * n * 16, usage: usageUpload},
			{role: RolePoints, size: cloud, usage: usageReadout},
			{role: RoleColors, size: cloud, usage: usageReadout},
		}
	}
}

// bindEntries lists the op's bindings in shader declaration order.
func (st *ImageStage) bindEntries() []gputypes.BindGroupEntry {
	buf := st.state.buffer
	switch st.op {
	case OpSeparateRGB, OpSeparateRGB8:
		return []gputypes.BindGroupEntry{
			bufferEntry(0, st.u),
			bufferEntry(1, buf(RoleIn)),
			bufferEntry(2, buf(RoleRed)),
			bufferEntry(3, buf(RoleGreen)),
			bufferEntry(4, buf(RoleBlue)),
		}
	case OpCombineRGB, OpCombineRGB8:
		return []gputypes.BindGroupEntry{
			bufferEntry(0, st.u),
			bufferEntry(1, buf(RoleRed)),
			bufferEntry(2, buf(RoleGreen)),
			bufferEntry(3, buf(RoleBlue)),
			bufferEntry(4, buf(RoleOut)),
		}
	case OpDepthToFloat, OpRGBNorm:
		return []gputypes.BindGroupEntry{
			bufferEntry(0, st.u),
			bufferEntry(1, buf(RoleIn)),
			bufferEntry(2, buf(RoleOut)),
		}
	case OpDepthTo3D:
		return []gputypes.BindGroupEntry{
			bufferEntry(0, st.u),
			bufferEntry(1, buf(RoleIn)),
			bufferEntry(2, buf(RolePoints)),
		}
	case OpRGBDTo8D:
		return []gputypes.BindGroupEntry{
			bufferEntry(0, st.u),
			bufferEntry(1, buf(RoleIn)),
			bufferEntry(2, buf(RoleRed)),
			bufferEntry(3, buf(RoleGreen)),
			bufferEntry(4, buf(RoleBlue)),
			bufferEntry(5, buf(RolePoints)),
		}
	default: // OpSplitPC8D
		return []gputypes.BindGroupEntry{
			bufferEntry(0, st.u),
			bufferEntry(1, buf(RoleIn)),
			bufferEntry(2, buf(RolePoints)),
			bufferEntry(3, buf(RoleColors)),
		}
	}
}

// Write uploads raw bytes into a slot, gated by the staging mode. The
// conversion helpers in buffers.go produce the right layouts.
func (st *ImageStage) Write(role Role, data []byte) error {
	return st.state.writeBytes(role, data)
}

// Read downloads raw bytes from a slot, gated by the staging mode.
func (st *ImageStage) Read(role Role, out []byte) error {
	return st.state.readRoleBytes(role, out)
}

func (st *ImageStage) record(enc hal.CommandEncoder) {
	count := st.n
	if st.op.quad() {
		count = ceilDiv(count, 4)
	}
	st.state.eng.recordPass(enc, st.state.label, st.op.kernel(), st.bg,
		uint32(ceilDiv(count, wgSize)), 1)
}

// Run executes the adapter standalone and waits for completion.
func (st *ImageStage) Run() error {
	if !st.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", st.state.label)
	}
	return st.state.eng.runOnce(st.state.label, st.record)
}

// Free releases the stage's GPU resources.
func (st *ImageStage) Free() {
	st.state.free()
	st.bg = nil
	st.u = nil
}
