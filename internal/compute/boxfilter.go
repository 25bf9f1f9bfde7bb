// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// BoxFilterStage runs the direct sliding-window box filter. Every
// invocation walks its full window, so the cost grows with the radius;
// for small radii it beats building a table.
//
// Mirrors BoxFilter in internal/satcompute/boxfilter.go.
type BoxFilterStage struct {
	state stageState

	width, height int
	radius        int
	scaling       float32

	u  hal.Buffer
	bg hal.BindGroup
}

// NewBoxFilterStage creates an unconfigured direct box filter.
func NewBoxFilterStage(eng *Engine, staging guidedfilter.Staging) *BoxFilterStage {
	return newBoxFilterStage(eng, "box", staging)
}

func newBoxFilterStage(eng *Engine, label string, staging guidedfilter.Staging) *BoxFilterStage {
	b := &BoxFilterStage{}
	b.state.init(eng, label, staging)
	return b
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (b *BoxFilterStage) Bind(role Role, buf hal.Buffer) error { return b.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (b *BoxFilterStage) Buffer(role Role) hal.Buffer { return b.state.buffer(role) }

// Configure freezes the stage for a width x height image and a window
// radius. Outputs are multiplied by scaling after the mean.
func (b *BoxFilterStage) Configure(width, height, radius int, scaling float32) error {
	if b.state.configured {
		return fmt.Errorf("compute: %s: already configured", b.state.label)
	}
	if !b.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", b.state.label)
	}
	if err := checkTile16(width, height); err != nil {
		return err
	}
	if radius < 0 {
		return fmt.Errorf("compute: %s: radius %d must be non-negative", b.state.label, radius)
	}

	b.width, b.height, b.radius = width, height, radius
	b.scaling = scaling

	dataBytes := uint64(width) * uint64(height) * 4
	if err := b.state.allocate([]slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
	}); err != nil {
		return err
	}

	u, err := b.state.newUniform("cfg", b.config().toBytes())
	if err != nil {
		b.state.free()
		return err
	}
	b.u = u

	bg, err := b.state.newBindGroup(kBoxFilter, []gputypes.BindGroupEntry{
		bufferEntry(0, b.u),
		bufferEntry(1, b.state.buffer(RoleIn)),
		bufferEntry(2, b.state.buffer(RoleOut)),
	})
	if err != nil {
		b.state.free()
		return err
	}
	b.bg = bg
	return nil
}

func (b *BoxFilterStage) config() boxConfig {
	return boxConfig{
		Width:   uint32(b.width),
		Height:  uint32(b.height),
		Radius:  int32(b.radius),
		Scaling: b.scaling,
	}
}

// SetRadius rewrites the window radius without reallocating.
func (b *BoxFilterStage) SetRadius(radius int) error {
	if !b.state.configured {
		return fmt.Errorf("compute: %s: SetRadius before Configure", b.state.label)
	}
	if radius < 0 {
		return fmt.Errorf("compute: %s: radius %d must be non-negative", b.state.label, radius)
	}
	b.radius = radius
	b.state.eng.queue.WriteBuffer(b.u, 0, b.config().toBytes())
	return nil
}

// SetScaling rewrites the output scaling without reallocating.
func (b *BoxFilterStage) SetScaling(scaling float32) error {
	if !b.state.configured {
		return fmt.Errorf("compute: %s: SetScaling before Configure", b.state.label)
	}
	b.scaling = scaling
	b.state.eng.queue.WriteBuffer(b.u, 0, b.config().toBytes())
	return nil
}

// Write uploads the source image, gated by the staging mode.
func (b *BoxFilterStage) Write(data []float32) error {
	return b.state.writeBytes(RoleIn, floatsToBytes(data))
}

// Read downloads the filtered image, gated by the staging mode.
func (b *BoxFilterStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := b.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

func (b *BoxFilterStage) record(enc hal.CommandEncoder) {
	b.state.eng.recordPass(enc, b.state.label, kBoxFilter, b.bg,
		uint32(b.width/tileSide), uint32(b.height/tileSide))
}

// Run executes the filter standalone and waits for completion.
func (b *BoxFilterStage) Run() error {
	if !b.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", b.state.label)
	}
	return b.state.eng.runOnce(b.state.label, b.record)
}

// Free releases the stage's GPU resources.
func (b *BoxFilterStage) Free() {
	b.state.free()
	b.bg = nil
	b.u = nil
}

// BoxFilterSATStage runs the constant-time box filter: a summed-area
// table built in the transposed orientation, then a four-corner lookup
// per pixel. The window cost is independent of the radius, so this is
// the variant the guided filter pipelines build on.
//
// Mirrors BoxFilterSAT in internal/satcompute/boxfilter.go.
type BoxFilterSATStage struct {
	state stageState

	width, height int
	radius        int
	satScaling    float32

	sat *SATStage
	u   hal.Buffer
	bg  hal.BindGroup
}

// NewBoxFilterSATStage creates an unconfigured SAT box filter.
func NewBoxFilterSATStage(eng *Engine, staging guidedfilter.Staging) *BoxFilterSATStage {
	return newBoxFilterSATStage(eng, "boxsat", staging)
}

func newBoxFilterSATStage(eng *Engine, label string, staging guidedfilter.Staging) *BoxFilterSATStage {
	b := &BoxFilterSATStage{}
	b.state.init(eng, label, staging)
	return b
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (b *BoxFilterSATStage) Bind(role Role, buf hal.Buffer) error { return b.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (b *BoxFilterSATStage) Buffer(role Role) hal.Buffer { return b.state.buffer(role) }

// Configure freezes the stage. The table is built with satScaling to
// keep its sums in float32 range; the filter pass divides it back out,
// so the output is a plain windowed mean.
func (b *BoxFilterSATStage) Configure(width, height, radius int, satScaling float32) error {
	if b.state.configured {
		return fmt.Errorf("compute: %s: already configured", b.state.label)
	}
	if !b.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", b.state.label)
	}
	if err := checkTile16(width, height); err != nil {
		return err
	}
	if radius < 0 {
		return fmt.Errorf("compute: %s: radius %d must be non-negative", b.state.label, radius)
	}
	if satScaling <= 0 {
		return fmt.Errorf("compute: %s: scaling %g must be positive", b.state.label, satScaling)
	}

	b.width, b.height, b.radius = width, height, radius
	b.satScaling = satScaling

	dataBytes := uint64(width) * uint64(height) * 4
	if err := b.state.allocate([]slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
	}); err != nil {
		return err
	}

	b.sat = newSATStage(b.state.eng, b.state.label+"_sat", guidedfilter.StagingNone)
	if err := b.sat.Bind(RoleIn, b.state.buffer(RoleIn)); err != nil {
		b.Free()
		return err
	}
	if err := b.sat.Configure(width, height, satScaling, false); err != nil {
		b.Free()
		return err
	}

	u, err := b.state.newUniform("cfg", b.config().toBytes())
	if err != nil {
		b.Free()
		return err
	}
	b.u = u

	bg, err := b.state.newBindGroup(kBoxFilterSAT, []gputypes.BindGroupEntry{
		bufferEntry(0, b.u),
		bufferEntry(1, b.sat.Buffer(RoleOut)),
		bufferEntry(2, b.state.buffer(RoleOut)),
	})
	if err != nil {
		b.Free()
		return err
	}
	b.bg = bg
	return nil
}

func (b *BoxFilterSATStage) config() boxSATConfig {
	return boxSATConfig{
		Width:      uint32(b.width),
		Height:     uint32(b.height),
		Radius:     int32(b.radius),
		InvScaling: 1 / b.satScaling,
	}
}

// SetRadius rewrites the window radius without rebuilding anything.
func (b *BoxFilterSATStage) SetRadius(radius int) error {
	if !b.state.configured {
		return fmt.Errorf("compute: %s: SetRadius before Configure", b.state.label)
	}
	if radius < 0 {
		return fmt.Errorf("compute: %s: radius %d must be non-negative", b.state.label, radius)
	}
	b.radius = radius
	b.state.eng.queue.WriteBuffer(b.u, 0, b.config().toBytes())
	return nil
}

// SetScaling rewrites the table scaling on both sides of the filter.
func (b *BoxFilterSATStage) SetScaling(satScaling float32) error {
	if !b.state.configured {
		return fmt.Errorf("compute: %s: SetScaling before Configure", b.state.label)
	}
	if satScaling <= 0 {
		return fmt.Errorf("compute: %s: scaling %g must be positive", b.state.label, satScaling)
	}
	b.satScaling = satScaling
	if err := b.sat.SetScaling(satScaling); err != nil {
		return err
	}
	b.state.eng.queue.WriteBuffer(b.u, 0, b.config().toBytes())
	return nil
}

// Write uploads the source image, gated by the staging mode.
func (b *BoxFilterSATStage) Write(data []float32) error {
	return b.state.writeBytes(RoleIn, floatsToBytes(data))
}

// Read downloads the filtered image, gated by the staging mode.
func (b *BoxFilterSATStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := b.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

func (b *BoxFilterSATStage) record(enc hal.CommandEncoder) {
	b.sat.record(enc)
	b.state.eng.recordPass(enc, b.state.label, kBoxFilterSAT, b.bg,
		uint32(b.height/tileSide), uint32(b.width/tileSide))
}

// Run executes the filter standalone and waits for completion.
func (b *BoxFilterSATStage) Run() error {
	if !b.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", b.state.label)
	}
	return b.state.eng.runOnce(b.state.label, b.record)
}

// Free releases the stage and its table builder.
func (b *BoxFilterSATStage) Free() {
	if b.sat != nil {
		b.sat.Free()
		b.sat = nil
	}
	b.state.free()
	b.bg = nil
	b.u = nil
}
