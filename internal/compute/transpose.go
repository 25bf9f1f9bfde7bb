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

// TransposeStage transposes a 2-D float array through shared-memory tiles
// so both the loads and the stores stay coalesced. The tile side adapts
// to the extent: 16 where the vec4 grid allows it, smaller for narrow
// images.
type TransposeStage struct {
	state stageState
	plan  transposePlan

	u  hal.Buffer
	bg hal.BindGroup
}

// NewTransposeStage creates an unconfigured transpose stage.
func NewTransposeStage(eng *Engine, staging guidedfilter.Staging) *TransposeStage {
	return newTransposeStage(eng, "transpose", staging)
}

func newTransposeStage(eng *Engine, label string, staging guidedfilter.Staging) *TransposeStage {
	t := &TransposeStage{}
	t.state.init(eng, label, staging)
	return t
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (t *TransposeStage) Bind(role Role, buf hal.Buffer) error { return t.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (t *TransposeStage) Buffer(role Role) hal.Buffer { return t.state.buffer(role) }

// Configure freezes the stage for a width x height input. The output
// holds the height x width transpose.
func (t *TransposeStage) Configure(width, height int) error {
	if t.state.configured {
		return fmt.Errorf("compute: %s: already configured", t.state.label)
	}
	if !t.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", t.state.label)
	}

	plan, err := newTransposePlan(width, height)
	if err != nil {
		return err
	}
	t.plan = plan

	dataBytes := uint64(width) * uint64(height) * 4
	if err := t.state.allocate([]slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
	}); err != nil {
		return err
	}

	cfg := transposeConfig{
		ColsVec4: uint32(plan.colsVec4),
		RowsVec4: uint32(plan.rowsVec4),
	}
	u, err := t.state.newUniform("cfg", cfg.toBytes())
	if err != nil {
		t.state.free()
		return err
	}
	t.u = u

	bg, err := t.state.newBindGroup(transposeKernel(plan.side), []gputypes.BindGroupEntry{
		bufferEntry(0, t.u),
		bufferEntry(1, t.state.buffer(RoleIn)),
		bufferEntry(2, t.state.buffer(RoleOut)),
	})
	if err != nil {
		t.state.free()
		return err
	}
	t.bg = bg
	return nil
}

// Write uploads host data into the input slot, gated by the staging mode.
func (t *TransposeStage) Write(data []float32) error {
	return t.state.writeBytes(RoleIn, floatsToBytes(data))
}

// Read downloads the transposed array, gated by the staging mode.
func (t *TransposeStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := t.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

func (t *TransposeStage) record(enc hal.CommandEncoder) {
	t.state.eng.recordPass(enc, t.state.label, transposeKernel(t.plan.side), t.bg,
		uint32(t.plan.groupsX), uint32(t.plan.groupsY))
}

// Run executes the transpose standalone and waits for completion.
func (t *TransposeStage) Run() error {
	if !t.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", t.state.label)
	}
	return t.state.eng.runOnce(t.state.label, t.record)
}

// Free releases the stage's GPU resources.
func (t *TransposeStage) Free() {
	t.state.free()
	t.bg = nil
	t.u = nil
}
