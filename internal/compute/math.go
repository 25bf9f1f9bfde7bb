// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// math.go holds the element-wise primitive stages. They exist mostly as
// pipeline building blocks: the guided filter needs products and squares
// of whole planes before the windowed means.

package compute

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// MultStage multiplies two equally sized float arrays element by element.
//
// Mirrors Mult in internal/satcompute/math.go.
type MultStage struct {
	state stageState
	n     int

	u  hal.Buffer
	bg hal.BindGroup
}

// NewMultStage creates an unconfigured multiply stage.
func NewMultStage(eng *Engine, staging guidedfilter.Staging) *MultStage {
	return newMultStage(eng, "mult", staging)
}

func newMultStage(eng *Engine, label string, staging guidedfilter.Staging) *MultStage {
	m := &MultStage{}
	m.state.init(eng, label, staging)
	return m
}

// Bind attaches a caller-provided buffer to a slot before Configure. The
// factors live in RoleIn and RoleGuide.
func (m *MultStage) Bind(role Role, buf hal.Buffer) error { return m.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (m *MultStage) Buffer(role Role) hal.Buffer { return m.state.buffer(role) }

// Configure freezes the stage for n-element arrays.
func (m *MultStage) Configure(n int) error {
	if m.state.configured {
		return fmt.Errorf("compute: %s: already configured", m.state.label)
	}
	if !m.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", m.state.label)
	}
	if n <= 0 || n%4 != 0 {
		return fmt.Errorf("compute: %s: element count %d must be a positive multiple of 4", m.state.label, n)
	}
	m.n = n

	dataBytes := uint64(n) * 4
	if err := m.state.allocate([]slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleGuide, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
	}); err != nil {
		return err
	}

	cfg := mathConfig{NVec4: uint32(n / 4)}
	u, err := m.state.newUniform("cfg", cfg.toBytes())
	if err != nil {
		m.state.free()
		return err
	}
	m.u = u

	bg, err := m.state.newBindGroup(kMult, []gputypes.BindGroupEntry{
		bufferEntry(0, m.u),
		bufferEntry(1, m.state.buffer(RoleIn)),
		bufferEntry(2, m.state.buffer(RoleGuide)),
		bufferEntry(3, m.state.buffer(RoleOut)),
	})
	if err != nil {
		m.state.free()
		return err
	}
	m.bg = bg
	return nil
}

// Write uploads the first factor, gated by the staging mode.
func (m *MultStage) Write(data []float32) error {
	return m.state.writeBytes(RoleIn, floatsToBytes(data))
}

// WriteGuide uploads the second factor, gated by the staging mode.
func (m *MultStage) WriteGuide(data []float32) error {
	return m.state.writeBytes(RoleGuide, floatsToBytes(data))
}

// Read downloads the product, gated by the staging mode.
func (m *MultStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := m.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

func (m *MultStage) record(enc hal.CommandEncoder) {
	m.state.eng.recordPass(enc, m.state.label, kMult, m.bg,
		uint32(ceilDiv(m.n/4, wgSize)), 1)
}

// Run executes the multiply standalone and waits for completion.
func (m *MultStage) Run() error {
	if !m.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", m.state.label)
	}
	return m.state.eng.runOnce(m.state.label, m.record)
}

// Free releases the stage's GPU resources.
func (m *MultStage) Free() {
	m.state.free()
	m.bg = nil
	m.u = nil
}

// PownStage raises every element to an integer power. Negative powers
// invert the result, so -1 turns a plane into its reciprocals.
//
// Mirrors Pown in internal/satcompute/math.go.
type PownStage struct {
	state stageState
	n     int
	power int

	u  hal.Buffer
	bg hal.BindGroup
}

// NewPownStage creates an unconfigured power stage.
func NewPownStage(eng *Engine, staging guidedfilter.Staging) *PownStage {
	return newPownStage(eng, "pown", staging)
}

func newPownStage(eng *Engine, label string, staging guidedfilter.Staging) *PownStage {
	p := &PownStage{}
	p.state.init(eng, label, staging)
	return p
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (p *PownStage) Bind(role Role, buf hal.Buffer) error { return p.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (p *PownStage) Buffer(role Role) hal.Buffer { return p.state.buffer(role) }

// Configure freezes the stage for n-element arrays and an exponent.
func (p *PownStage) Configure(n, power int) error {
	if p.state.configured {
		return fmt.Errorf("compute: %s: already configured", p.state.label)
	}
	if !p.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", p.state.label)
	}
	if n <= 0 || n%4 != 0 {
		return fmt.Errorf("compute: %s: element count %d must be a positive multiple of 4", p.state.label, n)
	}
	p.n = n
	p.power = power

	dataBytes := uint64(n) * 4
	if err := p.state.allocate([]slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
	}); err != nil {
		return err
	}

	cfg := mathConfig{NVec4: uint32(n / 4), Power: int32(power)}
	u, err := p.state.newUniform("cfg", cfg.toBytes())
	if err != nil {
		p.state.free()
		return err
	}
	p.u = u

	bg, err := p.state.newBindGroup(kPown, []gputypes.BindGroupEntry{
		bufferEntry(0, p.u),
		bufferEntry(1, p.state.buffer(RoleIn)),
		bufferEntry(2, p.state.buffer(RoleOut)),
	})
	if err != nil {
		p.state.free()
		return err
	}
	p.bg = bg
	return nil
}

// Write uploads the input, gated by the staging mode.
func (p *PownStage) Write(data []float32) error {
	return p.state.writeBytes(RoleIn, floatsToBytes(data))
}

// Read downloads the powered elements, gated by the staging mode.
func (p *PownStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := p.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

func (p *PownStage) record(enc hal.CommandEncoder) {
	p.state.eng.recordPass(enc, p.state.label, kPown, p.bg,
		uint32(ceilDiv(p.n/4, wgSize)), 1)
}

// Run executes the power stage standalone and waits for completion.
func (p *PownStage) Run() error {
	if !p.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", p.state.label)
	}
	return p.state.eng.runOnce(p.state.label, p.record)
}

// Free releases the stage's GPU resources.
func (p *PownStage) Free() {
	p.state.free()
	p.bg = nil
	p.u = nil
}
