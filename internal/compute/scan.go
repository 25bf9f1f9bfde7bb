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

// ScanStage computes row-wise inclusive prefix sums of a 2-D float array
// on the device. Rows longer than one block run the three-pass scheme:
// per-block scan, scan of the block totals, add-back. Input elements are
// multiplied by a scaling factor before accumulation, which keeps the
// running sums inside float32 range for large extents.
type ScanStage struct {
	state   stageState
	plan    scanPlan
	scaling float32

	uMain hal.Buffer
	uSums hal.Buffer

	bgScan hal.BindGroup
	bgSums hal.BindGroup
	bgAdd  hal.BindGroup
}

// NewScanStage creates an unconfigured scan stage.
func NewScanStage(eng *Engine, staging guidedfilter.Staging) *ScanStage {
	return newScanStage(eng, "scan", staging)
}

func newScanStage(eng *Engine, label string, staging guidedfilter.Staging) *ScanStage {
	s := &ScanStage{}
	s.state.init(eng, label, staging)
	return s
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (s *ScanStage) Bind(role Role, buf hal.Buffer) error { return s.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (s *ScanStage) Buffer(role Role) hal.Buffer { return s.state.buffer(role) }

// Configure freezes the stage for a rowLen x rows extent. Every element
// is multiplied by scaling as it enters the sums.
func (s *ScanStage) Configure(rowLen, rows int, scaling float32) error {
	if s.state.configured {
		return fmt.Errorf("compute: %s: already configured", s.state.label)
	}
	if !s.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", s.state.label)
	}

	plan, err := newScanPlan(rowLen, rows)
	if err != nil {
		return err
	}
	s.plan = plan
	s.scaling = scaling

	dataBytes := uint64(rowLen) * uint64(rows) * 4
	specs := []slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
		// The scan kernel writes one block total per workgroup even in
		// the single-block case, and the padding floats of a widened
		// stride must read back as zero.
		{role: RoleSums, size: uint64(plan.sumsLen()) * 4, usage: usageUpload, zeroInit: true},
	}
	if plan.fixup {
		specs = append(specs,
			slotSpec{role: RoleSumsScanned, size: uint64(plan.sumsLen()) * 4, usage: usageInternal},
			slotSpec{role: RoleScratch, size: uint64(rows) * 4, usage: usageInternal},
		)
	}
	if err := s.state.allocate(specs); err != nil {
		return err
	}
	if err := s.createResources(); err != nil {
		s.state.free()
		return err
	}
	return nil
}

func (s *ScanStage) createResources() error {
	main := scanConfig{
		NVec4:      uint32(s.plan.rowLen / 4),
		SumsStride: uint32(s.plan.sumsStride),
		Scaling:    s.scaling,
	}
	uMain, err := s.state.newUniform("cfg", main.toBytes())
	if err != nil {
		return err
	}
	s.uMain = uMain

	bgScan, err := s.state.newBindGroup(kScan, []gputypes.BindGroupEntry{
		bufferEntry(0, s.uMain),
		bufferEntry(1, s.state.buffer(RoleIn)),
		bufferEntry(2, s.state.buffer(RoleOut)),
		bufferEntry(3, s.state.buffer(RoleSums)),
	})
	if err != nil {
		return err
	}
	s.bgScan = bgScan

	if !s.plan.fixup {
		return nil
	}

	sums := scanConfig{
		NVec4:      uint32(s.plan.sumsStride / 4),
		SumsStride: 1,
		Scaling:    1,
	}
	uSums, err := s.state.newUniform("sums_cfg", sums.toBytes())
	if err != nil {
		return err
	}
	s.uSums = uSums

	bgSums, err := s.state.newBindGroup(kScan, []gputypes.BindGroupEntry{
		bufferEntry(0, s.uSums),
		bufferEntry(1, s.state.buffer(RoleSums)),
		bufferEntry(2, s.state.buffer(RoleSumsScanned)),
		bufferEntry(3, s.state.buffer(RoleScratch)),
	})
	if err != nil {
		return err
	}
	s.bgSums = bgSums

	bgAdd, err := s.state.newBindGroup(kAddGroupSums, []gputypes.BindGroupEntry{
		bufferEntry(0, s.uMain),
		bufferEntry(1, s.state.buffer(RoleSumsScanned)),
		bufferEntry(2, s.state.buffer(RoleOut)),
	})
	if err != nil {
		return err
	}
	s.bgAdd = bgAdd
	return nil
}

// SetScaling rewrites the load-time scaling factor without reallocating.
func (s *ScanStage) SetScaling(scaling float32) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetScaling before Configure", s.state.label)
	}
	s.scaling = scaling
	cfg := scanConfig{
		NVec4:      uint32(s.plan.rowLen / 4),
		SumsStride: uint32(s.plan.sumsStride),
		Scaling:    scaling,
	}
	s.state.eng.queue.WriteBuffer(s.uMain, 0, cfg.toBytes())
	return nil
}

// Write uploads host data into the input slot, gated by the staging mode.
func (s *ScanStage) Write(data []float32) error {
	return s.state.writeBytes(RoleIn, floatsToBytes(data))
}

// Read downloads the scanned rows, gated by the staging mode.
func (s *ScanStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := s.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

// record appends the stage's passes to an encoder. Pass order carries the
// block-totals dependency; the device barriers between passes do the rest.
func (s *ScanStage) record(enc hal.CommandEncoder) {
	s.state.eng.recordPass(enc, s.state.label, kScan, s.bgScan,
		uint32(s.plan.groups), uint32(s.plan.rows))
	if s.plan.fixup {
		s.state.eng.recordPass(enc, s.state.label+"_sums", kScan, s.bgSums,
			1, uint32(s.plan.rows))
		s.state.eng.recordPass(enc, s.state.label+"_add", kAddGroupSums, s.bgAdd,
			uint32(s.plan.groups-1), uint32(s.plan.rows))
	}
}

// Run executes the scan standalone and waits for completion.
func (s *ScanStage) Run() error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", s.state.label)
	}
	return s.state.eng.runOnce(s.state.label, s.record)
}

// Free releases the stage's GPU resources. Bound buffers stay with their
// owners.
func (s *ScanStage) Free() {
	s.state.free()
	s.bgScan, s.bgSums, s.bgAdd = nil, nil, nil
	s.uMain, s.uSums = nil, nil
}
