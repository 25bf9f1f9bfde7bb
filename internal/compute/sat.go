// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// SATStage builds a summed-area table: prefix sums along the rows, a
// tiled transpose, prefix sums again. By default the result stays in the
// transposed orientation, which is the layout the SAT box filter reads;
// restore asks for a fourth pass transposing it back to row-major.
//
// Mirrors SATTransposed and SAT in internal/satcompute/sat.go.
type SATStage struct {
	state stageState

	width, height int
	transposed    bool

	scanRows  *ScanStage
	trans     *TransposeStage
	scanCols  *ScanStage
	transBack *TransposeStage
}

// NewSATStage creates an unconfigured SAT builder.
func NewSATStage(eng *Engine, staging guidedfilter.Staging) *SATStage {
	return newSATStage(eng, "sat", staging)
}

func newSATStage(eng *Engine, label string, staging guidedfilter.Staging) *SATStage {
	s := &SATStage{}
	s.state.init(eng, label, staging)
	return s
}

// Bind attaches a caller-provided buffer to a slot before Configure.
func (s *SATStage) Bind(role Role, buf hal.Buffer) error { return s.state.bind(role, buf) }

// Buffer exposes a slot's buffer for chaining into another stage.
func (s *SATStage) Buffer(role Role) hal.Buffer { return s.state.buffer(role) }

// Transposed reports whether the output keeps the column-major layout.
func (s *SATStage) Transposed() bool { return s.transposed }

// Configure freezes the builder for a width x height image. Scaling is
// applied once, as elements enter the first scan. With restore false the
// output slot holds the transposed table.
func (s *SATStage) Configure(width, height int, scaling float32, restore bool) error {
	if s.state.configured {
		return fmt.Errorf("compute: %s: already configured", s.state.label)
	}
	if !s.state.eng.ready() {
		return fmt.Errorf("compute: %s: engine not initialized", s.state.label)
	}

	s.width, s.height = width, height
	s.transposed = !restore

	dataBytes := uint64(width) * uint64(height) * 4
	if err := s.state.allocate([]slotSpec{
		{role: RoleIn, size: dataBytes, usage: usageUpload},
		{role: RoleOut, size: dataBytes, usage: usageReadout},
	}); err != nil {
		return err
	}

	if err := s.configureChildren(width, height, scaling, restore); err != nil {
		s.Free()
		return err
	}
	return nil
}

func (s *SATStage) configureChildren(width, height int, scaling float32, restore bool) error {
	eng := s.state.eng
	label := s.state.label

	s.scanRows = newScanStage(eng, label+"_rows", guidedfilter.StagingNone)
	if err := s.scanRows.Bind(RoleIn, s.state.buffer(RoleIn)); err != nil {
		return err
	}
	if err := s.scanRows.Configure(width, height, scaling); err != nil {
		return err
	}

	s.trans = newTransposeStage(eng, label+"_t", guidedfilter.StagingNone)
	if err := s.trans.Bind(RoleIn, s.scanRows.Buffer(RoleOut)); err != nil {
		return err
	}
	if err := s.trans.Configure(width, height); err != nil {
		return err
	}

	s.scanCols = newScanStage(eng, label+"_cols", guidedfilter.StagingNone)
	if err := s.scanCols.Bind(RoleIn, s.trans.Buffer(RoleOut)); err != nil {
		return err
	}
	if !restore {
		if err := s.scanCols.Bind(RoleOut, s.state.buffer(RoleOut)); err != nil {
			return err
		}
	}
	// The transposed array is height wide and width tall.
	if err := s.scanCols.Configure(height, width, 1); err != nil {
		return err
	}
	if restore {
		s.transBack = newTransposeStage(eng, label+"_tb", guidedfilter.StagingNone)
		if err := s.transBack.Bind(RoleIn, s.scanCols.Buffer(RoleOut)); err != nil {
			return err
		}
		if err := s.transBack.Bind(RoleOut, s.state.buffer(RoleOut)); err != nil {
			return err
		}
		if err := s.transBack.Configure(height, width); err != nil {
			return err
		}
	}
	return nil
}

// SetScaling rewrites the scaling applied by the first scan.
func (s *SATStage) SetScaling(scaling float32) error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: SetScaling before Configure", s.state.label)
	}
	return s.scanRows.SetScaling(scaling)
}

// Write uploads the source image, gated by the staging mode.
func (s *SATStage) Write(data []float32) error {
	return s.state.writeBytes(RoleIn, floatsToBytes(data))
}

// Read downloads the table, gated by the staging mode. The layout is
// column-major unless Configure asked for the restoring transpose.
func (s *SATStage) Read(out []float32) error {
	tmp := make([]byte, len(out)*4)
	if err := s.state.readBytes(tmp); err != nil {
		return err
	}
	bytesToFloats(tmp, out)
	return nil
}

func (s *SATStage) record(enc hal.CommandEncoder) {
	s.scanRows.record(enc)
	s.trans.record(enc)
	s.scanCols.record(enc)
	if s.transBack != nil {
		s.transBack.record(enc)
	}
}

// Run executes the builder standalone and waits for completion.
func (s *SATStage) Run() error {
	if !s.state.configured {
		return fmt.Errorf("compute: %s: Run before Configure", s.state.label)
	}
	return s.state.eng.runOnce(s.state.label, s.record)
}

// Free releases the builder and its internal stages.
func (s *SATStage) Free() {
	for _, st := range []*ScanStage{s.scanRows, s.scanCols} {
		if st != nil {
			st.Free()
		}
	}
	for _, st := range []*TransposeStage{s.trans, s.transBack} {
		if st != nil {
			st.Free()
		}
	}
	s.scanRows, s.scanCols, s.trans, s.transBack = nil, nil, nil, nil
	s.state.free()
}
