// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// buffers.go implements the buffer-sharing side of the stage protocol:
// role-named slots, adoption of pre-bound buffers, allocation of the rest,
// and the staged host transfers.

package compute

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/guidedfilter"
)

// Role names a buffer slot of a device stage. Stages expose their slots by
// role so pipelines can chain: one stage's RoleOut buffer is bound as the
// next stage's RoleIn before configuration, and the data never leaves the
// device.
type Role int

const (
	RoleIn Role = iota
	RoleOut
	RoleGuide
	RoleSums
	RoleSumsScanned
	RoleScratch
	RoleA
	RoleB
	RoleVarI
	RoleCovIp
	RoleRed
	RoleGreen
	RoleBlue
	RolePoints
	RoleColors
)

// String returns the role name used in buffer labels and logs.
func (r Role) String() string {
	switch r {
	case RoleIn:
		return "in"
	case RoleOut:
		return "out"
	case RoleGuide:
		return "guide"
	case RoleSums:
		return "sums"
	case RoleSumsScanned:
		return "sums_scanned"
	case RoleScratch:
		return "scratch"
	case RoleA:
		return "a"
	case RoleB:
		return "b"
	case RoleVarI:
		return "var_i"
	case RoleCovIp:
		return "cov_ip"
	case RoleRed:
		return "red"
	case RoleGreen:
		return "green"
	case RoleBlue:
		return "blue"
	case RolePoints:
		return "points"
	case RoleColors:
		return "colors"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// slotSpec describes one buffer slot a stage needs.
type slotSpec struct {
	role  Role
	size  uint64
	usage gputypes.BufferUsage

	// zeroInit buffers are zero-filled at allocation. The scan group-sums
	// array relies on this for its padding slots.
	zeroInit bool
}

// Buffer usage flags:
//   - upload:   CPU writes reach the buffer through queue.WriteBuffer.
//   - readout:  the buffer can source a copy into the readback staging.
//   - internal: device-only intermediate.
//   - uniform:  parameter block, rewritten by the setters.
//   - staging:  host-visible readback target.
var (
	usageUpload   = gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	usageReadout  = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc
	usageInternal = gputypes.BufferUsageStorage
	usageUniform  = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	usageStaging  = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
)

// stageState carries the buffer bookkeeping shared by every stage: the
// pre-configuration bindings, the frozen slot set, owned resources, and
// the staging mode.
type stageState struct {
	eng     *Engine
	label   string
	staging guidedfilter.Staging

	configured bool

	// bound holds caller bindings made before Configure.
	bound map[Role]hal.Buffer

	// bufs is the frozen slot set after Configure.
	bufs map[Role]hal.Buffer

	// sizes records each slot's byte size for transfer bounds.
	sizes map[Role]uint64

	// owned lists the buffers this stage allocated and must destroy.
	// Adopted buffers belong to their allocating stage.
	owned []hal.Buffer

	// bindGroups created at Configure, destroyed with the stage.
	bindGroups []hal.BindGroup

	// readback is the host-visible staging buffer, present when the
	// staging mode includes Out.
	readback     hal.Buffer
	readbackSize uint64
}

func (s *stageState) init(eng *Engine, label string, staging guidedfilter.Staging) {
	s.eng = eng
	s.label = label
	s.staging = staging
	s.bound = make(map[Role]hal.Buffer)
	s.bufs = make(map[Role]hal.Buffer)
	s.sizes = make(map[Role]uint64)
}

// bind records a caller-provided buffer for a slot. Only valid before
// Configure; afterwards buffer identity is frozen.
func (s *stageState) bind(role Role, buf hal.Buffer) error {
	if s.configured {
		return fmt.Errorf("compute: %s: Bind(%s) after Configure", s.label, role)
	}
	if buf == nil {
		return fmt.Errorf("compute: %s: Bind(%s) with nil buffer", s.label, role)
	}
	s.bound[role] = buf
	return nil
}

// buffer returns the buffer occupying a slot, or nil if the slot does not
// exist. Before Configure it reports the pending bindings.
func (s *stageState) buffer(role Role) hal.Buffer {
	if b, ok := s.bufs[role]; ok {
		return b
	}
	return s.bound[role]
}

// allocate freezes the stage's slot set: pre-bound buffers are adopted and
// the remaining slots are allocated. A readback staging buffer is created
// for the RoleOut slot when the staging mode asks for one.
func (s *stageState) allocate(specs []slotSpec) error {
	for _, sp := range specs {
		s.sizes[sp.role] = sp.size

		if b, ok := s.bound[sp.role]; ok {
			s.bufs[sp.role] = b
			continue
		}

		buf, err := s.eng.createBuffer(
			fmt.Sprintf("%s_%s", s.label, sp.role), sp.size, sp.usage)
		if err != nil {
			s.free()
			return fmt.Errorf("compute: %s: create %s buffer: %w", s.label, sp.role, err)
		}
		s.owned = append(s.owned, buf)
		s.bufs[sp.role] = buf

		if sp.zeroInit && sp.size > 0 {
			zeros := make([]byte, sp.size)
			s.eng.queue.WriteBuffer(buf, 0, zeros)
		}
	}

	if s.staging == guidedfilter.StagingOut || s.staging == guidedfilter.StagingInOut {
		// Sized for the largest slot so stages with several output
		// planes can read any of them through the one staging buffer.
		var size uint64
		for _, sp := range specs {
			if sp.size > size {
				size = sp.size
			}
		}
		if size > 0 {
			buf, err := s.eng.createBuffer(s.label+"_staging", size, usageStaging)
			if err != nil {
				s.free()
				return fmt.Errorf("compute: %s: create staging buffer: %w", s.label, err)
			}
			s.owned = append(s.owned, buf)
			s.readback = buf
			s.readbackSize = size
		}
	}

	s.configured = true
	return nil
}

// newUniform allocates a parameter block and uploads its initial bytes.
func (s *stageState) newUniform(name string, data []byte) (hal.Buffer, error) {
	buf, err := s.eng.createBuffer(s.label+"_"+name, uint64(len(data)), usageUniform)
	if err != nil {
		return nil, fmt.Errorf("compute: %s: create %s uniform: %w", s.label, name, err)
	}
	s.owned = append(s.owned, buf)
	s.eng.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// newBindGroup creates and tracks a bind group for a kernel.
func (s *stageState) newBindGroup(k kernel, entries []gputypes.BindGroupEntry) (hal.BindGroup, error) {
	bg, err := s.eng.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s_%s_bg", s.label, k),
		Layout:  s.eng.bgLayouts[k],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("compute: %s: create %s bind group: %w", s.label, k, err)
	}
	s.bindGroups = append(s.bindGroups, bg)
	return bg, nil
}

// writeBytes moves host data into a slot through the staging gate. Without
// an In staging mode the call is a no-op, matching the protocol: the slot
// is expected to be fed by another stage on the device.
func (s *stageState) writeBytes(role Role, data []byte) error {
	if s.staging != guidedfilter.StagingIn && s.staging != guidedfilter.StagingInOut {
		return nil
	}
	if !s.configured {
		return fmt.Errorf("compute: %s: Write before Configure", s.label)
	}
	buf, ok := s.bufs[role]
	if !ok {
		return fmt.Errorf("compute: %s: Write to unknown slot %s", s.label, role)
	}
	if uint64(len(data)) > s.sizes[role] {
		return fmt.Errorf("compute: %s: Write of %d bytes exceeds %s slot size %d",
			s.label, len(data), role, s.sizes[role])
	}
	s.eng.queue.WriteBuffer(buf, 0, data)
	return nil
}

// readBytes moves the RoleOut slot back to the host through the staging
// buffer. Without an Out staging mode the call is a no-op.
func (s *stageState) readBytes(out []byte) error {
	return s.readRoleBytes(RoleOut, out)
}

// readRoleBytes is readBytes for an arbitrary slot.
func (s *stageState) readRoleBytes(role Role, out []byte) error {
	if s.staging != guidedfilter.StagingOut && s.staging != guidedfilter.StagingInOut {
		return nil
	}
	if !s.configured {
		return fmt.Errorf("compute: %s: Read before Configure", s.label)
	}
	if s.readback == nil {
		return fmt.Errorf("compute: %s: no staging buffer for Read", s.label)
	}
	if uint64(len(out)) > s.readbackSize {
		return fmt.Errorf("compute: %s: Read of %d bytes exceeds staging size %d",
			s.label, len(out), s.readbackSize)
	}
	src, ok := s.bufs[role]
	if !ok {
		return fmt.Errorf("compute: %s: no %s slot to read", s.label, role)
	}
	return s.eng.copyToHost(s.label, src, s.readback, out)
}

// free destroys everything the stage owns. Adopted buffers are untouched.
func (s *stageState) free() {
	for _, bg := range s.bindGroups {
		s.eng.device.DestroyBindGroup(bg)
	}
	s.bindGroups = nil
	for _, b := range s.owned {
		s.eng.device.DestroyBuffer(b)
	}
	s.owned = nil
	s.readback = nil
	s.bufs = make(map[Role]hal.Buffer)
}

// bufferEntry builds a bind group entry for a whole buffer.
func bufferEntry(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: 0,
			Size:   0, // 0 = entire buffer
		},
	}
}

// =============================================================================
// Host Data Conversion
// =============================================================================

func floatBits(f float32) uint32 { return math.Float32bits(f) }

// floatsToBytes serializes a float32 slice little-endian.
func floatsToBytes(src []float32) []byte {
	buf := make([]byte, len(src)*4)
	for i, f := range src {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloats deserializes little-endian float32 data.
func bytesToFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
}

// u16sToBytes serializes a uint16 slice little-endian.
func u16sToBytes(src []uint16) []byte {
	buf := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

// u8sToBytes copies byte data; interleaved 8-bit images upload as-is.
func u8sToBytes(src []uint8) []byte {
	buf := make([]byte, len(src))
	copy(buf, src)
	return buf
}

// vec4sToBytes serializes 4-float records little-endian.
func vec4sToBytes(src [][4]float32) []byte {
	buf := make([]byte, len(src)*16)
	for i, v := range src {
		for j, f := range v {
			binary.LittleEndian.PutUint32(buf[i*16+j*4:], math.Float32bits(f))
		}
	}
	return buf
}

// bytesToVec4s deserializes little-endian 4-float records.
func bytesToVec4s(src []byte, dst [][4]float32) {
	for i := range dst {
		for j := 0; j < 4; j++ {
			dst[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*16+j*4:]))
		}
	}
}
