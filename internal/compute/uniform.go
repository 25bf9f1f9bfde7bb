// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// uniform.go defines the Go mirrors of the WGSL parameter uniform blocks.
// Every struct serializes little-endian in field order and must match its
// WGSL counterpart byte for byte.

package compute

import "encoding/binary"

// scanConfig is the parameter block of the scan and add_group_sums
// kernels. Must match ScanConfig in scan.wgsl and add_group_sums.wgsl:
// four consecutive 32-bit fields.
type scanConfig struct {
	// NVec4 is the number of vec4 columns per row.
	NVec4 uint32

	// SumsStride is the float columns per row of the group-sums array.
	SumsStride uint32

	// Scaling multiplies every element before accumulation.
	Scaling float32
}

func (c scanConfig) sizeInBytes() uint64 { return 16 }

func (c scanConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.NVec4)
	le.PutUint32(buf[4:8], c.SumsStride)
	le.PutUint32(buf[8:12], floatBits(c.Scaling))
	return buf
}

// transposeConfig is the parameter block of the transpose kernel variants.
// Must match TransposeConfig in transpose.wgsl.
type transposeConfig struct {
	// ColsVec4 is the input width in vec4s, the input row stride.
	ColsVec4 uint32

	// RowsVec4 is the input height in vec4s, the output row stride.
	RowsVec4 uint32
}

func (c transposeConfig) sizeInBytes() uint64 { return 16 }

func (c transposeConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.ColsVec4)
	le.PutUint32(buf[4:8], c.RowsVec4)
	return buf
}

// boxSATConfig is the parameter block of the box_filter_sat kernel.
// Must match BoxSATConfig in box_filter_sat.wgsl.
type boxSATConfig struct {
	Width  uint32
	Height uint32
	Radius int32

	// InvScaling undoes the scaling the summed-area table was built with.
	InvScaling float32
}

func (c boxSATConfig) sizeInBytes() uint64 { return 16 }

func (c boxSATConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.Width)
	le.PutUint32(buf[4:8], c.Height)
	le.PutUint32(buf[8:12], uint32(c.Radius))
	le.PutUint32(buf[12:16], floatBits(c.InvScaling))
	return buf
}

// boxConfig is the parameter block of the direct box_filter kernel.
// Must match BoxConfig in box_filter.wgsl.
type boxConfig struct {
	Width   uint32
	Height  uint32
	Radius  int32
	Scaling float32
}

func (c boxConfig) sizeInBytes() uint64 { return 16 }

func (c boxConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.Width)
	le.PutUint32(buf[4:8], c.Height)
	le.PutUint32(buf[8:12], uint32(c.Radius))
	le.PutUint32(buf[12:16], floatBits(c.Scaling))
	return buf
}

// mathConfig is the parameter block of the mult and pown kernels.
// Must match MathConfig in mult.wgsl and pown.wgsl.
type mathConfig struct {
	NVec4 uint32
	Power int32
}

func (c mathConfig) sizeInBytes() uint64 { return 16 }

func (c mathConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.NVec4)
	le.PutUint32(buf[4:8], uint32(c.Power))
	return buf
}

// algebraConfig is the parameter block shared by the guided filter algebra
// kernels. Must match AlgebraConfig in gf_ab.wgsl, gf_var_ip.wgsl,
// gf_ab_ip.wgsl and gf_q.wgsl.
type algebraConfig struct {
	NVec4   uint32
	Eps     float32
	Scaling float32
	ZeroOut uint32
}

func (c algebraConfig) sizeInBytes() uint64 { return 16 }

func (c algebraConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.NVec4)
	le.PutUint32(buf[4:8], floatBits(c.Eps))
	le.PutUint32(buf[8:12], floatBits(c.Scaling))
	le.PutUint32(buf[12:16], c.ZeroOut)
	return buf
}

// imageConfig is the parameter block shared by the image support kernels.
// Must match ImageConfig in separate_rgb.wgsl, combine_rgb.wgsl,
// depth_u16.wgsl, rgb_norm.wgsl, depth_to_3d.wgsl, rgbd_to_8d.wgsl and
// split_pc8d.wgsl: eight consecutive 32-bit fields.
type imageConfig struct {
	Width  uint32
	Height uint32

	// Scaling converts stored depth values to the output unit.
	Scaling float32

	// Focal is the pinhole focal length of the back-projection kernels.
	Focal float32

	// Flag toggles per-kernel behavior (color normalization).
	Flag uint32

	// Offset is the destination record offset of split_pc8d.
	Offset uint32
}

func (c imageConfig) sizeInBytes() uint64 { return 32 }

func (c imageConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.Width)
	le.PutUint32(buf[4:8], c.Height)
	le.PutUint32(buf[8:12], floatBits(c.Scaling))
	le.PutUint32(buf[12:16], floatBits(c.Focal))
	le.PutUint32(buf[16:20], c.Flag)
	le.PutUint32(buf[20:24], c.Offset)
	return buf
}
