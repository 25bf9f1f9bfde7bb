// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func u32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func f32(v float32) []byte {
	return u32(math.Float32bits(v))
}

// TestUniformLayouts tests every parameter block against its WGSL byte
// layout: little-endian, field order, 16-byte aligned size.
func TestUniformLayouts(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
		want [][]byte
		size uint64
	}{
		{
			name: "scan",
			blob: scanConfig{NVec4: 160, SumsStride: 4, Scaling: 1e-4}.toBytes(),
			want: [][]byte{u32(160), u32(4), f32(1e-4), u32(0)},
			size: scanConfig{}.sizeInBytes(),
		},
		{
			name: "transpose",
			blob: transposeConfig{ColsVec4: 160, RowsVec4: 120}.toBytes(),
			want: [][]byte{u32(160), u32(120), u32(0), u32(0)},
			size: transposeConfig{}.sizeInBytes(),
		},
		{
			name: "box sat",
			blob: boxSATConfig{Width: 640, Height: 480, Radius: 7, InvScaling: 1e4}.toBytes(),
			want: [][]byte{u32(640), u32(480), u32(7), f32(1e4)},
			size: boxSATConfig{}.sizeInBytes(),
		},
		{
			name: "box direct",
			blob: boxConfig{Width: 64, Height: 48, Radius: 4, Scaling: 1}.toBytes(),
			want: [][]byte{u32(64), u32(48), u32(4), f32(1)},
			size: boxConfig{}.sizeInBytes(),
		},
		{
			name: "math",
			blob: mathConfig{NVec4: 256, Power: 2}.toBytes(),
			want: [][]byte{u32(256), u32(2), u32(0), u32(0)},
			size: mathConfig{}.sizeInBytes(),
		},
		{
			name: "algebra",
			blob: algebraConfig{NVec4: 1024, Eps: 0.01, Scaling: 1, ZeroOut: 1}.toBytes(),
			want: [][]byte{u32(1024), f32(0.01), f32(1), u32(1)},
			size: algebraConfig{}.sizeInBytes(),
		},
		{
			name: "image",
			blob: imageConfig{Width: 640, Height: 480, Scaling: 0.001, Focal: 525, Flag: 1, Offset: 307200}.toBytes(),
			want: [][]byte{u32(640), u32(480), f32(0.001), f32(525), u32(1), u32(307200), u32(0), u32(0)},
			size: imageConfig{}.sizeInBytes(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := bytes.Join(tt.want, nil)
			if !bytes.Equal(tt.blob, want) {
				t.Errorf("toBytes() = % x, want % x", tt.blob, want)
			}
			if uint64(len(tt.blob)) != tt.size {
				t.Errorf("len(toBytes()) = %d, sizeInBytes() = %d", len(tt.blob), tt.size)
			}
			if tt.size%16 != 0 {
				t.Errorf("sizeInBytes() = %d, want a multiple of 16", tt.size)
			}
		})
	}
}

// TestNegativeRadiusBits tests that a negative radius round-trips
// through the unsigned serialization as two's complement, which is what
// the i32 field on the device reads back.
func TestNegativeRadiusBits(t *testing.T) {
	blob := boxSATConfig{Width: 16, Height: 16, Radius: -1, InvScaling: 1}.toBytes()
	got := binary.LittleEndian.Uint32(blob[8:12])
	if int32(got) != -1 {
		t.Errorf("radius bits = %#x, want two's complement of -1", got)
	}
}

// TestFloatConversionRoundTrip tests the host transfer helpers.
func TestFloatConversionRoundTrip(t *testing.T) {
	src := []float32{0, 1, -1, 0.5, 1e-4, 3.40282346e38, float32(math.Inf(1))}
	blob := floatsToBytes(src)
	if len(blob) != len(src)*4 {
		t.Fatalf("len = %d, want %d", len(blob), len(src)*4)
	}

	dst := make([]float32, len(src))
	bytesToFloats(blob, dst)
	for i := range src {
		if math.Float32bits(src[i]) != math.Float32bits(dst[i]) {
			t.Errorf("element %d: %g -> %g", i, src[i], dst[i])
		}
	}
}

// TestVec4ConversionRoundTrip tests the point record helpers.
func TestVec4ConversionRoundTrip(t *testing.T) {
	src := [][4]float32{
		{1, 2, 3, 1},
		{-0.5, 0, 525, 0},
	}
	blob := vec4sToBytes(src)
	if len(blob) != len(src)*16 {
		t.Fatalf("len = %d, want %d", len(blob), len(src)*16)
	}

	dst := make([][4]float32, len(src))
	bytesToVec4s(blob, dst)
	for i := range src {
		if src[i] != dst[i] {
			t.Errorf("record %d: %v -> %v", i, src[i], dst[i])
		}
	}
}

// TestIntegerConversions tests the 8-bit and 16-bit upload helpers.
func TestIntegerConversions(t *testing.T) {
	u16 := u16sToBytes([]uint16{0, 1, 0x1234, 0xffff})
	want16 := []byte{0, 0, 1, 0, 0x34, 0x12, 0xff, 0xff}
	if !bytes.Equal(u16, want16) {
		t.Errorf("u16sToBytes = % x, want % x", u16, want16)
	}

	in8 := []uint8{0, 128, 255}
	u8 := u8sToBytes(in8)
	if !bytes.Equal(u8, in8) {
		t.Errorf("u8sToBytes = % x, want % x", u8, in8)
	}
	u8[0] = 7
	if in8[0] != 0 {
		t.Error("u8sToBytes aliases its input, want a copy")
	}
}
