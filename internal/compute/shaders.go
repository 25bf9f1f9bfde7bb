// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// shaders.go owns the embedded WGSL kernel sources, the kernel registry,
// and the bind group layouts that must match the @binding annotations in
// each shader exactly.

package compute

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
)

// =============================================================================
// Embedded WGSL Shader Sources
// =============================================================================

//go:embed shaders/scan.wgsl
var shaderScan string

//go:embed shaders/add_group_sums.wgsl
var shaderAddGroupSums string

//go:embed shaders/transpose.wgsl
var shaderTranspose string

//go:embed shaders/box_filter_sat.wgsl
var shaderBoxFilterSAT string

//go:embed shaders/box_filter.wgsl
var shaderBoxFilter string

//go:embed shaders/mult.wgsl
var shaderMult string

//go:embed shaders/pown.wgsl
var shaderPown string

//go:embed shaders/gf_ab.wgsl
var shaderSelfAB string

//go:embed shaders/gf_var_ip.wgsl
var shaderVarIp string

//go:embed shaders/gf_ab_ip.wgsl
var shaderCrossAB string

//go:embed shaders/gf_q.wgsl
var shaderQ string

//go:embed shaders/separate_rgb.wgsl
var shaderSeparateRGB string

//go:embed shaders/separate_rgb_u8.wgsl
var shaderSeparateRGBU8 string

//go:embed shaders/combine_rgb.wgsl
var shaderCombineRGB string

//go:embed shaders/combine_rgb_u8.wgsl
var shaderCombineRGBU8 string

//go:embed shaders/depth_u16.wgsl
var shaderDepthU16 string

//go:embed shaders/rgb_norm.wgsl
var shaderRGBNorm string

//go:embed shaders/depth_to_3d.wgsl
var shaderDepthTo3D string

//go:embed shaders/rgbd_to_8d.wgsl
var shaderRGBDTo8D string

//go:embed shaders/split_pc8d.wgsl
var shaderSplitPC8D string

// =============================================================================
// Kernel Registry
// =============================================================================

// kernel identifies one compiled compute pipeline. The transpose kernel
// compiles once per tile side because the workgroup dimensions are
// constants in WGSL.
type kernel int

const (
	kScan kernel = iota
	kAddGroupSums
	kTranspose2
	kTranspose4
	kTranspose8
	kTranspose16
	kBoxFilterSAT
	kBoxFilter
	kMult
	kPown
	kSelfAB
	kVarIp
	kCrossAB
	kQ
	kSeparateRGB
	kSeparateRGBU8
	kCombineRGB
	kCombineRGBU8
	kDepthU16
	kRGBNorm
	kDepthTo3D
	kRGBDTo8D
	kSplitPC8D

	kernelCount
)

// String returns the shader-style name of the kernel.
func (k kernel) String() string {
	switch k {
	case kScan:
		return "scan"
	case kAddGroupSums:
		return "add_group_sums"
	case kTranspose2:
		return "transpose_2"
	case kTranspose4:
		return "transpose_4"
	case kTranspose8:
		return "transpose_8"
	case kTranspose16:
		return "transpose_16"
	case kBoxFilterSAT:
		return "box_filter_sat"
	case kBoxFilter:
		return "box_filter"
	case kMult:
		return "mult"
	case kPown:
		return "pown"
	case kSelfAB:
		return "gf_ab"
	case kVarIp:
		return "gf_var_ip"
	case kCrossAB:
		return "gf_ab_ip"
	case kQ:
		return "gf_q"
	case kSeparateRGB:
		return "separate_rgb"
	case kSeparateRGBU8:
		return "separate_rgb_u8"
	case kCombineRGB:
		return "combine_rgb"
	case kCombineRGBU8:
		return "combine_rgb_u8"
	case kDepthU16:
		return "depth_u16"
	case kRGBNorm:
		return "rgb_norm"
	case kDepthTo3D:
		return "depth_to_3d"
	case kRGBDTo8D:
		return "rgbd_to_8d"
	case kSplitPC8D:
		return "split_pc8d"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// transposeKernel returns the kernel variant for a tile side.
func transposeKernel(side int) kernel {
	switch side {
	case 2:
		return kTranspose2
	case 4:
		return kTranspose4
	case 8:
		return kTranspose8
	default:
		return kTranspose16
	}
}

// transposeVariant rewrites the tile side constant in the transpose shader
// before compilation. WGSL workgroup dimensions must be constants, so each
// side is a separate pipeline.
func transposeVariant(side int) string {
	return strings.Replace(shaderTranspose,
		"const TILE_SIDE: u32 = 16u;",
		fmt.Sprintf("const TILE_SIDE: u32 = %du;", side), 1)
}

// kernelSource returns the WGSL source for a kernel.
func kernelSource(k kernel) string {
	switch k {
	case kScan:
		return shaderScan
	case kAddGroupSums:
		return shaderAddGroupSums
	case kTranspose2:
		return transposeVariant(2)
	case kTranspose4:
		return transposeVariant(4)
	case kTranspose8:
		return transposeVariant(8)
	case kTranspose16:
		return shaderTranspose
	case kBoxFilterSAT:
		return shaderBoxFilterSAT
	case kBoxFilter:
		return shaderBoxFilter
	case kMult:
		return shaderMult
	case kPown:
		return shaderPown
	case kSelfAB:
		return shaderSelfAB
	case kVarIp:
		return shaderVarIp
	case kCrossAB:
		return shaderCrossAB
	case kQ:
		return shaderQ
	case kSeparateRGB:
		return shaderSeparateRGB
	case kSeparateRGBU8:
		return shaderSeparateRGBU8
	case kCombineRGB:
		return shaderCombineRGB
	case kCombineRGBU8:
		return shaderCombineRGBU8
	case kDepthU16:
		return shaderDepthU16
	case kRGBNorm:
		return shaderRGBNorm
	case kDepthTo3D:
		return shaderDepthTo3D
	case kRGBDTo8D:
		return shaderRGBDTo8D
	case kSplitPC8D:
		return shaderSplitPC8D
	default:
		return ""
	}
}

// =============================================================================
// Bind Group Layouts
// =============================================================================

// kernelLayoutEntries returns the bind group layout entries for a kernel.
// These entries match the @group(0) @binding(N) annotations in the
// corresponding WGSL shader files exactly.
func kernelLayoutEntries(k kernel) []gputypes.BindGroupLayoutEntry {
	// configUniform is the layout entry for binding(0), the parameter
	// uniform block every kernel carries.
	configUniform := gputypes.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: gputypes.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
	}
	storageRO := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		}
	}
	storageRW := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		}
	}

	switch k {
	case kScan:
		// binding(1) input, binding(2) output, binding(3) group sums.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRW(2), storageRW(3),
		}

	case kAddGroupSums:
		// binding(1) scanned sums, binding(2) data in place.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRW(2),
		}

	case kTranspose2, kTranspose4, kTranspose8, kTranspose16,
		kBoxFilterSAT, kBoxFilter, kPown, kDepthU16, kRGBNorm, kDepthTo3D:
		// binding(1) input, binding(2) output.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRW(2),
		}

	case kMult:
		// binding(1) a, binding(2) b, binding(3) product.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRO(2), storageRW(3),
		}

	case kSelfAB:
		// binding(1) mean_p, binding(2) mean_p2, binding(3) a, binding(4) b.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRO(2), storageRW(3), storageRW(4),
		}

	case kVarIp:
		// binding(1..4) mean_I, mean_p, corr_I, corr_Ip,
		// binding(5) var_I, binding(6) cov_Ip.
		return []gputypes.BindGroupLayoutEntry{
			configUniform,
			storageRO(1), storageRO(2), storageRO(3), storageRO(4),
			storageRW(5), storageRW(6),
		}

	case kCrossAB:
		// binding(1..4) var_I, cov_Ip, mean_I, mean_p,
		// binding(5) a, binding(6) b.
		return []gputypes.BindGroupLayoutEntry{
			configUniform,
			storageRO(1), storageRO(2), storageRO(3), storageRO(4),
			storageRW(5), storageRW(6),
		}

	case kQ:
		// binding(1) input, binding(2) mean_a, binding(3) mean_b,
		// binding(4) q.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRO(2), storageRO(3), storageRW(4),
		}

	case kSeparateRGB, kSeparateRGBU8:
		// binding(1) interleaved input, binding(2..4) r, g, b planes.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRW(2), storageRW(3), storageRW(4),
		}

	case kCombineRGB, kCombineRGBU8:
		// binding(1..3) r, g, b planes, binding(4) interleaved output.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRO(2), storageRO(3), storageRW(4),
		}

	case kRGBDTo8D:
		// binding(1) depth, binding(2..4) r, g, b, binding(5) records.
		return []gputypes.BindGroupLayoutEntry{
			configUniform,
			storageRO(1), storageRO(2), storageRO(3), storageRO(4),
			storageRW(5),
		}

	case kSplitPC8D:
		// binding(1) records, binding(2) points, binding(3) colors.
		return []gputypes.BindGroupLayoutEntry{
			configUniform, storageRO(1), storageRW(2), storageRW(3),
		}

	default:
		return nil
	}
}

// =============================================================================
// Compilation
// =============================================================================

// compileKernel compiles WGSL to a SPIR-V word stream through naga. hal
// consumes SPIR-V directly, which keeps shader translation off the hot
// path of pipeline creation inside the driver.
func compileKernel(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("naga compile: %w", err)
	}
	if len(spirvBytes) == 0 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("naga compile: invalid SPIR-V size %d", len(spirvBytes))
	}

	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}
