// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Image support adapters: channel separation and recombination, depth
// conversion, RGB normalization, and point cloud assembly. These mirror the
// device kernels that feed the guided filter pipelines.

package satcompute

// SeparateRGB splits an interleaved RGB float array into three planes.
func SeparateRGB(r, g, b, interleaved []float32, pixels int) {
	for i := 0; i < pixels; i++ {
		r[i] = interleaved[i*3]
		g[i] = interleaved[i*3+1]
		b[i] = interleaved[i*3+2]
	}
}

// SeparateRGB8 splits an interleaved 8-bit RGB array into three float
// planes normalized to [0, 1].
func SeparateRGB8(r, g, b []float32, interleaved []uint8, pixels int) {
	for i := 0; i < pixels; i++ {
		r[i] = float32(interleaved[i*3]) / 255
		g[i] = float32(interleaved[i*3+1]) / 255
		b[i] = float32(interleaved[i*3+2]) / 255
	}
}

// CombineRGB interleaves three float planes into an RGB float array.
func CombineRGB(interleaved, r, g, b []float32, pixels int) {
	for i := 0; i < pixels; i++ {
		interleaved[i*3] = r[i]
		interleaved[i*3+1] = g[i]
		interleaved[i*3+2] = b[i]
	}
}

// CombineRGB8 interleaves three float planes in [0, 1] into an 8-bit RGB
// array, scaling by 255 with a truncating conversion to match the device
// kernel's cast.
func CombineRGB8(interleaved []uint8, r, g, b []float32, pixels int) {
	for i := 0; i < pixels; i++ {
		interleaved[i*3] = uint8(clamp01(r[i]) * 255)
		interleaved[i*3+1] = uint8(clamp01(g[i]) * 255)
		interleaved[i*3+2] = uint8(clamp01(b[i]) * 255)
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DepthToFloat converts a 16-bit depth map to floats, multiplying by
// scaling to move between units (for example 1e-3 for millimeters to
// meters). Zero stays exactly zero for any scaling, preserving the
// invalid-pixel convention.
func DepthToFloat(dst []float32, depth []uint16, scaling float32) {
	for i := range depth {
		dst[i] = float32(depth[i]) * scaling
	}
}

// RGBNorm normalizes each interleaved RGB triplet by its channel sum. A
// zero sum maps to a zero triplet rather than a division by zero.
func RGBNorm(dst, src []float32, pixels int) {
	for i := 0; i < pixels; i++ {
		k := i * 3
		sum := src[k] + src[k+1] + src[k+2]
		var factor float32
		if sum != 0 {
			factor = 1 / sum
		}
		dst[k] = factor * src[k]
		dst[k+1] = factor * src[k+1]
		dst[k+2] = factor * src[k+2]
	}
}

// DepthTo3D back-projects a depth map through a pinhole camera model with
// focal length focal into homogeneous 4-float points. scaling converts the
// stored depth values to the output unit before projection.
func DepthTo3D(points [][4]float32, depth []float32, width, height int, focal, scaling float32) {
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			i := row * width + col
			d := depth[i] * scaling
			points[i] = [4]float32{
				(float32(col) - float32(width-1)/2) * d / focal,
				(float32(row) - float32(height-1)/2) * d / focal,
				d,
				1,
			}
		}
	}
}

// RGBDTo8D fuses a depth map and three color planes into 8-float records:
// homogeneous geometry in the first four slots, RGBA color in the last
// four. When rgbNorm is set the colors are normalized by their channel sum
// first, with the zero-sum guard of RGBNorm.
func RGBDTo8D(points [][8]float32, depth, r, g, b []float32, width, height int, focal, scaling float32, rgbNorm bool) {
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			i := row * width + col

			d := depth[i] * scaling
			cr, cg, cb := r[i], g[i], b[i]
			if rgbNorm {
				sum := cr + cg + cb
				var factor float32
				if sum != 0 {
					factor = 1 / sum
				}
				cr *= factor
				cg *= factor
				cb *= factor
			}

			points[i] = [8]float32{
				(float32(col) - float32(width-1)/2) * d / focal,
				(float32(row) - float32(height-1)/2) * d / focal,
				d,
				1,
				cr, cg, cb, 1,
			}
		}
	}
}

// SplitPC8D splits 8-float point records into 4-float geometry points and
// 4-float colors, writing both outputs starting at offset. The offset lets
// several clouds pack into one pair of output arrays.
func SplitPC8D(pc4d, rgba [][4]float32, pc8d [][8]float32, offset int) {
	for k := range pc8d {
		p := pc8d[k]
		pc4d[offset+k] = [4]float32{p[0], p[1], p[2], p[3]}
		rgba[offset+k] = [4]float32{p[4], p[5], p[6], p[7]}
	}
}
