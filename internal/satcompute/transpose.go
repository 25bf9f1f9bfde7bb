// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

// Transpose writes the transpose of the width x height array src into dst,
// which must hold height x width elements. The operation is exact: applying
// it twice reproduces the input bit for bit. Source row bands land in
// disjoint destination columns, so large planes transpose in parallel.
func Transpose(dst, src []float32, width, height int) {
	forRows(width, height, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			base := row * width
			for col := 0; col < width; col++ {
				dst[col*height+row] = src[base+col]
			}
		}
	})
}
