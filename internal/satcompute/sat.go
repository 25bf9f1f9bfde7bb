// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

// SAT builds a summed-area table of the width x height array src: each
// output element holds the sum of all scaled input elements above and to
// the left of it, inclusive. scaling multiplies every input element once,
// on entry to the row scan.
func SAT(dst, src []float32, width, height int, scaling float32) {
	ScanRows(dst, src, width, height, scaling)
	for row := 1; row < height; row++ {
		base := row * width
		prev := base - width
		for col := 0; col < width; col++ {
			dst[base+col] += dst[prev+col]
		}
	}
}

// SATTransposed builds the same table through the device composition:
// scan rows, transpose, scan rows of the transposed array with scaling 1.
// dst must hold height x width elements and receives the transposed table,
// dst[x*height+y] == SAT(x, y). Consumers written against a transposed
// table (the SAT box filter) read it without a fourth transpose-back pass.
func SATTransposed(dst, src []float32, width, height int, scaling float32) {
	tmp := getScratch(width * height)
	defer putScratch(tmp)

	ScanRows(tmp, src, width, height, scaling)
	Transpose(dst, tmp, width, height)
	ScanRows(dst, dst, height, width, 1)
}
