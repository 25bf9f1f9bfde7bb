// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

const (
	// ScanGroupSize is the workgroup size of the scan kernel.
	// Matches WG_SIZE in scan.wgsl.
	ScanGroupSize = 256

	// ScanBlockElems is the number of row elements one scan workgroup
	// covers: each invocation loads and combines two 4-wide vectors.
	ScanBlockElems = 8 * ScanGroupSize
)

// ScanGroups returns the number of scan workgroups needed per row of the
// given width. When more than one group is needed, the count is rounded up
// to a multiple of 4 because the group-sums pass scans the sums array with
// 4-wide loads; the padding slots hold zeros and do not disturb the sums.
func ScanGroups(width int) int {
	groups := (width + ScanBlockElems - 1) / ScanBlockElems
	if groups > 1 {
		groups = (groups + 3) &^ 3
	}
	return groups
}

// ScanRows computes an inclusive prefix sum along each row of a
// width x height array. Every element is multiplied by scaling before it
// enters the accumulation, so the result is the scan of the scaled input.
// Rows are independent, so large planes run in parallel row bands.
func ScanRows(dst, src []float32, width, height int, scaling float32) {
	forRows(width, height, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			base := row * width
			var acc float32
			for col := 0; col < width; col++ {
				acc += src[base+col] * scaling
				dst[base+col] = acc
			}
		}
	})
}

// ScanRowsBlocked computes the same result as ScanRows through the GPU's
// three-pass structure: per-block inclusive scans that record each block's
// total, an inclusive scan of the totals (always with scaling 1), and an
// add-back pass that folds the preceding totals into every block after the
// first. Rows that fit in a single block take the one-pass path.
//
// The function exists so plan-level tests can exercise the exact dataflow
// of the device pipeline, including the group-count rounding, without a GPU.
func ScanRowsBlocked(dst, src []float32, width, height int, scaling float32) {
	groups := ScanGroups(width)
	if groups == 1 {
		ScanRows(dst, src, width, height, scaling)
		return
	}

	sums := getScratch(groups * height)
	defer putScratch(sums)

	// Pass 1: scan each block independently, recording block totals.
	// Padding groups keep their zero fill.
	for i := range sums[:groups*height] {
		sums[i] = 0
	}
	for row := 0; row < height; row++ {
		base := row * width
		for g := 0; g*ScanBlockElems < width; g++ {
			start := g * ScanBlockElems
			end := start + ScanBlockElems
			if end > width {
				end = width
			}
			var acc float32
			for col := start; col < end; col++ {
				acc += src[base+col] * scaling
				dst[base+col] = acc
			}
			sums[row*groups+g] = acc
		}
	}

	// Pass 2: inclusive scan of each row of the sums array, scaling 1.
	ScanRows(sums, sums, groups, height, 1)

	// Pass 3: every block after the first absorbs the total of the blocks
	// before it. Block 0 is already complete.
	for row := 0; row < height; row++ {
		base := row * width
		for g := 1; g*ScanBlockElems < width; g++ {
			carry := sums[row*groups+g-1]
			start := g * ScanBlockElems
			end := start + ScanBlockElems
			if end > width {
				end = width
			}
			for col := start; col < end; col++ {
				dst[base+col] += carry
			}
		}
	}
}
