// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import "fmt"

const (
	// scanBlock is the element count one scan workgroup covers: 256
	// invocations, two vec4s each. Must match LOCAL_N*4 in scan.wgsl.
	scanBlock = 2048

	// tileSide is the workgroup tile side of the box filter kernels.
	// Must match the workgroup size in box_filter_sat.wgsl.
	tileSide = 16
)

// scanPlan captures the dispatch geometry of a row-wise prefix scan.
// Rows longer than one block need the fixup passes: the per-block totals
// are scanned, then added back to every block after the first.
type scanPlan struct {
	rows   int
	rowLen int // elements per row

	groups     int // pass 1 workgroups per row
	sumsStride int // element stride of a sums row, zero-padded to vec4
	fixup      bool
}

func newScanPlan(rowLen, rows int) (scanPlan, error) {
	if rowLen <= 0 || rows <= 0 {
		return scanPlan{}, fmt.Errorf("compute: scan extent %dx%d must be positive", rowLen, rows)
	}
	if rowLen%4 != 0 {
		return scanPlan{}, fmt.Errorf("compute: scan row length %d must be a multiple of 4", rowLen)
	}

	groups := ceilDiv(rowLen, scanBlock)
	stride := groups
	if groups > 1 {
		// The sums rows are themselves scanned as vec4s, so pad the
		// stride up; the padding stays zero from buffer clear.
		stride = roundUp4(groups)
	}
	if stride > scanBlock {
		return scanPlan{}, fmt.Errorf("compute: scan row length %d exceeds the single-pass limit %d",
			rowLen, scanBlock*scanBlock)
	}

	return scanPlan{
		rows:       rows,
		rowLen:     rowLen,
		groups:     groups,
		sumsStride: stride,
		fixup:      groups > 1,
	}, nil
}

// sumsLen is the element count of the per-row block totals array.
func (p scanPlan) sumsLen() int { return p.rows * p.sumsStride }

// transposePlan captures the tiled transpose geometry. The matrix is
// viewed as a grid of 4x4-float cells; each workgroup moves a
// side-by-side block of cells. Side is the largest of 16, 8, 4, 2 that
// divides both grid extents.
type transposePlan struct {
	colsVec4 int
	rowsVec4 int
	side     int
	groupsX  int
	groupsY  int
}

func newTransposePlan(width, height int) (transposePlan, error) {
	if width <= 0 || height <= 0 {
		return transposePlan{}, fmt.Errorf("compute: transpose extent %dx%d must be positive", width, height)
	}
	if width%4 != 0 || height%4 != 0 {
		return transposePlan{}, fmt.Errorf("compute: transpose extent %dx%d must be a multiple of 4", width, height)
	}

	cols := width / 4
	rows := height / 4
	for _, side := range []int{16, 8, 4, 2} {
		if cols%side == 0 && rows%side == 0 {
			return transposePlan{
				colsVec4: cols,
				rowsVec4: rows,
				side:     side,
				groupsX:  cols / side,
				groupsY:  rows / side,
			}, nil
		}
	}
	return transposePlan{}, fmt.Errorf("compute: extent %dx%d not tileable for transpose, need a multiple of 8",
		width, height)
}

// checkTile16 validates an extent against the 16x16 box filter tiles.
func checkTile16(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("compute: extent %dx%d must be positive", width, height)
	}
	if width%tileSide != 0 || height%tileSide != 0 {
		return fmt.Errorf("compute: extent %dx%d must be a multiple of %d", width, height, tileSide)
	}
	return nil
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func roundUp4(v int) int { return (v + 3) &^ 3 }
