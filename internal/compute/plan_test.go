// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestNewScanPlan tests the scan dispatch geometry over the row lengths
// the pipelines produce.
func TestNewScanPlan(t *testing.T) {
	tests := []struct {
		name   string
		rowLen int
		rows   int
		want   scanPlan
	}{
		{
			name:   "single block",
			rowLen: 64,
			rows:   16,
			want:   scanPlan{rows: 16, rowLen: 64, groups: 1, sumsStride: 1},
		},
		{
			name:   "exactly one block",
			rowLen: scanBlock,
			rows:   1,
			want:   scanPlan{rows: 1, rowLen: scanBlock, groups: 1, sumsStride: 1},
		},
		{
			name:   "two blocks pads sums to vec4",
			rowLen: 2 * scanBlock,
			rows:   4,
			want:   scanPlan{rows: 4, rowLen: 2 * scanBlock, groups: 2, sumsStride: 4, fixup: true},
		},
		{
			name:   "just over a block",
			rowLen: scanBlock + 4,
			rows:   2,
			want:   scanPlan{rows: 2, rowLen: scanBlock + 4, groups: 2, sumsStride: 4, fixup: true},
		},
		{
			name:   "group count already vec4 aligned",
			rowLen: 20 * scanBlock,
			rows:   3,
			want:   scanPlan{rows: 3, rowLen: 20 * scanBlock, groups: 20, sumsStride: 20, fixup: true},
		},
		{
			name:   "largest supported row",
			rowLen: scanBlock * scanBlock,
			rows:   1,
			want:   scanPlan{rows: 1, rowLen: scanBlock * scanBlock, groups: scanBlock, sumsStride: scanBlock, fixup: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newScanPlan(tt.rowLen, tt.rows)
			if err != nil {
				t.Fatalf("newScanPlan(%d, %d) error: %v", tt.rowLen, tt.rows, err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(scanPlan{})); diff != "" {
				t.Errorf("newScanPlan(%d, %d) mismatch (-want +got):\n%s", tt.rowLen, tt.rows, diff)
			}
		})
	}
}

// TestNewScanPlanErrors tests rejection of geometry the kernels cannot
// dispatch.
func TestNewScanPlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		rowLen  int
		rows    int
		wantSub string
	}{
		{"zero row length", 0, 4, "must be positive"},
		{"zero rows", 64, 0, "must be positive"},
		{"negative rows", 64, -1, "must be positive"},
		{"row not vec4", 30, 4, "multiple of 4"},
		{"row beyond two levels", scanBlock*scanBlock + 4, 1, "single-pass limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newScanPlan(tt.rowLen, tt.rows)
			if err == nil {
				t.Fatalf("newScanPlan(%d, %d) = nil error, want %q", tt.rowLen, tt.rows, tt.wantSub)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("newScanPlan(%d, %d) error = %q, want substring %q", tt.rowLen, tt.rows, err, tt.wantSub)
			}
		})
	}
}

// TestScanPlanSumsLen tests the block-totals array sizing, padding
// included.
func TestScanPlanSumsLen(t *testing.T) {
	// One group keeps one total per row; multiple groups pad the row
	// stride up to a vec4.
	tests := []struct {
		rowLen int
		rows   int
		want   int
	}{
		{64, 16, 16},
		{2 * scanBlock, 4, 16},
		{5 * scanBlock, 2, 16},
		{20 * scanBlock, 3, 60},
	}

	for _, tt := range tests {
		p, err := newScanPlan(tt.rowLen, tt.rows)
		if err != nil {
			t.Fatalf("newScanPlan(%d, %d) error: %v", tt.rowLen, tt.rows, err)
		}
		if got := p.sumsLen(); got != tt.want {
			t.Errorf("sumsLen(%d, %d) = %d, want %d", tt.rowLen, tt.rows, got, tt.want)
		}
	}
}

// TestNewTransposePlan tests tile side selection over the extents the
// filter configurations produce.
func TestNewTransposePlan(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   transposePlan
	}{
		{
			name: "square multiple of 64", width: 64, height: 64,
			want: transposePlan{colsVec4: 16, rowsVec4: 16, side: 16, groupsX: 1, groupsY: 1},
		},
		{
			name: "vga drops to side 8", width: 640, height: 480,
			want: transposePlan{colsVec4: 160, rowsVec4: 120, side: 8, groupsX: 20, groupsY: 15},
		},
		{
			name: "small tile", width: 16, height: 16,
			want: transposePlan{colsVec4: 4, rowsVec4: 4, side: 4, groupsX: 1, groupsY: 1},
		},
		{
			name: "minimum tile", width: 8, height: 8,
			want: transposePlan{colsVec4: 2, rowsVec4: 2, side: 2, groupsX: 1, groupsY: 1},
		},
		{
			name: "rectangular", width: 1024, height: 48,
			want: transposePlan{colsVec4: 256, rowsVec4: 12, side: 4, groupsX: 64, groupsY: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTransposePlan(tt.width, tt.height)
			if err != nil {
				t.Fatalf("newTransposePlan(%d, %d) error: %v", tt.width, tt.height, err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(transposePlan{})); diff != "" {
				t.Errorf("newTransposePlan(%d, %d) mismatch (-want +got):\n%s", tt.width, tt.height, diff)
			}
		})
	}
}

// TestNewTransposePlanErrors tests rejection of untileable extents.
func TestNewTransposePlanErrors(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		wantSub string
	}{
		{"zero width", 0, 64, "must be positive"},
		{"negative height", 64, -4, "must be positive"},
		{"width not vec4", 30, 64, "multiple of 4"},
		{"four wide has no tile", 4, 64, "not tileable"},
		{"mixed odd cells", 12, 64, "not tileable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTransposePlan(tt.width, tt.height)
			if err == nil {
				t.Fatalf("newTransposePlan(%d, %d) = nil error, want %q", tt.width, tt.height, tt.wantSub)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("newTransposePlan(%d, %d) error = %q, want substring %q", tt.width, tt.height, err, tt.wantSub)
			}
		})
	}
}

// TestCheckTile16 tests the box filter extent gate.
func TestCheckTile16(t *testing.T) {
	ok := [][2]int{{16, 16}, {32, 48}, {640, 480}, {1920, 1088}}
	for _, e := range ok {
		if err := checkTile16(e[0], e[1]); err != nil {
			t.Errorf("checkTile16(%d, %d) = %v, want nil", e[0], e[1], err)
		}
	}

	bad := [][2]int{{0, 16}, {16, 0}, {-16, 16}, {8, 16}, {16, 24}, {100, 100}}
	for _, e := range bad {
		if err := checkTile16(e[0], e[1]); err == nil {
			t.Errorf("checkTile16(%d, %d) = nil, want error", e[0], e[1])
		}
	}
}

// TestCeilDiv tests the dispatch rounding helpers.
func TestCeilDiv(t *testing.T) {
	tests := []struct{ a, b, want int }{
		{0, 4, 0}, {1, 4, 1}, {4, 4, 1}, {5, 4, 2}, {2048, 2048, 1}, {2049, 2048, 2},
	}
	for _, tt := range tests {
		if got := ceilDiv(tt.a, tt.b); got != tt.want {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}

	for v, want := range map[int]int{0: 0, 1: 4, 2: 4, 3: 4, 4: 4, 5: 8, 20: 20, 21: 24} {
		if got := roundUp4(v); got != want {
			t.Errorf("roundUp4(%d) = %d, want %d", v, got, want)
		}
	}
}
