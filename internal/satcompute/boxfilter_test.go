// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

import (
	"testing"

	"github.com/chewxy/math32"
)

// TestBoxFilterCheckerboard pins the interior means of a radius-1 box
// filter on a 0/1 checkerboard: every interior 3x3 window holds 4 or 5
// ones depending on the center parity.
func TestBoxFilterCheckerboard(t *testing.T) {
	const width, height = 64, 64
	src := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src[y*width+x] = float32((x + y) % 2)
		}
	}

	dst := make([]float32, len(src))
	BoxFilter(dst, src, width, height, 1)

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			want := float32(4) / 9
			if (x+y)%2 == 0 {
				want = float32(5) / 9
			}
			if got := dst[y*width+x]; got != want {
				t.Fatalf("mean at (%d,%d) = %g, want %g", x, y, got, want)
			}
		}
	}
}

func TestBoxFilterBorderDivisor(t *testing.T) {
	// 4x4 of ones, radius 1: the corner window covers 4 pixels, the edge
	// window 6, the interior 9. A constant input must stay constant only
	// if the divisor tracks the clipped population.
	src := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	dst := make([]float32, len(src))

	BoxFilter(dst, src, 4, 4, 1)

	for i, got := range dst {
		if got != 1 {
			t.Errorf("dst[%d] = %g, want exactly 1", i, got)
		}
	}
}

func TestBoxFilterSATMatchesDirect(t *testing.T) {
	const width, height = 64, 48
	src := make([]float32, width*height)
	for i := range src {
		src[i] = float32(i%101) / 100
	}

	for _, radius := range []int{1, 4, 7} {
		want := make([]float32, len(src))
		BoxFilter(want, src, width, height, radius)

		const scaling = 1e-4
		satTr := make([]float32, len(src))
		SATTransposed(satTr, src, width, height, scaling)

		got := make([]float32, len(src))
		BoxFilterSAT(got, satTr, width, height, radius, 1/scaling)

		for i := range want {
			if diff := math32.Abs(got[i] - want[i]); diff > 1e-3 {
				t.Fatalf("radius %d: element %d = %g, want %g (diff %g)", radius, i, got[i], want[i], diff)
			}
		}
	}
}

func TestBoxFilterSATConstant(t *testing.T) {
	const width, height = 32, 32
	src := make([]float32, width*height)
	for i := range src {
		src[i] = 1
	}

	satTr := make([]float32, len(src))
	SATTransposed(satTr, src, width, height, 1)

	dst := make([]float32, len(src))
	BoxFilterSAT(dst, satTr, width, height, 4, 1)

	// With scaling 1 every table entry is an exact small integer, the
	// corner arithmetic cancels exactly, and count/count divides to 1.
	for i, got := range dst {
		if got != 1 {
			t.Fatalf("dst[%d] = %g, want exactly 1", i, got)
		}
	}
}
