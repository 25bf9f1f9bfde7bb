// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestMult(t *testing.T) {
	a := []float32{1, 2, 3, 4, -1.5, 0}
	b := []float32{2, 0.5, 3, 0.25, 2, 7}
	want := []float32{2, 1, 9, 1, -3, 0}

	dst := make([]float32, len(a))
	Mult(dst, a, b)

	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %g, want %g", i, dst[i], want[i])
		}
	}
}

func TestPown(t *testing.T) {
	src := []float32{2, 3, 1.5, 0.5, -2, 1, 0}

	tests := []struct {
		n    int
		want []float32
	}{
		{0, []float32{1, 1, 1, 1, 1, 1, 1}},
		{1, []float32{2, 3, 1.5, 0.5, -2, 1, 0}},
		{2, []float32{4, 9, 2.25, 0.25, 4, 1, 0}},
		{3, []float32{8, 27, 3.375, 0.125, -8, 1, 0}},
		{-1, []float32{0.5, 1.0 / 3, 1 / 1.5, 2, -0.5, 1, math32.Inf(1)}},
		{-2, []float32{0.25, 1.0 / 9, 1 / 2.25, 4, 0.25, 1, math32.Inf(1)}},
	}

	for _, tt := range tests {
		dst := make([]float32, len(src))
		Pown(dst, src, tt.n)
		for i := range tt.want {
			if dst[i] != tt.want[i] {
				t.Errorf("Pown(%g, %d) = %g, want %g", src[i], tt.n, dst[i], tt.want[i])
			}
		}
	}
}
