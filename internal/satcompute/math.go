// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

// Mult writes the element-wise product of a and b into dst.
// All three slices must have the same length.
func Mult(dst, a, b []float32) {
	for i := range dst {
		dst[i] = a[i] * b[i]
	}
}

// Pown raises every element of src to the integer power n by repeated
// multiplication, matching the device pown builtin. Negative powers invert
// the positive result.
func Pown(dst, src []float32, n int) {
	neg := n < 0
	if neg {
		n = -n
	}
	for i := range dst {
		p := float32(1)
		x := src[i]
		for k := n; k > 0; k >>= 1 {
			if k&1 == 1 {
				p *= x
			}
			x *= x
		}
		if neg {
			p = 1 / p
		}
		dst[i] = p
	}
}
