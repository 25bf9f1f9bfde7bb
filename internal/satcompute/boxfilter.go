// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

// BoxFilter computes the mean of src over a (2*radius+1)^2 window centered
// on each pixel, by direct accumulation. Windows are clipped at the borders
// and the divisor is the clipped window population, so border means stay
// unbiased. Large planes are processed in parallel row bands; each pixel
// only reads src and writes its own output, so the result is identical to
// the serial order.
func BoxFilter(dst, src []float32, width, height, radius int) {
	forRows(width, height, func(y0, y1 int) {
		for row := y0; row < y1; row++ {
			for col := 0; col < width; col++ {
				var sum float32
				n := 0
				for fRow := -radius; fRow <= radius; fRow++ {
					iy := row + fRow
					if iy < 0 || iy >= height {
						continue
					}
					for fCol := -radius; fCol <= radius; fCol++ {
						ix := col + fCol
						if ix < 0 || ix >= width {
							continue
						}
						sum += src[iy*width+ix]
						n++
					}
				}
				dst[row*width+col] = sum / float32(n)
			}
		}
	})
}

// BoxFilterSAT computes the same clipped-window means in O(1) per pixel
// from a transposed summed-area table (satTr[x*height+y] == SAT(x, y),
// as produced by SATTransposed). invScaling undoes the scaling the table
// was built with. width and height are the dimensions of the original,
// untransposed array.
func BoxFilterSAT(dst, satTr []float32, width, height, radius int, invScaling float32) {
	at := func(x, y int) float32 { return satTr[x*height+y] }

	forRows(width, height, func(r0, r1 int) {
		for row := r0; row < r1; row++ {
			for col := 0; col < width; col++ {
				x1 := col + radius
				if x1 > width-1 {
					x1 = width - 1
				}
				y1 := row + radius
				if y1 > height-1 {
					y1 = height - 1
				}
				x0 := col - radius - 1
				y0 := row - radius - 1

				sum := at(x1, y1)
				if x0 >= 0 {
					sum -= at(x0, y1)
				}
				if y0 >= 0 {
					sum -= at(x1, y0)
				}
				if x0 >= 0 && y0 >= 0 {
					sum += at(x0, y0)
				}

				cx := col - radius
				if cx < 0 {
					cx = 0
				}
				cy := row - radius
				if cy < 0 {
					cy = 0
				}
				count := float32((x1 - cx + 1) * (y1 - cy + 1))

				dst[row*width+col] = sum / count * invScaling
			}
		}
	})
}
