// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

// GuidedParams carries the guided filter parameters shared by the self- and
// cross-guided variants.
type GuidedParams struct {
	// Radius of the square smoothing window.
	Radius int

	// Eps is the regularization added to the guide variance. Zero makes the
	// filter an exact identity wherever the local variance is nonzero; very
	// large values degrade the filter to a plain box blur.
	Eps float32

	// OutputScaling multiplies the final output. The cross-guided variant
	// ignores it and always emits unscaled values.
	OutputScaling float32

	// ZeroOut forces an exactly-zero output wherever the multiplied input
	// is exactly zero, so invalid depth pixels stay invalid.
	ZeroOut bool
}

// SelfGuided runs the I = p guided filter on the width x height array p and
// writes the smoothed result into q:
//
//	mean_p  = box(p)        mean_p2 = box(p*p)
//	var     = mean_p2 - mean_p^2
//	a       = var / (var + eps)
//	b       = (1 - a) * mean_p
//	q       = box(a)*p + box(b)
func SelfGuided(q, p []float32, width, height int, par GuidedParams) {
	pixels := width * height

	meanP := getScratch(pixels)
	defer putScratch(meanP)
	p2 := getScratch(pixels)
	defer putScratch(p2)
	meanP2 := getScratch(pixels)
	defer putScratch(meanP2)
	a := getScratch(pixels)
	defer putScratch(a)
	b := getScratch(pixels)
	defer putScratch(b)
	meanA := getScratch(pixels)
	defer putScratch(meanA)
	meanB := getScratch(pixels)
	defer putScratch(meanB)

	BoxFilter(meanP, p, width, height, par.Radius)
	Pown(p2, p, 2)
	BoxFilter(meanP2, p2, width, height, par.Radius)

	for i := 0; i < pixels; i++ {
		variance := meanP2[i] - meanP[i]*meanP[i]
		a[i] = variance / (variance + par.Eps)
		b[i] = (1 - a[i]) * meanP[i]
	}

	BoxFilter(meanA, a, width, height, par.Radius)
	BoxFilter(meanB, b, width, height, par.Radius)

	writeQ(q, p, meanA, meanB, pixels, par.OutputScaling, par.ZeroOut)
}

// CrossGuided runs the I != p guided filter: p is smoothed under the
// structure of the guide image. Output scaling is fixed at 1 in this
// variant; ZeroOut gates on the guide, the input the output is built from:
//
//	var_I  = box(I*I) - mean_I^2
//	cov_Ip = box(I*p) - mean_I*mean_p
//	a      = cov_Ip / (var_I + eps)
//	b      = mean_p - a*mean_I
//	q      = box(a)*I + box(b)
func CrossGuided(q, guide, p []float32, width, height int, par GuidedParams) {
	pixels := width * height

	meanI := getScratch(pixels)
	defer putScratch(meanI)
	meanP := getScratch(pixels)
	defer putScratch(meanP)
	prod := getScratch(pixels)
	defer putScratch(prod)
	corrI := getScratch(pixels)
	defer putScratch(corrI)
	corrIp := getScratch(pixels)
	defer putScratch(corrIp)
	a := getScratch(pixels)
	defer putScratch(a)
	b := getScratch(pixels)
	defer putScratch(b)
	meanA := getScratch(pixels)
	defer putScratch(meanA)
	meanB := getScratch(pixels)
	defer putScratch(meanB)

	BoxFilter(meanI, guide, width, height, par.Radius)
	BoxFilter(meanP, p, width, height, par.Radius)

	Mult(prod, guide, guide)
	BoxFilter(corrI, prod, width, height, par.Radius)
	Mult(prod, guide, p)
	BoxFilter(corrIp, prod, width, height, par.Radius)

	for i := 0; i < pixels; i++ {
		varI := corrI[i] - meanI[i]*meanI[i]
		covIp := corrIp[i] - meanI[i]*meanP[i]
		a[i] = covIp / (varI + par.Eps)
		b[i] = meanP[i] - a[i]*meanI[i]
	}

	BoxFilter(meanA, a, width, height, par.Radius)
	BoxFilter(meanB, b, width, height, par.Radius)

	writeQ(q, guide, meanA, meanB, pixels, 1, par.ZeroOut)
}

// writeQ assembles the filter output q = (mean_a*in + mean_b) * scaling,
// forcing exact zeros where the zero-out policy applies.
func writeQ(q, in, meanA, meanB []float32, pixels int, scaling float32, zeroOut bool) {
	for i := 0; i < pixels; i++ {
		if zeroOut && in[i] == 0 {
			q[i] = 0
			continue
		}
		q[i] = (meanA[i]*in[i] + meanB[i]) * scaling
	}
}
