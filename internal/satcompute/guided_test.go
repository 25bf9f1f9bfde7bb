// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

import (
	"testing"

	"github.com/chewxy/math32"
)

// TestSelfGuidedEpsZeroIdentity checks the eps = 0 limit. Wherever the
// window variance is nonzero, a = var/var = 1 and b = 0 exactly, so the
// filter reproduces its input bit for bit. A checkerboard keeps every
// window variance strictly positive.
func TestSelfGuidedEpsZeroIdentity(t *testing.T) {
	const width, height = 16, 16
	p := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p[y*width+x] = float32((x + y) % 2)
		}
	}

	q := make([]float32, len(p))
	SelfGuided(q, p, width, height, GuidedParams{Radius: 1, Eps: 0, OutputScaling: 1})

	for i := range p {
		if q[i] != p[i] {
			t.Fatalf("q[%d] = %g, want exactly p[%d] = %g", i, q[i], i, p[i])
		}
	}
}

// TestSelfGuidedConstant checks a flat input. The variance vanishes, a = 0
// and b = mean_p = 1, so the output is exactly the input again.
func TestSelfGuidedConstant(t *testing.T) {
	const width, height = 640, 480
	p := make([]float32, width*height)
	for i := range p {
		p[i] = 1
	}

	q := make([]float32, len(p))
	SelfGuided(q, p, width, height, GuidedParams{Radius: 5, Eps: 0.02, OutputScaling: 1})

	for i := range q {
		if q[i] != 1 {
			t.Fatalf("q[%d] = %g, want exactly 1", i, q[i])
		}
	}
}

// TestSelfGuidedLargeEpsDegradesToBoxBlur checks the eps -> inf limit,
// where a -> 0, b -> mean_p and the output converges to box(box(p)).
func TestSelfGuidedLargeEpsDegradesToBoxBlur(t *testing.T) {
	const width, height = 48, 32
	const radius = 3
	p := make([]float32, width*height)
	for i := range p {
		p[i] = float32(i%97) / 96
	}

	q := make([]float32, len(p))
	SelfGuided(q, p, width, height, GuidedParams{Radius: radius, Eps: 1e8, OutputScaling: 1})

	meanP := make([]float32, len(p))
	BoxFilter(meanP, p, width, height, radius)
	want := make([]float32, len(p))
	BoxFilter(want, meanP, width, height, radius)

	for i := range q {
		if diff := math32.Abs(q[i] - want[i]); diff > 1e-6 {
			t.Fatalf("q[%d] = %g, want %g (diff %g)", i, q[i], want[i], diff)
		}
	}
}

func TestSelfGuidedZeroOut(t *testing.T) {
	const width, height = 32, 24
	p := make([]float32, width*height)
	for i := range p {
		if i%3 != 0 {
			p[i] = 0.25 + float32(i%11)/16
		}
	}

	par := GuidedParams{Radius: 2, Eps: 0.01, OutputScaling: 1}
	plain := make([]float32, len(p))
	SelfGuided(plain, p, width, height, par)

	par.ZeroOut = true
	gated := make([]float32, len(p))
	SelfGuided(gated, p, width, height, par)

	for i := range p {
		if p[i] == 0 {
			if gated[i] != 0 {
				t.Fatalf("gated[%d] = %g, want exactly 0 for zero input", i, gated[i])
			}
			continue
		}
		if gated[i] != plain[i] {
			t.Fatalf("gated[%d] = %g, want %g; gating must not touch nonzero pixels", i, gated[i], plain[i])
		}
	}
}

// TestCrossGuidedSameGuideMatchesSelf feeds the input as its own guide.
// cov_Ip collapses to var_I and the two variants compute the same filter
// up to floating point ordering.
func TestCrossGuidedSameGuideMatchesSelf(t *testing.T) {
	const width, height = 40, 30
	p := make([]float32, width*height)
	for i := range p {
		p[i] = 0.1 + float32(i%53)/64
	}

	par := GuidedParams{Radius: 2, Eps: 0.01, OutputScaling: 1}
	self := make([]float32, len(p))
	SelfGuided(self, p, width, height, par)
	cross := make([]float32, len(p))
	CrossGuided(cross, p, p, width, height, par)

	for i := range p {
		if diff := math32.Abs(cross[i] - self[i]); diff > 1e-5 {
			t.Fatalf("cross[%d] = %g, self = %g (diff %g)", i, cross[i], self[i], diff)
		}
	}
}

func TestCrossGuidedZeroOutGatesOnGuide(t *testing.T) {
	const width, height = 24, 16
	guide := make([]float32, width*height)
	p := make([]float32, width*height)
	for i := range p {
		p[i] = 0.5
		if i%5 != 0 {
			guide[i] = 0.75
		}
	}

	q := make([]float32, len(p))
	CrossGuided(q, guide, p, width, height, GuidedParams{Radius: 1, Eps: 0.01, ZeroOut: true})

	for i := range guide {
		if guide[i] == 0 && q[i] != 0 {
			t.Fatalf("q[%d] = %g, want exactly 0 where the guide is zero", i, q[i])
		}
		if guide[i] != 0 && q[i] == 0 {
			t.Fatalf("q[%d] = 0 at a nonzero guide pixel", i)
		}
	}
}
