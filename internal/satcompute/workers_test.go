// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

import (
	"sync/atomic"
	"testing"
)

func TestForRowsCoversEachRowOnce(t *testing.T) {
	// 256x200 crosses the parallel threshold, so the bands really run on
	// the shared pool.
	const width, height = 256, 200

	counts := make([]int32, height)
	forRows(width, height, func(y0, y1 int) {
		if y0 < 0 || y1 > height || y0 >= y1 {
			t.Errorf("band [%d,%d) out of range", y0, y1)
		}
		for row := y0; row < y1; row++ {
			atomic.AddInt32(&counts[row], 1)
		}
	})

	for row, n := range counts {
		if n != 1 {
			t.Fatalf("row %d covered %d times, want once", row, n)
		}
	}
}

func TestForRowsSmallPlaneRunsInline(t *testing.T) {
	const width, height = 16, 16

	calls := 0
	forRows(width, height, func(y0, y1 int) {
		calls++
		if y0 != 0 || y1 != height {
			t.Errorf("inline band [%d,%d), want [0,%d)", y0, y1, height)
		}
	})

	if calls != 1 {
		t.Fatalf("body ran %d times, want once", calls)
	}
}

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	pool := newWorkerPool(3)

	var ran atomic.Int32
	tasks := make([]func(), 64)
	for i := range tasks {
		tasks[i] = func() { ran.Add(1) }
	}

	pool.run(tasks)
	if got := ran.Load(); got != 64 {
		t.Fatalf("first batch ran %d tasks, want 64", got)
	}

	// The pool stays usable after a batch completes.
	pool.run(tasks[:10])
	if got := ran.Load(); got != 74 {
		t.Fatalf("second batch brought the total to %d, want 74", got)
	}

	pool.stop()
	pool.stop()
}

func TestWorkerPoolStoppedRunsInline(t *testing.T) {
	pool := newWorkerPool(2)
	pool.stop()

	var ran atomic.Int32
	pool.run([]func(){
		func() { ran.Add(1) },
		func() { ran.Add(1) },
		func() { ran.Add(1) },
	})

	if got := ran.Load(); got != 3 {
		t.Fatalf("stopped pool ran %d tasks, want all 3", got)
	}
}

// TestBoxFilterParallelMatchesSerialOrder pins that the banded box filter
// produces bit-identical output on a plane large enough to take the
// parallel path: every pixel accumulates its own window in the same order
// regardless of which worker visits it.
func TestBoxFilterParallelMatchesSerialOrder(t *testing.T) {
	const width, height, radius = 256, 160, 2
	src := make([]float32, width*height)
	for i := range src {
		src[i] = float32((i*31)%257) / 257
	}

	got := make([]float32, len(src))
	BoxFilter(got, src, width, height, radius)

	for row := 0; row < height; row++ {
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
			want := sum / float32(n)
			if got[row*width+col] != want {
				t.Fatalf("pixel (%d,%d) = %g, want exactly %g", col, row, got[row*width+col], want)
			}
		}
	}
}
