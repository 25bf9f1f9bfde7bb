// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bench

import (
	"fmt"
	"time"
)

// Timing summarizes the wall time of repeated runs of one operation.
type Timing struct {
	Iters int
	Min   time.Duration
	Mean  time.Duration
	Max   time.Duration
}

func (t Timing) String() string {
	return fmt.Sprintf("min %s  mean %s  max %s  (%d iters)", t.Min, t.Mean, t.Max, t.Iters)
}

// Measure times iters calls of fn with the wall clock. The first failing
// iteration aborts the measurement.
func Measure(iters int, fn func() error) (Timing, error) {
	if iters <= 0 {
		return Timing{}, fmt.Errorf("bench: iteration count must be positive, got %d", iters)
	}

	var total, shortest, longest time.Duration
	for i := 0; i < iters; i++ {
		start := time.Now()
		if err := fn(); err != nil {
			return Timing{}, fmt.Errorf("bench: iteration %d: %w", i, err)
		}
		d := time.Since(start)

		total += d
		if i == 0 || d < shortest {
			shortest = d
		}
		if d > longest {
			longest = d
		}
	}

	return Timing{
		Iters: iters,
		Min:   shortest,
		Mean:  total / time.Duration(iters),
		Max:   longest,
	}, nil
}
