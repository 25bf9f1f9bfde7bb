// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package satcompute

import "sync"

// floatBuffer wraps a slice for sync.Pool to avoid allocation warnings.
type floatBuffer struct {
	data []float32
}

// Scratch buffers for the multi-stage mirrors. A 640x480 frame needs seven
// intermediates for the guided filter, so pooling pays off quickly when the
// CPU path runs per frame.
var scratchPool = sync.Pool{
	New: func() interface{} {
		return &floatBuffer{data: make([]float32, 640*480)}
	},
}

// getScratch returns a zeroed scratch slice with at least n elements.
func getScratch(n int) []float32 {
	wrapper := scratchPool.Get().(*floatBuffer)
	if cap(wrapper.data) < n {
		scratchPool.Put(wrapper)
		return make([]float32, n)
	}
	buf := wrapper.data[:n]
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// putScratch returns a scratch slice to the pool.
func putScratch(buf []float32) {
	// Only pool reasonably-sized buffers.
	if cap(buf) <= 16*1024*1024 {
		scratchPool.Put(&floatBuffer{data: buf[:cap(buf)]})
	}
}
