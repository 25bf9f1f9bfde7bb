// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package satcompute provides CPU reference implementations of every GPU
// kernel in the guided filter pipeline: row prefix scans (serial and the
// blocked three-pass form the GPU uses), matrix transpose, summed-area
// tables, box filters, the guided filter algebra, and the image support
// adapters (channel separation, depth conversion, point cloud assembly).
//
// These functions are the correctness oracle for the GPU tests in
// internal/compute and the fallback path behind the public API. They
// operate on flat float32 slices in row-major layout, matching the device
// buffer layouts bit for bit where the algorithm allows it. The row-wise
// kernels process large planes in parallel row bands on a shared worker
// pool; per-pixel arithmetic order is unchanged, so parallel and serial
// results are identical.
package satcompute
