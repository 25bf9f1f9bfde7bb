// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// Package compute implements the GPU filtering engine on top of wgpu/hal
// compute shaders.
//
// The engine mirrors the CPU reference in internal/satcompute stage for
// stage: rows are prefix-summed with a Blelloch scan, transposed, and
// summed again to form a summed-area table; box filtering then reads four
// SAT corners per pixel. The guided filter composes box filters with small
// element-wise algebra kernels.
//
// # Stage protocol
//
// Every device stage follows the same lifecycle:
//
//	s := NewSelfGuidedStage(engine, guidedfilter.StagingInOut)
//	s.Bind(RoleIn, sharedBuf)       // optional, before Configure
//	err := s.Configure(cfg)         // allocates unbound slots, freezes identity
//	s.Write(hostData)               // host -> device through staging
//	s.Run()                         // submit and wait
//	s.Read(hostOut)                 // device -> host through staging
//
// Bind is only valid before Configure. Pre-bound buffers are adopted so
// that pipelines chain stages with zero copies: stage B binds stage A's
// Out slot as its In slot and no intermediate readback happens. After
// Configure the buffer set is frozen and Run may be called any number of
// times.
//
// # Scheduling
//
// Composite pipelines enqueue their stages into a Graph, a small DAG
// executor with two logical submission lanes. The executor validates
// acyclicity, slices each lane into command-buffer segments at incoming
// cross-lane edges, and realizes those edges as fence waits. See graph.go.
//
// The package is wired into the public API through the root package's
// accelerator registry; see the gpu subpackage for registration.
package compute
