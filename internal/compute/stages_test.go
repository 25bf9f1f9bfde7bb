// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package compute

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/internal/satcompute"
)

// newTestEngine opens the default adapter through the accelerator's own
// init path and skips the test when no usable device is present, matching
// how the library degrades at runtime.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	a := NewAccelerator()
	a.mu.Lock()
	err := a.initGPU()
	a.mu.Unlock()
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(a.Close)
	if a.eng == nil {
		t.Skip("compute engine not available on this adapter")
	}
	return a.eng
}

// TestScanStageMatchesCPU runs the device scan over single-block and
// blocked row lengths and compares against the serial reference. The fill
// is small integers, so every partial sum is exact in float32 and the
// tree-shaped device accumulation is bit-comparable against the serial
// scan.
func TestScanStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	widths := []int{64, scanBlock, 2 * scanBlock, 5 * scanBlock}
	const height = 3

	for _, width := range widths {
		src := make([]float32, width*height)
		for i := range src {
			src[i] = float32(i % 17)
		}
		want := make([]float32, len(src))
		satcompute.ScanRows(want, src, width, height, 1)

		s := NewScanStage(eng, guidedfilter.StagingInOut)
		if err := s.Configure(width, height, 1); err != nil {
			t.Fatalf("width %d: Configure: %v", width, err)
		}
		if err := s.Write(src); err != nil {
			t.Fatalf("width %d: Write: %v", width, err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("width %d: Run: %v", width, err)
		}
		got := make([]float32, len(src))
		if err := s.Read(got); err != nil {
			t.Fatalf("width %d: Read: %v", width, err)
		}
		s.Free()

		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("width %d: element %d = %g, want %g", width, i, got[i], want[i])
			}
		}
	}
}

// TestScanStageScaling checks that the entry scaling multiplies elements
// before accumulation. Power-of-two scaling keeps every intermediate exact.
func TestScanStageScaling(t *testing.T) {
	eng := newTestEngine(t)

	const width, height = 2 * scanBlock, 2
	src := make([]float32, width*height)
	for i := range src {
		src[i] = float32(i % 8)
	}
	want := make([]float32, len(src))
	satcompute.ScanRows(want, src, width, height, 0.5)

	s := NewScanStage(eng, guidedfilter.StagingInOut)
	if err := s.Configure(width, height, 0.5); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := s.Write(src); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := make([]float32, len(src))
	if err := s.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	s.Free()

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %g, want %g", i, got[i], want[i])
		}
	}
}

// TestTransposeStageMatchesCPU checks the tiled transpose against the
// serial reference over extents exercising the 8, 4 and 16 pixel tile
// sides. Transposition only moves values, so the comparison is exact.
func TestTransposeStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	extents := []struct {
		width, height int
	}{
		{64, 48},
		{128, 32},
		{640, 480},
	}

	for _, e := range extents {
		src := make([]float32, e.width*e.height)
		for i := range src {
			src[i] = float32(i % 251)
		}
		want := make([]float32, len(src))
		satcompute.Transpose(want, src, e.width, e.height)

		s := NewTransposeStage(eng, guidedfilter.StagingInOut)
		if err := s.Configure(e.width, e.height); err != nil {
			t.Fatalf("%dx%d: Configure: %v", e.width, e.height, err)
		}
		if err := s.Write(src); err != nil {
			t.Fatalf("%dx%d: Write: %v", e.width, e.height, err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("%dx%d: Run: %v", e.width, e.height, err)
		}
		got := make([]float32, len(src))
		if err := s.Read(got); err != nil {
			t.Fatalf("%dx%d: Read: %v", e.width, e.height, err)
		}
		s.Free()

		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%dx%d: element %d = %g, want %g", e.width, e.height, i, got[i], want[i])
			}
		}
	}
}

// TestSATStageMatchesCPU builds a summed-area table on the device in both
// orientations. Small-integer data keeps every table entry exact, so both
// the transposed and the restored output compare bit for bit.
func TestSATStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	const width, height = 64, 48
	src := make([]float32, width*height)
	for i := range src {
		src[i] = float32(i % 5)
	}

	t.Run("transposed", func(t *testing.T) {
		want := make([]float32, len(src))
		satcompute.SATTransposed(want, src, width, height, 1)

		s := NewSATStage(eng, guidedfilter.StagingInOut)
		if err := s.Configure(width, height, 1, false); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer s.Free()
		if !s.Transposed() {
			t.Fatal("Transposed() = false, want true without restore")
		}
		if err := s.Write(src); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := make([]float32, len(src))
		if err := s.Read(got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("element %d = %g, want %g", i, got[i], want[i])
			}
		}
	})

	t.Run("restored", func(t *testing.T) {
		want := make([]float32, len(src))
		satcompute.SAT(want, src, width, height, 1)

		s := NewSATStage(eng, guidedfilter.StagingInOut)
		if err := s.Configure(width, height, 1, true); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer s.Free()
		if s.Transposed() {
			t.Fatal("Transposed() = true, want false with restore")
		}
		if err := s.Write(src); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := make([]float32, len(src))
		if err := s.Read(got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("element %d = %g, want %g", i, got[i], want[i])
			}
		}
	})
}

// TestBoxFilterStageMatchesCPU checks the direct device kernel against the
// serial box filter, including the radius 0 identity and windows larger
// than the shared tile's halo.
func TestBoxFilterStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	const width, height = 64, 48
	src := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			src[y*width+x] = float32((x + y) % 2)
		}
	}

	for _, radius := range []int{0, 1, 4, 7} {
		want := make([]float32, len(src))
		satcompute.BoxFilter(want, src, width, height, radius)

		b := NewBoxFilterStage(eng, guidedfilter.StagingInOut)
		if err := b.Configure(width, height, radius, 1); err != nil {
			t.Fatalf("radius %d: Configure: %v", radius, err)
		}
		if err := b.Write(src); err != nil {
			t.Fatalf("radius %d: Write: %v", radius, err)
		}
		if err := b.Run(); err != nil {
			t.Fatalf("radius %d: Run: %v", radius, err)
		}
		got := make([]float32, len(src))
		if err := b.Read(got); err != nil {
			t.Fatalf("radius %d: Read: %v", radius, err)
		}
		b.Free()

		for i := range want {
			if diff := math32.Abs(got[i] - want[i]); diff > 1e-6 {
				t.Fatalf("radius %d: element %d = %g, want %g (diff %g)", radius, i, got[i], want[i], diff)
			}
		}
	}
}

// TestBoxFilterSATStageMatchesCPU checks the O(1) composition, SAT build
// included, against the direct serial filter. The table is built with the
// production 1e-4 scaling, so the tolerance absorbs the scale round trip.
func TestBoxFilterSATStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	const width, height = 64, 48
	const scaling = 1e-4
	src := make([]float32, width*height)
	for i := range src {
		src[i] = float32(i % 7)
	}

	for _, radius := range []int{0, 4} {
		want := make([]float32, len(src))
		satcompute.BoxFilter(want, src, width, height, radius)

		b := NewBoxFilterSATStage(eng, guidedfilter.StagingInOut)
		if err := b.Configure(width, height, radius, scaling); err != nil {
			t.Fatalf("radius %d: Configure: %v", radius, err)
		}
		if err := b.Write(src); err != nil {
			t.Fatalf("radius %d: Write: %v", radius, err)
		}
		if err := b.Run(); err != nil {
			t.Fatalf("radius %d: Run: %v", radius, err)
		}
		got := make([]float32, len(src))
		if err := b.Read(got); err != nil {
			t.Fatalf("radius %d: Read: %v", radius, err)
		}
		b.Free()

		for i := range want {
			if diff := math32.Abs(got[i] - want[i]); diff > 1e-3 {
				t.Fatalf("radius %d: element %d = %g, want %g (diff %g)", radius, i, got[i], want[i], diff)
			}
		}
	}
}

// TestMathStagesMatchCPU checks the elementwise product and power kernels.
// The fills produce exactly representable results, so both compare bit for
// bit.
func TestMathStagesMatchCPU(t *testing.T) {
	eng := newTestEngine(t)
	const n = 256

	t.Run("mult", func(t *testing.T) {
		a := make([]float32, n)
		b := make([]float32, n)
		for i := range a {
			a[i] = float32(i%13) * 0.5
			b[i] = float32(i % 7)
		}
		want := make([]float32, n)
		satcompute.Mult(want, a, b)

		m := NewMultStage(eng, guidedfilter.StagingInOut)
		if err := m.Configure(n); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer m.Free()
		if err := m.Write(a); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := m.WriteGuide(b); err != nil {
			t.Fatalf("WriteGuide: %v", err)
		}
		if err := m.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := make([]float32, n)
		if err := m.Read(got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("element %d = %g, want %g", i, got[i], want[i])
			}
		}
	})

	t.Run("pown", func(t *testing.T) {
		src := make([]float32, n)
		for i := range src {
			src[i] = float32(i%16) - 7.5
		}
		want := make([]float32, n)
		satcompute.Pown(want, src, 2)

		p := NewPownStage(eng, guidedfilter.StagingInOut)
		if err := p.Configure(n, 2); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer p.Free()
		if err := p.Write(src); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := p.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := make([]float32, n)
		if err := p.Read(got); err != nil {
			t.Fatalf("Read: %v", err)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("element %d = %g, want %g", i, got[i], want[i])
			}
		}
	})
}

// TestImageStagePlaneOps checks the interleave adapters in both widths,
// the u16 depth conversion and the chromaticity normalization against
// their serial references.
func TestImageStagePlaneOps(t *testing.T) {
	eng := newTestEngine(t)
	const width, height = 16, 12
	const pixels = width * height

	t.Run("separate", func(t *testing.T) {
		interleaved := make([]float32, pixels*3)
		for i := range interleaved {
			interleaved[i] = float32(i % 255)
		}
		wantR := make([]float32, pixels)
		wantG := make([]float32, pixels)
		wantB := make([]float32, pixels)
		satcompute.SeparateRGB(wantR, wantG, wantB, interleaved, pixels)

		st := NewImageStage(eng, OpSeparateRGB, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, floatsToBytes(interleaved)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}

		for _, plane := range []struct {
			role Role
			want []float32
		}{
			{RoleRed, wantR},
			{RoleGreen, wantG},
			{RoleBlue, wantB},
		} {
			raw := make([]byte, pixels*4)
			if err := st.Read(plane.role, raw); err != nil {
				t.Fatalf("Read %v: %v", plane.role, err)
			}
			got := make([]float32, pixels)
			bytesToFloats(raw, got)
			for i := range plane.want {
				if got[i] != plane.want[i] {
					t.Fatalf("%v element %d = %g, want %g", plane.role, i, got[i], plane.want[i])
				}
			}
		}
	})

	t.Run("combine", func(t *testing.T) {
		r := make([]float32, pixels)
		g := make([]float32, pixels)
		b := make([]float32, pixels)
		for i := 0; i < pixels; i++ {
			r[i] = float32(i % 11)
			g[i] = float32(i % 13)
			b[i] = float32(i % 17)
		}
		want := make([]float32, pixels*3)
		satcompute.CombineRGB(want, r, g, b, pixels)

		st := NewImageStage(eng, OpCombineRGB, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleRed, floatsToBytes(r)); err != nil {
			t.Fatalf("Write red: %v", err)
		}
		if err := st.Write(RoleGreen, floatsToBytes(g)); err != nil {
			t.Fatalf("Write green: %v", err)
		}
		if err := st.Write(RoleBlue, floatsToBytes(b)); err != nil {
			t.Fatalf("Write blue: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		raw := make([]byte, pixels*3*4)
		if err := st.Read(RoleOut, raw); err != nil {
			t.Fatalf("Read: %v", err)
		}
		got := make([]float32, pixels*3)
		bytesToFloats(raw, got)
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("element %d = %g, want %g", i, got[i], want[i])
			}
		}
	})

	t.Run("depth", func(t *testing.T) {
		depth := make([]uint16, pixels)
		for i := range depth {
			depth[i] = uint16(i * 37)
		}
		want := make([]float32, pixels)
		satcompute.DepthToFloat(want, depth, 1e-3)

		st := NewImageStage(eng, OpDepthToFloat, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{Scaling: 1e-3}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, u16sToBytes(depth)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		raw := make([]byte, pixels*4)
		if err := st.Read(RoleOut, raw); err != nil {
			t.Fatalf("Read: %v", err)
		}
		got := make([]float32, pixels)
		bytesToFloats(raw, got)
		for i := range want {
			if diff := math32.Abs(got[i] - want[i]); diff > 1e-6 {
				t.Fatalf("element %d = %g, want %g (diff %g)", i, got[i], want[i], diff)
			}
		}
	})

	t.Run("separate8", func(t *testing.T) {
		interleaved := make([]uint8, pixels*3)
		for i := range interleaved {
			interleaved[i] = uint8((i * 7) % 256)
		}
		wantR := make([]float32, pixels)
		wantG := make([]float32, pixels)
		wantB := make([]float32, pixels)
		satcompute.SeparateRGB8(wantR, wantG, wantB, interleaved, pixels)

		st := NewImageStage(eng, OpSeparateRGB8, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, u8sToBytes(interleaved)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}

		for _, plane := range []struct {
			role Role
			want []float32
		}{
			{RoleRed, wantR},
			{RoleGreen, wantG},
			{RoleBlue, wantB},
		} {
			raw := make([]byte, pixels*4)
			if err := st.Read(plane.role, raw); err != nil {
				t.Fatalf("Read %v: %v", plane.role, err)
			}
			got := make([]float32, pixels)
			bytesToFloats(raw, got)
			for i := range plane.want {
				if diff := math32.Abs(got[i] - plane.want[i]); diff > 1e-6 {
					t.Fatalf("%v element %d = %g, want %g", plane.role, i, got[i], plane.want[i])
				}
			}
		}
	})

	t.Run("combine8", func(t *testing.T) {
		r := make([]float32, pixels)
		g := make([]float32, pixels)
		b := make([]float32, pixels)
		for i := 0; i < pixels; i++ {
			r[i] = float32(i%256) / 255
			g[i] = float32((i*3)%256) / 255
			b[i] = float32((i*5)%256) / 255
		}
		// Out-of-range values must clamp identically on both sides.
		r[0], g[1], b[2] = 1.5, -0.25, 2
		want := make([]uint8, pixels*3)
		satcompute.CombineRGB8(want, r, g, b, pixels)

		st := NewImageStage(eng, OpCombineRGB8, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleRed, floatsToBytes(r)); err != nil {
			t.Fatalf("Write red: %v", err)
		}
		if err := st.Write(RoleGreen, floatsToBytes(g)); err != nil {
			t.Fatalf("Write green: %v", err)
		}
		if err := st.Write(RoleBlue, floatsToBytes(b)); err != nil {
			t.Fatalf("Write blue: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		raw := make([]byte, pixels*3)
		if err := st.Read(RoleOut, raw); err != nil {
			t.Fatalf("Read: %v", err)
		}
		for i := range want {
			if raw[i] != want[i] {
				t.Fatalf("byte %d = %d, want %d", i, raw[i], want[i])
			}
		}
	})

	t.Run("rgbnorm", func(t *testing.T) {
		src := make([]float32, pixels*3)
		for i := range src {
			src[i] = float32(i % 7)
		}
		// A zero-sum triplet must pass through as zeros.
		src[9], src[10], src[11] = 0, 0, 0
		want := make([]float32, pixels*3)
		satcompute.RGBNorm(want, src, pixels)

		st := NewImageStage(eng, OpRGBNorm, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, floatsToBytes(src)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		raw := make([]byte, pixels*3*4)
		if err := st.Read(RoleOut, raw); err != nil {
			t.Fatalf("Read: %v", err)
		}
		got := make([]float32, pixels*3)
		bytesToFloats(raw, got)
		for i := range want {
			if diff := math32.Abs(got[i] - want[i]); diff > 1e-6 {
				t.Fatalf("element %d = %g, want %g (diff %g)", i, got[i], want[i], diff)
			}
		}
	})
}

// TestImageStageCloudOps checks the point cloud assembly adapters against
// their serial references.
func TestImageStageCloudOps(t *testing.T) {
	eng := newTestEngine(t)
	const width, height = 16, 12
	const pixels = width * height
	const focal = 525.0

	t.Run("depth_to_3d", func(t *testing.T) {
		depth := make([]float32, pixels)
		for i := range depth {
			depth[i] = float32(i%100) / 10
		}
		want := make([][4]float32, pixels)
		satcompute.DepthTo3D(want, depth, width, height, focal, 0.5)

		st := NewImageStage(eng, OpDepthTo3D, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{Scaling: 0.5, Focal: focal}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, floatsToBytes(depth)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		raw := make([]byte, pixels*16)
		if err := st.Read(RolePoints, raw); err != nil {
			t.Fatalf("Read: %v", err)
		}
		got := make([][4]float32, pixels)
		bytesToVec4s(raw, got)
		for i := range want {
			for j := 0; j < 4; j++ {
				if diff := math32.Abs(got[i][j] - want[i][j]); diff > 1e-5 {
					t.Fatalf("point %d[%d] = %g, want %g (diff %g)", i, j, got[i][j], want[i][j], diff)
				}
			}
		}
	})

	t.Run("rgbd_to_8d", func(t *testing.T) {
		depth := make([]float32, pixels)
		r := make([]float32, pixels)
		g := make([]float32, pixels)
		b := make([]float32, pixels)
		for i := 0; i < pixels; i++ {
			depth[i] = float32((i * 37) % 1000)
			r[i] = float32(i%11) / 10
			g[i] = float32(i%13) / 12
			b[i] = float32(i%17) / 16
		}
		want := make([][8]float32, pixels)
		satcompute.RGBDTo8D(want, depth, r, g, b, width, height, focal, 1e-3, true)

		st := NewImageStage(eng, OpRGBDTo8D, guidedfilter.StagingInOut)
		par := ImageParams{Scaling: 1e-3, Focal: focal, Normalize: true}
		if err := st.Configure(width, height, par); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, floatsToBytes(depth)); err != nil {
			t.Fatalf("Write depth: %v", err)
		}
		if err := st.Write(RoleRed, floatsToBytes(r)); err != nil {
			t.Fatalf("Write red: %v", err)
		}
		if err := st.Write(RoleGreen, floatsToBytes(g)); err != nil {
			t.Fatalf("Write green: %v", err)
		}
		if err := st.Write(RoleBlue, floatsToBytes(b)); err != nil {
			t.Fatalf("Write blue: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}
		raw := make([]byte, pixels*32)
		if err := st.Read(RolePoints, raw); err != nil {
			t.Fatalf("Read: %v", err)
		}
		got := make([]float32, pixels*8)
		bytesToFloats(raw, got)
		for i := range want {
			for j := 0; j < 8; j++ {
				if diff := math32.Abs(got[i*8+j] - want[i][j]); diff > 1e-5 {
					t.Fatalf("record %d[%d] = %g, want %g (diff %g)", i, j, got[i*8+j], want[i][j], diff)
				}
			}
		}
	})

	t.Run("split", func(t *testing.T) {
		const offset = 2
		records := make([][8]float32, pixels)
		for i := range records {
			for j := 0; j < 8; j++ {
				records[i][j] = float32(i*8 + j)
			}
		}
		wantPoints := make([][4]float32, offset+pixels)
		wantColors := make([][4]float32, offset+pixels)
		satcompute.SplitPC8D(wantPoints, wantColors, records, offset)

		flat := make([]float32, pixels*8)
		for i, rec := range records {
			copy(flat[i*8:], rec[:])
		}

		st := NewImageStage(eng, OpSplitPC8D, guidedfilter.StagingInOut)
		if err := st.Configure(width, height, ImageParams{Offset: offset}); err != nil {
			t.Fatalf("Configure: %v", err)
		}
		defer st.Free()
		if err := st.Write(RoleIn, floatsToBytes(flat)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := st.Run(); err != nil {
			t.Fatalf("Run: %v", err)
		}

		for _, half := range []struct {
			role Role
			want [][4]float32
		}{
			{RolePoints, wantPoints},
			{RoleColors, wantColors},
		} {
			raw := make([]byte, (offset+pixels)*16)
			if err := st.Read(half.role, raw); err != nil {
				t.Fatalf("Read %v: %v", half.role, err)
			}
			got := make([][4]float32, offset+pixels)
			bytesToVec4s(raw, got)
			// Records below the offset are never written by the kernel.
			for i := offset; i < offset+pixels; i++ {
				if got[i] != half.want[i] {
					t.Fatalf("%v record %d = %v, want %v", half.role, i, got[i], half.want[i])
				}
			}
		}
	})
}

// guidedTestInput builds a smooth ramp with checkerboard texture on top,
// so the filter has both structure to preserve and noise to smooth.
func guidedTestInput(width, height int) []float32 {
	p := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p[y*width+x] = float32(x)/float32(width) + 0.25*float32((x+y)%2)
		}
	}
	return p
}

// TestSelfGuidedStageMatchesCPU runs the full device pipeline against the
// serial filter, including full sensor extents at both production radii.
// The device builds its box means through scaled summed-area tables while
// the reference accumulates directly, so the comparison carries the SAT
// round-trip tolerance.
func TestSelfGuidedStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	cases := []struct {
		width, height, radius int
	}{
		{64, 48, 4},
		{640, 480, 4},
		{640, 480, 7},
	}

	for _, tc := range cases {
		cfg := guidedfilter.DefaultConfig(tc.width, tc.height)
		cfg.Radius = tc.radius
		p := guidedTestInput(cfg.Width, cfg.Height)

		want := make([]float32, len(p))
		satcompute.SelfGuided(want, p, cfg.Width, cfg.Height, satcompute.GuidedParams{
			Radius:        cfg.Radius,
			Eps:           cfg.Eps,
			OutputScaling: cfg.OutputScaling,
		})

		s := NewSelfGuidedStage(eng, guidedfilter.StagingInOut)
		if err := s.Configure(cfg); err != nil {
			t.Fatalf("%dx%d r%d: Configure: %v", tc.width, tc.height, tc.radius, err)
		}
		if err := s.Write(p); err != nil {
			t.Fatalf("%dx%d r%d: Write: %v", tc.width, tc.height, tc.radius, err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("%dx%d r%d: Run: %v", tc.width, tc.height, tc.radius, err)
		}
		got := make([]float32, len(p))
		if err := s.Read(got); err != nil {
			t.Fatalf("%dx%d r%d: Read: %v", tc.width, tc.height, tc.radius, err)
		}
		s.Free()

		for i := range want {
			if diff := math32.Abs(got[i] - want[i]); diff > 5e-3 {
				t.Fatalf("%dx%d r%d: element %d = %g, want %g (diff %g)",
					tc.width, tc.height, tc.radius, i, got[i], want[i], diff)
			}
		}
	}
}

// TestSelfGuidedStageZeroOut checks the invalid-pixel gate on the device:
// zero inputs must come back exactly zero, and a reconfigured radius or
// eps must flow through the cached pipeline.
func TestSelfGuidedStageZeroOut(t *testing.T) {
	eng := newTestEngine(t)

	cfg := guidedfilter.DefaultConfig(32, 32)
	cfg.ZeroOut = true
	p := guidedTestInput(cfg.Width, cfg.Height)
	for i := range p {
		if i%5 == 0 {
			p[i] = 0
		}
	}

	s := NewSelfGuidedStage(eng, guidedfilter.StagingInOut)
	if err := s.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer s.Free()
	if err := s.Write(p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := make([]float32, len(p))
	if err := s.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}

	for i := range p {
		if p[i] == 0 && got[i] != 0 {
			t.Fatalf("element %d = %g, want exactly 0 for zero input", i, got[i])
		}
	}
}

// TestSelfGuidedStageSetters reruns a configured pipeline after changing
// radius and eps and checks the output tracks a fresh pipeline built with
// the new parameters.
func TestSelfGuidedStageSetters(t *testing.T) {
	eng := newTestEngine(t)

	cfg := guidedfilter.DefaultConfig(32, 32)
	p := guidedTestInput(cfg.Width, cfg.Height)

	s := NewSelfGuidedStage(eng, guidedfilter.StagingInOut)
	if err := s.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer s.Free()
	if err := s.Write(p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := s.SetRadius(2); err != nil {
		t.Fatalf("SetRadius: %v", err)
	}
	if err := s.SetEps(0.05); err != nil {
		t.Fatalf("SetEps: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	got := make([]float32, len(p))
	if err := s.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}

	fresh := guidedfilter.DefaultConfig(32, 32)
	fresh.Radius = 2
	fresh.Eps = 0.05
	f := NewSelfGuidedStage(eng, guidedfilter.StagingInOut)
	if err := f.Configure(fresh); err != nil {
		t.Fatalf("fresh Configure: %v", err)
	}
	defer f.Free()
	if err := f.Write(p); err != nil {
		t.Fatalf("fresh Write: %v", err)
	}
	if err := f.Run(); err != nil {
		t.Fatalf("fresh Run: %v", err)
	}
	want := make([]float32, len(p))
	if err := f.Read(want); err != nil {
		t.Fatalf("fresh Read: %v", err)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("element %d = %g, want %g after reparameterization", i, got[i], want[i])
		}
	}
}

// TestCrossGuidedStageMatchesCPU smooths a noisy input under a clean ramp
// guide and compares against the serial cross-guided filter.
func TestCrossGuidedStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	cfg := guidedfilter.DefaultConfig(64, 48)
	guide := make([]float32, cfg.Width*cfg.Height)
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			guide[y*cfg.Width+x] = float32(x) / float32(cfg.Width)
		}
	}
	p := guidedTestInput(cfg.Width, cfg.Height)

	want := make([]float32, len(p))
	satcompute.CrossGuided(want, guide, p, cfg.Width, cfg.Height, satcompute.GuidedParams{
		Radius: cfg.Radius,
		Eps:    cfg.Eps,
	})

	s := NewCrossGuidedStage(eng, guidedfilter.StagingInOut)
	if err := s.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer s.Free()
	if err := s.WriteGuide(guide); err != nil {
		t.Fatalf("WriteGuide: %v", err)
	}
	if err := s.Write(p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := make([]float32, len(p))
	if err := s.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}

	for i := range want {
		if diff := math32.Abs(got[i] - want[i]); diff > 5e-3 {
			t.Fatalf("element %d = %g, want %g (diff %g)", i, got[i], want[i], diff)
		}
	}
}

// TestRGBFilterStageMatchesCPU runs the fused three-channel pipeline and
// compares against separate, three serial self-guided passes, combine.
func TestRGBFilterStageMatchesCPU(t *testing.T) {
	eng := newTestEngine(t)

	cfg := guidedfilter.DefaultConfig(32, 32)
	pixels := cfg.Width * cfg.Height
	src := make([]float32, pixels*3)
	for i := range src {
		src[i] = float32(i%29)/29 + 0.1*float32(i%2)
	}

	r := make([]float32, pixels)
	g := make([]float32, pixels)
	b := make([]float32, pixels)
	satcompute.SeparateRGB(r, g, b, src, pixels)
	par := satcompute.GuidedParams{Radius: cfg.Radius, Eps: cfg.Eps, OutputScaling: cfg.OutputScaling}
	qr := make([]float32, pixels)
	qg := make([]float32, pixels)
	qb := make([]float32, pixels)
	satcompute.SelfGuided(qr, r, cfg.Width, cfg.Height, par)
	satcompute.SelfGuided(qg, g, cfg.Width, cfg.Height, par)
	satcompute.SelfGuided(qb, b, cfg.Width, cfg.Height, par)
	want := make([]float32, pixels*3)
	satcompute.CombineRGB(want, qr, qg, qb, pixels)

	st := NewRGBFilterStage(eng, guidedfilter.StagingInOut)
	if err := st.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	defer st.Free()
	if err := st.Write(src); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := make([]float32, pixels*3)
	if err := st.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}

	for i := range want {
		if diff := math32.Abs(got[i] - want[i]); diff > 5e-3 {
			t.Fatalf("element %d = %g, want %g (diff %g)", i, got[i], want[i], diff)
		}
	}
}
