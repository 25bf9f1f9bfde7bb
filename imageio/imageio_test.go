// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package imageio

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/guidedfilter"
)

// testImage builds a deterministic RGBA test card with gradients and hard
// edges, fully opaque.
func testImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: uint8((x + y) % 256),
				A: 0xff,
			})
		}
	}
	return img
}

// TestPlanesComposeRoundTrip checks that splitting an image into planes
// and composing it back reproduces every byte. The /255 and *255 steps
// invert exactly in float32 for all 256 sample values.
func TestPlanesComposeRoundTrip(t *testing.T) {
	src := testImage(48, 32)
	r, g, b := Planes(src)

	require.Equal(t, 48, r.Width())
	require.Equal(t, 32, r.Height())

	dst, err := Compose(r, g, b)
	require.NoError(t, err)

	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			if src.RGBAAt(x, y) != dst.RGBAAt(x, y) {
				assert.Equal(t, src.RGBAAt(x, y), dst.RGBAAt(x, y), "pixel (%d, %d)", x, y)
				return
			}
		}
	}
}

// TestInterleavedRoundTrip checks the flat RGB layout used by RGBFilter.
func TestInterleavedRoundTrip(t *testing.T) {
	src := testImage(32, 24)

	data, w, h := Interleaved(src)
	require.Equal(t, 32, w)
	require.Equal(t, 24, h)
	require.Len(t, data, 32*24*3)

	dst, err := FromInterleaved(data, w, h)
	require.NoError(t, err)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if src.RGBAAt(x, y) != dst.RGBAAt(x, y) {
				assert.Equal(t, src.RGBAAt(x, y), dst.RGBAAt(x, y), "pixel (%d, %d)", x, y)
				return
			}
		}
	}
}

func TestComposeRejectsMismatchedPlanes(t *testing.T) {
	r := guidedfilter.NewPlane(16, 16)
	g := guidedfilter.NewPlane(32, 16)
	b := guidedfilter.NewPlane(16, 16)

	_, err := Compose(r, g, b)
	require.Error(t, err)

	_, err = FromInterleaved(make([]float32, 10), 16, 16)
	require.Error(t, err)
}

// TestGrayWeights checks the Rec. 601 luma reduction on pure channels.
func TestGrayWeights(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 1))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
	img.SetRGBA(2, 0, color.RGBA{B: 255, A: 255})
	img.SetRGBA(3, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	p := Gray(img)
	data := p.Data()
	assert.InDelta(t, 0.299, data[0], 1e-6)
	assert.InDelta(t, 0.587, data[1], 1e-6)
	assert.InDelta(t, 0.114, data[2], 1e-6)
	assert.InDelta(t, 1.0, data[3], 1e-6)
}

// TestDepth16RoundTrip feeds 16-bit depth samples through the float plane
// representation and back. Rounding on the way out makes the millimeter
// scale round trip exact.
func TestDepth16RoundTrip(t *testing.T) {
	const w, h = 24, 16
	src := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.SetGray16(x, y, color.Gray16{Y: uint16((y*w + x) * 523)})
		}
	}

	depth, dw, dh := Depth16(src)
	require.Equal(t, w, dw)
	require.Equal(t, h, dh)
	for i := range depth {
		require.Equal(t, uint16(i*523), depth[i], "sample %d", i)
	}

	const scaling = 1e-3
	p := guidedfilter.NewPlane(w, h)
	data := p.Data()
	for i, d := range depth {
		data[i] = float32(d) * scaling
	}

	dst := Depth16Image(p, scaling)
	for i := range depth {
		got := dst.Gray16At(i%w, i/w).Y
		if got != depth[i] {
			assert.Equal(t, depth[i], got, "sample %d", i)
			return
		}
	}
}

func TestSnapToGrid(t *testing.T) {
	t.Run("aligned passes through", func(t *testing.T) {
		img := testImage(64, 48)
		snapped, err := SnapToGrid(img)
		require.NoError(t, err)
		require.Same(t, img, snapped)
	})

	t.Run("unaligned shrinks to the grid", func(t *testing.T) {
		img := testImage(100, 50)
		snapped, err := SnapToGrid(img)
		require.NoError(t, err)
		bounds := snapped.Bounds()
		assert.Equal(t, 96, bounds.Dx())
		assert.Equal(t, 48, bounds.Dy())
	})

	t.Run("depth keeps 16-bit samples", func(t *testing.T) {
		img := image.NewGray16(image.Rect(0, 0, 33, 17))
		snapped, err := SnapToGrid(img)
		require.NoError(t, err)
		require.IsType(t, &image.Gray16{}, snapped)
		bounds := snapped.Bounds()
		assert.Equal(t, 32, bounds.Dx())
		assert.Equal(t, 16, bounds.Dy())
	})

	t.Run("too small fails", func(t *testing.T) {
		_, err := SnapToGrid(testImage(10, 5))
		require.Error(t, err)
	})
}

// TestLoadSavePNG round trips an image through the PNG codec on disk.
func TestLoadSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	src := testImage(32, 16)

	require.NoError(t, SavePNG(path, src))

	img, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, src.Bounds(), img.Bounds())

	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			sr, sg, sb, sa := src.At(x, y).RGBA()
			gr, gg, gb, ga := img.At(x, y).RGBA()
			if sr != gr || sg != gg || sb != gb || sa != ga {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, img.At(x, y), src.At(x, y))
			}
		}
	}
}
