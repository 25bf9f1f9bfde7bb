// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package imageio converts between image.Image and the float planes the
// guided filter works on, and resamples images onto the 16-pixel grid the
// device kernels require.
//
// Color planes hold values in [0, 1]. Depth images travel as raw uint16
// samples so the invalid-pixel zero convention survives the conversion.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/guidedfilter"
	"github.com/gogpu/guidedfilter/internal/satcompute"

	_ "image/jpeg"
)

// Planes splits an image into three float planes in [0, 1].
func Planes(img image.Image) (r, g, b *guidedfilter.Plane) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := interleavedBytes(img)

	r = guidedfilter.NewPlane(w, h)
	g = guidedfilter.NewPlane(w, h)
	b = guidedfilter.NewPlane(w, h)
	satcompute.SeparateRGB8(r.Data(), g.Data(), b.Data(), rgb, w*h)
	return r, g, b
}

// Compose builds an 8-bit RGBA image from three equally sized planes,
// clamping values to [0, 1].
func Compose(r, g, b *guidedfilter.Plane) (*image.RGBA, error) {
	w, h := r.Width(), r.Height()
	if g.Width() != w || g.Height() != h || b.Width() != w || b.Height() != h {
		return nil, fmt.Errorf("imageio: plane extents differ: %dx%d, %dx%d, %dx%d",
			w, h, g.Width(), g.Height(), b.Width(), b.Height())
	}

	rgb := make([]uint8, w*h*3)
	satcompute.CombineRGB8(rgb, r.Data(), g.Data(), b.Data(), w*h)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		dst.Pix[i*4] = rgb[i*3]
		dst.Pix[i*4+1] = rgb[i*3+1]
		dst.Pix[i*4+2] = rgb[i*3+2]
		dst.Pix[i*4+3] = 0xff
	}
	return dst, nil
}

// Interleaved flattens an image into the interleaved float RGB layout of
// RGBFilter.Apply, with its extent.
func Interleaved(img image.Image) ([]float32, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := interleavedBytes(img)

	data := make([]float32, w*h*3)
	for i, v := range rgb {
		data[i] = float32(v) / 255
	}
	return data, w, h
}

// FromInterleaved builds an 8-bit RGBA image from interleaved float RGB
// data, clamping values to [0, 1].
func FromInterleaved(data []float32, width, height int) (*image.RGBA, error) {
	if len(data) != width*height*3 {
		return nil, fmt.Errorf("imageio: interleaved length %d does not match %dx%dx3", len(data), width, height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		dst.Pix[i*4] = quantize(data[i*3])
		dst.Pix[i*4+1] = quantize(data[i*3+1])
		dst.Pix[i*4+2] = quantize(data[i*3+2])
		dst.Pix[i*4+3] = 0xff
	}
	return dst, nil
}

// Gray reduces an image to a single luma plane in [0, 1] with the Rec. 601
// weights, the plane a cross-guided filter typically guides on.
func Gray(img image.Image) *guidedfilter.Plane {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := interleavedBytes(img)

	p := guidedfilter.NewPlane(w, h)
	data := p.Data()
	for i := 0; i < w*h; i++ {
		r := float32(rgb[i*3])
		g := float32(rgb[i*3+1])
		b := float32(rgb[i*3+2])
		data[i] = (0.299*r + 0.587*g + 0.114*b) / 255
	}
	return p
}

// GrayImage renders a plane as 8-bit grayscale, clamping to [0, 1].
func GrayImage(p *guidedfilter.Plane) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, p.Width(), p.Height()))
	for i, v := range p.Data() {
		dst.Pix[i] = quantize(v)
	}
	return dst
}

// Depth16 extracts raw 16-bit depth samples from an image. Gray16 sources
// are read sample for sample; anything else goes through the Gray16 color
// model.
func Depth16(img image.Image) ([]uint16, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	depth := make([]uint16, w*h)

	if src, ok := img.(*image.Gray16); ok {
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				depth[y*w+x] = uint16(row[x*2])<<8 | uint16(row[x*2+1])
			}
		}
		return depth, w, h
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			depth[y*w+x] = c.Y
		}
	}
	return depth, w, h
}

// Depth16Image quantizes a float depth plane back to a 16-bit grayscale
// image, rounding to the nearest sample. scaling is the factor the plane
// was converted with, so passing the same value inverts DepthFilter's
// input conversion. Out-of-range samples clamp.
func Depth16Image(p *guidedfilter.Plane, scaling float32) *image.Gray16 {
	dst := image.NewGray16(image.Rect(0, 0, p.Width(), p.Height()))
	for i, v := range p.Data() {
		s := v/scaling + 0.5
		if s < 0 {
			s = 0
		}
		if s > 65535 {
			s = 65535
		}
		u := uint16(s)
		dst.Pix[i*2] = uint8(u >> 8)
		dst.Pix[i*2+1] = uint8(u)
	}
	return dst
}

// SnapToGrid resamples an image so both extents are multiples of
// guidedfilter.GridSize, shrinking by at most GridSize-1 pixels per axis.
// Aligned images come back unchanged. Images smaller than one grid step
// are an error.
func SnapToGrid(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	gw := w - w%guidedfilter.GridSize
	gh := h - h%guidedfilter.GridSize
	if gw == 0 || gh == 0 {
		return nil, fmt.Errorf("imageio: image %dx%d is smaller than the %d-pixel grid", w, h, guidedfilter.GridSize)
	}
	if gw == w && gh == h {
		return img, nil
	}

	var dst draw.Image
	switch img.(type) {
	case *image.Gray16:
		dst = image.NewGray16(image.Rect(0, 0, gw, gh))
	case *image.Gray:
		dst = image.NewGray(image.Rect(0, 0, gw, gh))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, gw, gh))
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst, nil
}

// Load decodes an image from disk. PNG and JPEG decoders are registered.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// SavePNG writes an image to disk with fast compression.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		return err
	}
	return f.Close()
}

// interleavedBytes flattens an image into 3-byte RGB pixels, converting
// through RGBA when the source is not already one.
func interleavedBytes(img image.Image) []uint8 {
	rgba := toRGBA(img)
	bounds := rgba.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	rgb := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			rgb[(y*w+x)*3] = row[x*4]
			rgb[(y*w+x)*3+1] = row[x*4+1]
			rgb[(y*w+x)*3+2] = row[x*4+2]
		}
	}
	return rgb
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// quantize maps [0, 1] to a byte with the same truncating cast as the
// packed 8-bit device kernels, so host conversions and device readbacks
// produce identical bytes.
func quantize(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v * 255)
}
