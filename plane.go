package guidedfilter

import "fmt"

// Plane represents a rectangular single-channel float32 image, stored
// row-major.
type Plane struct {
	width  int
	height int
	data   []float32
}

// NewPlane creates a new zero-filled plane with the given dimensions.
func NewPlane(width, height int) *Plane {
	return &Plane{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

// PlaneFromData wraps an existing row-major slice as a plane without copying.
// The slice length must be exactly width*height.
func PlaneFromData(width, height int, data []float32) (*Plane, error) {
	if len(data) != width*height {
		return nil, fmt.Errorf("guidedfilter: plane data length %d does not match %dx%d: %w",
			len(data), width, height, ErrConfig)
	}
	return &Plane{width: width, height: height, data: data}, nil
}

// Width returns the width of the plane.
func (p *Plane) Width() int {
	return p.width
}

// Height returns the height of the plane.
func (p *Plane) Height() int {
	return p.height
}

// Data returns the raw row-major pixel data. Mutations are visible to the
// plane.
func (p *Plane) Data() []float32 {
	return p.data
}

// At returns the value of a single pixel, or 0 outside the plane.
func (p *Plane) At(x, y int) float32 {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return 0
	}
	return p.data[y*p.width+x]
}

// Set sets the value of a single pixel. Out-of-bounds writes are ignored.
func (p *Plane) Set(x, y int, v float32) {
	if x < 0 || x >= p.width || y < 0 || y >= p.height {
		return
	}
	p.data[y*p.width+x] = v
}

// Fill sets every pixel to v.
func (p *Plane) Fill(v float32) {
	for i := range p.data {
		p.data[i] = v
	}
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	q := NewPlane(p.width, p.height)
	copy(q.data, p.data)
	return q
}
