package guidedfilter

import (
	"errors"
	"testing"
)

func TestNewPlane(t *testing.T) {
	p := NewPlane(32, 16)
	if p.Width() != 32 || p.Height() != 16 {
		t.Fatalf("plane is %dx%d, want 32x16", p.Width(), p.Height())
	}
	if len(p.Data()) != 32*16 {
		t.Fatalf("data length = %d, want %d", len(p.Data()), 32*16)
	}
	for i, v := range p.Data() {
		if v != 0 {
			t.Fatalf("data[%d] = %g, want 0", i, v)
		}
	}
}

func TestPlaneFromData(t *testing.T) {
	data := make([]float32, 8*4)
	data[5] = 1.5
	p, err := PlaneFromData(8, 4, data)
	if err != nil {
		t.Fatalf("PlaneFromData() = %v", err)
	}
	if p.At(5, 0) != 1.5 {
		t.Errorf("At(5, 0) = %g, want 1.5", p.At(5, 0))
	}

	// The plane wraps the slice, it does not copy.
	data[5] = 2
	if p.At(5, 0) != 2 {
		t.Error("plane did not share the caller's slice")
	}

	if _, err := PlaneFromData(8, 4, make([]float32, 31)); !errors.Is(err, ErrConfig) {
		t.Errorf("short data: err = %v, want ErrConfig class", err)
	}
}

func TestPlaneAtSetBounds(t *testing.T) {
	p := NewPlane(4, 4)
	p.Set(2, 3, 7)
	if got := p.At(2, 3); got != 7 {
		t.Errorf("At(2, 3) = %g, want 7", got)
	}

	// Out-of-bounds reads return zero, writes are ignored.
	if got := p.At(-1, 0); got != 0 {
		t.Errorf("At(-1, 0) = %g, want 0", got)
	}
	if got := p.At(0, 4); got != 0 {
		t.Errorf("At(0, 4) = %g, want 0", got)
	}
	p.Set(4, 0, 9)
	p.Set(0, -1, 9)
	for i, v := range p.Data() {
		if v != 0 && i != 3*4+2 {
			t.Fatalf("out-of-bounds write landed at index %d", i)
		}
	}
}

func TestPlaneFill(t *testing.T) {
	p := NewPlane(8, 8)
	p.Fill(0.5)
	for i, v := range p.Data() {
		if v != 0.5 {
			t.Fatalf("data[%d] = %g, want 0.5", i, v)
		}
	}
}

func TestPlaneClone(t *testing.T) {
	p := NewPlane(8, 8)
	p.Set(1, 1, 3)

	q := p.Clone()
	if q.At(1, 1) != 3 {
		t.Fatal("clone did not copy data")
	}
	q.Set(1, 1, 4)
	if p.At(1, 1) != 3 {
		t.Error("mutating the clone changed the original")
	}
}
