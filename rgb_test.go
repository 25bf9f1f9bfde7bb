package guidedfilter

import (
	"errors"
	"testing"
)

func TestRGBFilterApplyConstant(t *testing.T) {
	resetAccelerator()

	const width, height = 16, 16
	f, err := NewRGBFilter(DefaultConfig(width, height))
	if err != nil {
		t.Fatal(err)
	}

	// Power-of-two channel values keep the box sums exact, so constant
	// channels pass through unchanged.
	src := make([]float32, 3*width*height)
	for i := 0; i < len(src); i += 3 {
		src[i] = 1
		src[i+1] = 0.5
		src[i+2] = 0.25
	}
	dst := make([]float32, len(src))
	if err := f.Apply(dst, src); err != nil {
		t.Fatal(err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %g, want exactly %g", i, dst[i], src[i])
		}
	}
}

func TestRGBFilterApply8EpsZeroRoundTrip(t *testing.T) {
	resetAccelerator()

	const width, height = 16, 16
	cfg := DefaultConfig(width, height)
	cfg.Radius = 1
	cfg.Eps = 0
	f, err := NewRGBFilter(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// A 0/255 checkerboard keeps every window variance positive, so the
	// eps = 0 identity survives the 8-bit conversion exactly.
	src := make([]uint8, 3*width*height)
	for p := 0; p < width*height; p++ {
		x, y := p%width, p/width
		if (x+y)%2 == 0 {
			src[3*p] = 255
			src[3*p+1] = 255
			src[3*p+2] = 255
		}
	}
	dst := make([]uint8, len(src))
	if err := f.Apply8(dst, src); err != nil {
		t.Fatal(err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestRGBFilterLengthMismatch(t *testing.T) {
	resetAccelerator()

	f, err := NewRGBFilter(DefaultConfig(16, 16))
	if err != nil {
		t.Fatal(err)
	}
	short := make([]float32, 3*16*16-3)
	full := make([]float32, 3*16*16)
	if err := f.Apply(full, short); !errors.Is(err, ErrConfig) {
		t.Errorf("short src: err = %v, want ErrConfig class", err)
	}
	if err := f.Apply(short, full); !errors.Is(err, ErrConfig) {
		t.Errorf("short dst: err = %v, want ErrConfig class", err)
	}
}

func TestRGBFilterUsesAccelerator(t *testing.T) {
	t.Cleanup(resetAccelerator)
	resetAccelerator()

	mock := &mockAccelerator{name: "mock", canAccel: AccelRGB}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatal(err)
	}

	f, err := NewRGBFilter(DefaultConfig(16, 16))
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 3*16*16)
	if err := f.Apply(buf, buf); err != nil {
		t.Fatal(err)
	}
	if len(mock.calls) != 1 || mock.calls[0] != "rgb" {
		t.Fatalf("accelerator calls = %v, want [rgb]", mock.calls)
	}
	if buf[0] != gpuMarker {
		t.Error("CPU path ran even though the accelerator succeeded")
	}
}
