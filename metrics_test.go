package guidedfilter

import (
	"math"
	"testing"
)

func TestRMSE(t *testing.T) {
	a := []float32{3, 4}
	b := []float32{0, 0}
	want := 5 / math.Sqrt(2)
	if got := RMSE(a, b); math.Abs(got-want) > 1e-12 {
		t.Errorf("RMSE = %v, want %v", got, want)
	}
	if got := RMSE(a, a); got != 0 {
		t.Errorf("RMSE of identical arrays = %v, want 0", got)
	}
}

func TestMaxAbsError(t *testing.T) {
	a := []float32{1, -2.5, 0.5, 0}
	b := []float32{1, 0, 1, -0.25}
	if got := MaxAbsError(a, b); got != 2.5 {
		t.Errorf("MaxAbsError = %v, want 2.5", got)
	}
}

func TestPSNR(t *testing.T) {
	a := []float32{0, 0, 0, 0}
	b := []float32{0.1, 0.1, 0.1, 0.1}
	// rmse == 0.1, so PSNR against peak 1 is 20 dB.
	if got := PSNR(a, b, 1); math.Abs(got-20) > 1e-5 {
		t.Errorf("PSNR = %v, want 20", got)
	}
	if got := PSNR(a, a, 1); !math.IsInf(got, 1) {
		t.Errorf("PSNR of identical arrays = %v, want +Inf", got)
	}
}
