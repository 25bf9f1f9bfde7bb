package guidedfilter

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMSE returns the root-mean-square error between two equal-length arrays.
// Panics if the lengths differ or are zero.
func RMSE(a, b []float32) float64 {
	diff := absDiff(a, b)
	return floats.Norm(diff, 2) / math.Sqrt(float64(len(diff)))
}

// MaxAbsError returns the largest element-wise absolute difference between
// two equal-length arrays. Panics if the lengths differ or are zero.
func MaxAbsError(a, b []float32) float64 {
	return floats.Max(absDiff(a, b))
}

// PSNR returns the peak signal-to-noise ratio between two arrays in
// decibels, for signals whose nominal peak is peak. Identical arrays give
// +Inf.
func PSNR(a, b []float32, peak float64) float64 {
	rmse := RMSE(a, b)
	if rmse == 0 {
		return math.Inf(1)
	}
	return 20 * math.Log10(peak/rmse)
}

func absDiff(a, b []float32) []float64 {
	if len(a) != len(b) {
		panic("guidedfilter: length mismatch")
	}
	diff := make([]float64, len(a))
	for i := range a {
		diff[i] = math.Abs(float64(a[i]) - float64(b[i]))
	}
	return diff
}
