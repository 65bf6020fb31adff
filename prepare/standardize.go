package prepare

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Standardizer records per-column centering and scaling factors. Fields are
// exported so recorded transforms survive gob serialization.
type Standardizer struct {
	Mean  []float64
	Scale []float64
}

// fitStandardizer computes column means and standard deviations of x.
// Near-zero deviations are replaced by 1 so constant columns pass through
// unchanged instead of dividing by zero.
func fitStandardizer(x mat.Matrix) *Standardizer {
	r, c := x.Dims()
	mean := make([]float64, c)
	scale := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		m, std := stat.MeanStdDev(col, nil)
		mean[j] = m
		if math.Abs(std) < 1e-8 || math.IsNaN(std) {
			std = 1.0
		}
		scale[j] = std
	}
	return &Standardizer{Mean: mean, Scale: scale}
}

// transform returns (x - mean) / scale as a new matrix. The caller
// guarantees the column count matches the fitted width.
func (s *Standardizer) transform(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, (x.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return out
}

// inverse maps standardized values back to the original scale, in place.
func (s *Standardizer) inverse(x *mat.Dense) {
	r, c := x.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x.Set(i, j, x.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
}
