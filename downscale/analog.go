package downscale

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/core/parallel"
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/prepare"
)

// AnalogModel is the trained artifact of the analog method: the prepared
// training patterns and their observed outcomes. Prediction looks up the
// nearest training patterns in Euclidean distance and aggregates their
// outcomes, so the model is joint across sites by construction.
type AnalogModel struct {
	X *mat.Dense // training features in the recorded feature space
	Y *mat.Dense // training outcomes, one column per output

	Count       int
	Aggregation Aggregation
}

// trainAnalog stores copies of the prepared matrices. There is nothing to
// estimate; the training data is the model.
func trainAnalog(data *prepare.Data, cfg AnalogConfig) *AnalogModel {
	return &AnalogModel{
		X:           mat.DenseCopyOf(data.X),
		Y:           mat.DenseCopyOf(data.Y),
		Count:       cfg.count(),
		Aggregation: cfg.Aggregation,
	}
}

func (m *AnalogModel) predict(x *mat.Dense, info ModelInfo, rng *rand.Rand) (*mat.Dense, error) {
	rows, cols := x.Dims()
	trainRows, trainCols := m.X.Dims()
	if cols != trainCols {
		return nil, errors.NewShapeMismatchError("AnalogModel.predict", trainCols, cols, 1)
	}
	if !m.Aggregation.Valid() {
		return nil, errors.NewValidationError("Aggregation", "unknown aggregation", m.Aggregation)
	}

	_, outputs := m.Y.Dims()
	out := mat.NewDense(rows, outputs, nil)
	k := min(m.Count, trainRows)
	if k < 1 {
		k = 1
	}

	if info.Simulate {
		// sequential so the draw order is fixed by the seed
		for i := 0; i < rows; i++ {
			m.predictRow(x, i, k, out, rng)
		}
		return out, nil
	}

	parallel.ParallelizeWithThreshold(rows, 32, func(start, end int) {
		for i := start; i < end; i++ {
			m.predictRow(x, i, k, out, nil)
		}
	})
	return out, nil
}

// predictRow fills one output row. A non-nil rng draws uniformly among the k
// analogs instead of aggregating them.
func (m *AnalogModel) predictRow(x *mat.Dense, row, k int, out *mat.Dense, rng *rand.Rand) {
	_, outputs := m.Y.Dims()
	if rowHasNaN(x, row) {
		for c := 0; c < outputs; c++ {
			out.Set(row, c, math.NaN())
		}
		return
	}

	nearest := m.nearest(x, row, k)
	if rng != nil {
		pick := nearest[rng.IntN(len(nearest))]
		for c := 0; c < outputs; c++ {
			out.Set(row, c, m.Y.At(pick, c))
		}
		return
	}

	switch m.Aggregation {
	case AnalogClosest:
		for c := 0; c < outputs; c++ {
			out.Set(row, c, m.Y.At(nearest[0], c))
		}
	case AnalogMean:
		for c := 0; c < outputs; c++ {
			sum := 0.0
			for _, t := range nearest {
				sum += m.Y.At(t, c)
			}
			out.Set(row, c, sum/float64(len(nearest)))
		}
	case AnalogMedian:
		vals := make([]float64, len(nearest))
		for c := 0; c < outputs; c++ {
			for i, t := range nearest {
				vals[i] = m.Y.At(t, c)
			}
			out.Set(row, c, median(vals))
		}
	}
}

// nearest returns the indices of the k training rows closest to row of x in
// squared Euclidean distance, nearest first.
func (m *AnalogModel) nearest(x *mat.Dense, row, k int) []int {
	trainRows, cols := m.X.Dims()
	dist := make([]float64, trainRows)
	for t := 0; t < trainRows; t++ {
		d := 0.0
		for j := 0; j < cols; j++ {
			diff := x.At(row, j) - m.X.At(t, j)
			d += diff * diff
		}
		dist[t] = d
	}

	idx := make([]int, trainRows)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
	return idx[:k]
}

// median of v, averaging the middle pair on even lengths. v is sorted in
// place.
func median(v []float64) float64 {
	sort.Float64s(v)
	mid := len(v) / 2
	if len(v)%2 == 1 {
		return v[mid]
	}
	return (v[mid-1] + v[mid]) / 2
}

func rowHasNaN(x *mat.Dense, row int) bool {
	_, cols := x.Dims()
	for j := 0; j < cols; j++ {
		if math.IsNaN(x.At(row, j)) {
			return true
		}
	}
	return false
}
