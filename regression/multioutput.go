package regression

import (
	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// MultiOutput is a fitted joint linear model over several output columns:
// one coefficient column per output plus per-output intercepts. Both the
// pseudo-inverse and the group-lasso fits produce this artifact.
type MultiOutput struct {
	Weights    *mat.Dense // features x outputs
	Intercepts []float64
	NFeatures  int
	NOutputs   int

	// Lambda records the group penalty when the fit was penalized.
	Lambda float64

	// Dispersions holds the per-output residual variance estimates.
	Dispersions []float64

	fitted bool
}

// IsFitted reports whether the model went through a successful fit.
func (m *MultiOutput) IsFitted() bool {
	return m != nil && m.fitted
}

// SetFitted marks the model usable after fitting or decoding.
func (m *MultiOutput) SetFitted() { m.fitted = true }

// Predict returns one output column per fitted output for each row of x.
func (m *MultiOutput) Predict(x mat.Matrix) (*mat.Dense, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MultiOutput", "Predict")
	}
	n, p := x.Dims()
	if p != m.NFeatures {
		return nil, errors.NewShapeMismatchError("MultiOutput.Predict", m.NFeatures, p, 1)
	}

	out := mat.NewDense(n, m.NOutputs, nil)
	out.Mul(x, m.Weights)
	for i := 0; i < n; i++ {
		for k := 0; k < m.NOutputs; k++ {
			out.Set(i, k, out.At(i, k)+m.Intercepts[k])
		}
	}
	return out, nil
}

// FitMP fits all outputs jointly by Moore-Penrose least squares on the
// intercept-augmented design: B = pinv([1 X]) Y. The solution matches
// ordinary least squares whenever the design has full column rank and
// remains defined otherwise.
func FitMP(x, y mat.Matrix) (m *MultiOutput, err error) {
	defer errors.Recover(&err, "regression.FitMP")

	n, p := x.Dims()
	yn, outputs := y.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError("regression.FitMP", "empty data", errors.ErrEmptyData)
	}
	if yn != n {
		return nil, errors.NewShapeMismatchError("regression.FitMP", n, yn, 0)
	}

	design := augment(x, nil)
	pinv, err := PseudoInverse(design)
	if err != nil {
		return nil, err
	}

	var coef mat.Dense // (p+1) x outputs
	coef.Mul(pinv, y)

	m = &MultiOutput{
		Weights:     mat.NewDense(p, outputs, nil),
		Intercepts:  make([]float64, outputs),
		NFeatures:   p,
		NOutputs:    outputs,
		Dispersions: make([]float64, outputs),
	}
	for k := 0; k < outputs; k++ {
		m.Intercepts[k] = coef.At(0, k)
		for j := 0; j < p; j++ {
			m.Weights.Set(j, k, coef.At(j+1, k))
		}
	}

	m.SetFitted()
	fitted, err := m.Predict(x)
	if err != nil {
		return nil, err
	}
	rank := p + 1
	for k := 0; k < outputs; k++ {
		rss := 0.0
		for i := 0; i < n; i++ {
			r := y.At(i, k) - fitted.At(i, k)
			rss += r * r
		}
		if n > rank {
			m.Dispersions[k] = rss / float64(n-rank)
		} else {
			m.Dispersions[k] = 0
		}
	}
	return m, nil
}
