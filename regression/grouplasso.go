package regression

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// GroupLassoOptions tunes the joint multi-output penalized fit. Zero
// values select the same defaults as ElasticNetOptions.
type GroupLassoOptions struct {
	NLambda        int
	LambdaMinRatio float64
	Folds          int
	Seed           uint64
	MaxIter        int
	Tol            float64
}

func (o GroupLassoOptions) asElasticNet() ElasticNetOptions {
	return ElasticNetOptions{
		NLambda:        o.NLambda,
		LambdaMinRatio: o.LambdaMinRatio,
		Folds:          o.Folds,
		Seed:           o.Seed,
		MaxIter:        o.MaxIter,
		Tol:            o.Tol,
	}
}

// FitGroupLasso fits all output columns jointly with a grouped penalty:
// each feature's coefficient row (one entry per output) is shrunk as a
// block, so a feature either contributes to every output or to none. The
// fit is Gaussian least squares by block coordinate descent; the penalty
// strength is selected by seeded k-fold cross-validation with the
// one-standard-error rule, then the model is refitted on the full data.
func FitGroupLasso(x, y mat.Matrix, opts GroupLassoOptions) (m *MultiOutput, err error) {
	defer errors.Recover(&err, "regression.FitGroupLasso")

	n, p := x.Dims()
	yn, outputs := y.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError("regression.FitGroupLasso", "empty data", errors.ErrEmptyData)
	}
	if yn != n {
		return nil, errors.NewShapeMismatchError("regression.FitGroupLasso", n, yn, 0)
	}
	if outputs < 2 {
		return nil, errors.NewValueError("regression.FitGroupLasso",
			"grouped fitting needs at least two output columns")
	}

	eo := opts.asElasticNet()
	xd := mat.DenseCopyOf(x)
	yd := mat.DenseCopyOf(y)
	path := groupLambdaPath(xd, yd, eo.nLambda(), eo.lambdaMinRatio())
	folds := foldIDs(n, eo.folds(n), opts.Seed)

	k := 0
	for _, f := range folds {
		if f+1 > k {
			k = f + 1
		}
	}

	cv := make([][]float64, k)
	for f := 0; f < k; f++ {
		train, test := splitFold(folds, f)
		if len(train) == 0 || len(test) == 0 {
			continue
		}
		weights, intercepts, err := groupPathFit(pickRows(xd, train), pickRows(yd, train), eo, path)
		if err != nil {
			return nil, err
		}

		devs := make([]float64, len(path))
		for l := range path {
			total := 0.0
			for _, i := range test {
				for c := 0; c < outputs; c++ {
					pred := intercepts[l][c]
					for j := 0; j < p; j++ {
						pred += xd.At(i, j) * weights[l].At(j, c)
					}
					r := yd.At(i, c) - pred
					total += r * r
				}
			}
			devs[l] = total / float64(len(test)*outputs)
		}
		cv[f] = devs
	}

	li, _ := pickOneSE(cv, path)

	weights, intercepts, err := groupPathFit(xd, yd, eo, path)
	if err != nil {
		return nil, err
	}

	m = &MultiOutput{
		Weights:     weights[li],
		Intercepts:  intercepts[li],
		NFeatures:   p,
		NOutputs:    outputs,
		Lambda:      path[li],
		Dispersions: make([]float64, outputs),
	}
	m.SetFitted()

	fitted, err := m.Predict(xd)
	if err != nil {
		return nil, err
	}
	df := 0
	for j := 0; j < p; j++ {
		for c := 0; c < outputs; c++ {
			if m.Weights.At(j, c) != 0 {
				df++
				break
			}
		}
	}
	for c := 0; c < outputs; c++ {
		rss := 0.0
		for i := 0; i < n; i++ {
			r := yd.At(i, c) - fitted.At(i, c)
			rss += r * r
		}
		if n > df+1 {
			m.Dispersions[c] = rss / float64(n-df-1)
		}
	}
	return m, nil
}

// groupPathFit standardizes the rows, runs block coordinate descent along
// the path with warm starts and returns original-scale coefficients.
func groupPathFit(x, y *mat.Dense, opts ElasticNetOptions, path []float64) ([]*mat.Dense, [][]float64, error) {
	n, p := x.Dims()
	_, outputs := y.Dims()
	xs, means, scales := standardizeColumns(x)

	// center each output column
	yMeans := make([]float64, outputs)
	yc := mat.NewDense(n, outputs, nil)
	for c := 0; c < outputs; c++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += y.At(i, c)
		}
		yMeans[c] = sum / float64(n)
		for i := 0; i < n; i++ {
			yc.Set(i, c, y.At(i, c)-yMeans[c])
		}
	}

	beta := mat.NewDense(p, outputs, nil)
	resid := mat.DenseCopyOf(yc)

	weights := make([]*mat.Dense, len(path))
	intercepts := make([][]float64, len(path))

	for l, lambda := range path {
		if err := blockDescent(xs, resid, beta, lambda, opts.maxIter(), opts.tol()); err != nil {
			return nil, nil, err
		}

		w := mat.NewDense(p, outputs, nil)
		b0 := append([]float64{}, yMeans...)
		for j := 0; j < p; j++ {
			for c := 0; c < outputs; c++ {
				w.Set(j, c, beta.At(j, c)/scales[j])
				b0[c] -= beta.At(j, c) * means[j] / scales[j]
			}
		}
		weights[l] = w
		intercepts[l] = b0
	}
	return weights, intercepts, nil
}

// blockDescent sweeps feature blocks until the largest coefficient change
// drops under tol. resid must hold yc - xs*beta on entry and holds the
// updated residual on return; beta is updated in place.
func blockDescent(xs, resid, beta *mat.Dense, lambda float64, maxIter int, tol float64) error {
	n, p := xs.Dims()
	_, outputs := resid.Dims()
	nf := float64(n)

	u := make([]float64, outputs)
	for iter := 0; iter < maxIter; iter++ {
		maxDelta := 0.0

		for j := 0; j < p; j++ {
			// block gradient with feature j added back
			den := 0.0
			for c := range u {
				u[c] = 0
			}
			for i := 0; i < n; i++ {
				xij := xs.At(i, j)
				den += xij * xij
				for c := 0; c < outputs; c++ {
					u[c] += xij * (resid.At(i, c) + xij*beta.At(j, c))
				}
			}
			den /= nf
			norm := 0.0
			for c := range u {
				u[c] /= nf
				norm += u[c] * u[c]
			}
			norm = math.Sqrt(norm)

			// block soft threshold
			shrink := 0.0
			if norm > lambda && den > 0 {
				shrink = (1 - lambda/norm) / den
			}
			for c := 0; c < outputs; c++ {
				updated := u[c] * shrink
				delta := updated - beta.At(j, c)
				if delta != 0 {
					for i := 0; i < n; i++ {
						resid.Set(i, c, resid.At(i, c)-xs.At(i, j)*delta)
					}
					beta.Set(j, c, updated)
					if math.Abs(delta) > maxDelta {
						maxDelta = math.Abs(delta)
					}
				}
			}
		}

		if err := errors.CheckMatrix("group lasso coefficients", beta, p, outputs, iter); err != nil {
			return errors.NewConvergenceError("group lasso", iter,
				"coefficients diverged to non-finite values")
		}
		if maxDelta < tol {
			return nil
		}
	}
	return nil
}

// groupLambdaPath derives the penalty path from the block gradient norms at
// the null model.
func groupLambdaPath(x, y *mat.Dense, nLambda int, minRatio float64) []float64 {
	xs, _, _ := standardizeColumns(x)
	n, p := xs.Dims()
	_, outputs := y.Dims()

	yMeans := make([]float64, outputs)
	for c := 0; c < outputs; c++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += y.At(i, c)
		}
		yMeans[c] = sum / float64(n)
	}

	maxNorm := 0.0
	for j := 0; j < p; j++ {
		norm := 0.0
		for c := 0; c < outputs; c++ {
			dot := 0.0
			for i := 0; i < n; i++ {
				dot += xs.At(i, j) * (y.At(i, c) - yMeans[c])
			}
			dot /= float64(n)
			norm += dot * dot
		}
		if norm = math.Sqrt(norm); norm > maxNorm {
			maxNorm = norm
		}
	}
	if maxNorm <= 0 {
		maxNorm = 1e-3
	}

	lambdaMin := maxNorm * minRatio
	path := make([]float64, nLambda)
	if nLambda == 1 {
		path[0] = maxNorm
		return path
	}
	step := (math.Log(maxNorm) - math.Log(lambdaMin)) / float64(nLambda-1)
	for l := 0; l < nLambda; l++ {
		path[l] = math.Exp(math.Log(maxNorm) - float64(l)*step)
	}
	return path
}
