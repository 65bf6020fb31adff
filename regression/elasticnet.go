package regression

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// ElasticNetOptions tunes the penalized fit. The zero value of every field
// selects a documented default.
type ElasticNetOptions struct {
	// Alpha is the L1/L2 mixing weight in [0, 1]: 1 is the lasso, 0 the
	// ridge penalty. Grid search over alpha is FitElasticNetGrid.
	Alpha float64

	// NLambda is the penalty path length. Default 60.
	NLambda int

	// LambdaMinRatio sets the smallest path value relative to the largest.
	// Default 1e-3.
	LambdaMinRatio float64

	// Folds is the internal cross-validation fold count used to pick the
	// penalty strength. Default 5, clamped to the sample count.
	Folds int

	// Seed drives the fold assignment. The same seed reproduces the same
	// selection exactly.
	Seed uint64

	// MaxIter bounds the coordinate-descent sweeps per penalty value.
	// Default 1000.
	MaxIter int

	// Tol is the largest coefficient change that counts as converged.
	// Default 1e-7.
	Tol float64

	// GLM controls the outer reweighting loop for non-Gaussian families.
	GLM GLMOptions
}

func (o ElasticNetOptions) nLambda() int {
	if o.NLambda <= 0 {
		return 60
	}
	return o.NLambda
}

func (o ElasticNetOptions) lambdaMinRatio() float64 {
	if o.LambdaMinRatio <= 0 {
		return 1e-3
	}
	return o.LambdaMinRatio
}

func (o ElasticNetOptions) folds(n int) int {
	k := o.Folds
	if k <= 1 {
		k = 5
	}
	if k > n {
		k = n
	}
	return k
}

func (o ElasticNetOptions) maxIter() int {
	if o.MaxIter <= 0 {
		return 1000
	}
	return o.MaxIter
}

func (o ElasticNetOptions) tol() float64 {
	if o.Tol <= 0 {
		return 1e-7
	}
	return o.Tol
}

// FitElasticNet fits a penalized GLM by coordinate descent over a
// descending penalty path, picking the strength by seeded k-fold
// cross-validation with the one-standard-error rule: the most regularized
// penalty whose mean held-out deviance stays within one standard error of
// the minimum. The final model is refitted on the full data at the chosen
// penalty; its Alpha and Lambda fields record the selection.
func FitElasticNet(x mat.Matrix, y []float64, family Family, opts ElasticNetOptions) (glm *GLM, err error) {
	defer errors.Recover(&err, "regression.FitElasticNet")

	if err := validatePenalized(x, y, family, opts.Alpha); err != nil {
		return nil, err
	}
	folds := foldIDs(len(y), opts.folds(len(y)), opts.Seed)
	return fitElasticNetWithFolds(x, y, family, opts, folds)
}

// FitElasticNetGrid searches the mixing grid alpha = 0.0, 0.1, ..., 1.0,
// running the cross-validated path fit at each value with a shared fold
// assignment, and returns the fit whose selected penalty has the lowest
// cross-validated deviance.
func FitElasticNetGrid(x mat.Matrix, y []float64, family Family, opts ElasticNetOptions) (glm *GLM, err error) {
	defer errors.Recover(&err, "regression.FitElasticNetGrid")

	if err := validatePenalized(x, y, family, 0); err != nil {
		return nil, err
	}
	folds := foldIDs(len(y), opts.folds(len(y)), opts.Seed)

	var best *GLM
	bestScore := math.Inf(1)
	for step := 0; step <= 10; step++ {
		o := opts
		o.Alpha = float64(step) / 10
		fit, err := fitElasticNetWithFolds(x, y, family, o, folds)
		if err != nil {
			var convErr *errors.ConvergenceError
			if errors.As(err, &convErr) {
				continue
			}
			return nil, err
		}
		if fit.cvScore < bestScore {
			bestScore = fit.cvScore
			best = fit
		}
	}
	if best == nil {
		return nil, errors.NewConvergenceError("elastic net", 0,
			"no mixing value produced a convergent fit")
	}
	return best, nil
}

func validatePenalized(x mat.Matrix, y []float64, family Family, alpha float64) error {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("regression.FitElasticNet", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewShapeMismatchError("regression.FitElasticNet", n, len(y), 0)
	}
	if alpha < 0 || alpha > 1 {
		return errors.NewValidationError("Alpha", "mixing weight must be in [0, 1]", alpha)
	}
	if !family.Valid() {
		return errors.NewValidationError("family", "unknown family", family)
	}
	return family.checkResponse(y)
}

// fitElasticNetWithFolds runs the path cross-validation under a fixed fold
// assignment and refits at the selected penalty. The penalty path itself is
// computed once on the full data and shared across folds; each fold fit
// standardizes its own training subset.
func fitElasticNetWithFolds(x mat.Matrix, y []float64, family Family, opts ElasticNetOptions, folds []int) (*GLM, error) {
	xd := mat.DenseCopyOf(x)
	_, p := xd.Dims()
	path := lambdaPath(xd, y, opts.Alpha, opts.nLambda(), opts.lambdaMinRatio())

	k := 0
	for _, f := range folds {
		if f+1 > k {
			k = f + 1
		}
	}

	// mean held-out deviance per penalty, one row per fold
	cv := make([][]float64, k)
	for f := 0; f < k; f++ {
		train, test := splitFold(folds, f)
		if len(train) == 0 || len(test) == 0 {
			continue
		}
		weights, intercepts, err := pathFit(pickRows(xd, train), pickValues(y, train), family, opts, path)
		if err != nil {
			return nil, err
		}

		devs := make([]float64, len(path))
		for l := range path {
			total := 0.0
			for _, i := range test {
				eta := intercepts[l]
				for j := 0; j < p; j++ {
					eta += xd.At(i, j) * weights[l][j]
				}
				total += family.devianceResidual(y[i], family.linkInverse(eta))
			}
			devs[l] = total / float64(len(test))
		}
		cv[f] = devs
	}

	li, score := pickOneSE(cv, path)

	weights, intercepts, err := pathFit(xd, y, family, opts, path)
	if err != nil {
		return nil, err
	}

	glm := &GLM{
		Family:    family,
		Intercept: intercepts[li],
		Weights:   mat.NewVecDense(p, weights[li]),
		NFeatures: p,
		Alpha:     opts.Alpha,
		Lambda:    path[li],
		cvScore:   score,
	}
	mu := glm.fittedMeans(xd)
	glm.Deviance = family.deviance(y, mu)
	glm.NullDeviance = nullDeviance(family, y)
	glm.Dispersion = dispersion(family, y, mu, nonzero(weights[li])+1)
	glm.Iterations = len(path)
	glm.SetFitted()
	return glm, nil
}

// pathFit standardizes the given rows, runs the descent along the penalty
// path and maps every solution back to the original predictor scale.
func pathFit(x *mat.Dense, y []float64, family Family, opts ElasticNetOptions, path []float64) ([][]float64, []float64, error) {
	_, p := x.Dims()
	xs, means, scales := standardizeColumns(x)
	betas, intercepts, err := descendPath(xs, y, family, opts, path)
	if err != nil {
		return nil, nil, err
	}
	weights := make([][]float64, len(path))
	for l := range path {
		weights[l] = make([]float64, p)
		for j := 0; j < p; j++ {
			weights[l][j] = betas[l][j] / scales[j]
			intercepts[l] -= betas[l][j] * means[j] / scales[j]
		}
	}
	return weights, intercepts, nil
}

// descendPath runs coordinate descent along the full penalty path with warm
// starts, returning the standardized-scale coefficients and intercept at
// every penalty value. Non-Gaussian families wrap the descent in a
// reweighting loop.
func descendPath(xs *mat.Dense, y []float64, family Family, opts ElasticNetOptions, path []float64) ([][]float64, []float64, error) {
	n, p := xs.Dims()
	beta := make([]float64, p)
	intercept := family.link(meanOf(y))

	betas := make([][]float64, len(path))
	intercepts := make([]float64, len(path))

	w := make([]float64, n)
	z := make([]float64, n)

	for l, lambda := range path {
		outer := 1
		if family != Gaussian {
			outer = opts.GLM.maxIter()
		}

		prevDev := math.Inf(1)
		for it := 0; it < outer; it++ {
			if family == Gaussian {
				for i := range w {
					w[i] = 1
					z[i] = y[i]
				}
			} else {
				for i := 0; i < n; i++ {
					eta := intercept
					for j := 0; j < p; j++ {
						eta += xs.At(i, j) * beta[j]
					}
					mu := family.linkInverse(eta)
					d := family.muEta(eta)
					w[i] = d * d / family.variance(mu)
					z[i] = eta + (y[i]-mu)/d
				}
			}

			var err error
			intercept, err = coordinateDescent(xs, z, w, beta, lambda, opts.Alpha, opts.maxIter(), opts.tol())
			if err != nil {
				return nil, nil, err
			}

			if family == Gaussian {
				break
			}
			dev := 0.0
			for i := 0; i < n; i++ {
				eta := intercept
				for j := 0; j < p; j++ {
					eta += xs.At(i, j) * beta[j]
				}
				dev += family.devianceResidual(y[i], family.linkInverse(eta))
			}
			if math.Abs(dev-prevDev)/(math.Abs(dev)+0.1) < opts.GLM.tol() {
				break
			}
			prevDev = dev
		}

		betas[l] = append([]float64{}, beta...)
		intercepts[l] = intercept
	}
	return betas, intercepts, nil
}

// coordinateDescent minimizes the penalized weighted least-squares
// objective in place, returning the unpenalized intercept. beta is updated
// in place for warm starting.
func coordinateDescent(xs *mat.Dense, z, w []float64, beta []float64, lambda, alpha float64, maxIter int, tol float64) (float64, error) {
	n, p := xs.Dims()

	sumW := 0.0
	for i := range w {
		sumW += w[i]
	}
	if sumW <= 0 {
		return 0, errors.NewConvergenceError("coordinate descent", 0, "working weights vanished")
	}

	// residual r holds z - intercept - xs*beta
	intercept := 0.0
	r := make([]float64, n)
	for i := 0; i < n; i++ {
		e := 0.0
		for j := 0; j < p; j++ {
			e += xs.At(i, j) * beta[j]
		}
		r[i] = z[i] - e
	}
	{
		num := 0.0
		for i := range r {
			num += w[i] * r[i]
		}
		intercept = num / sumW
		for i := range r {
			r[i] -= intercept
		}
	}

	l1 := lambda * alpha
	l2 := lambda * (1 - alpha)
	nf := float64(n)

	for iter := 0; iter < maxIter; iter++ {
		maxDelta := 0.0

		for j := 0; j < p; j++ {
			num := 0.0
			den := 0.0
			for i := 0; i < n; i++ {
				xij := xs.At(i, j)
				num += w[i] * xij * (r[i] + xij*beta[j])
				den += w[i] * xij * xij
			}
			num /= nf
			den /= nf

			updated := softThreshold(num, l1) / (den + l2)
			if den+l2 <= 0 {
				updated = 0
			}
			if delta := updated - beta[j]; delta != 0 {
				for i := 0; i < n; i++ {
					r[i] -= xs.At(i, j) * delta
				}
				if math.Abs(delta) > maxDelta {
					maxDelta = math.Abs(delta)
				}
				beta[j] = updated
			}
		}

		// re-center the intercept against the current residual
		num := 0.0
		for i := range r {
			num += w[i] * r[i]
		}
		shift := num / sumW
		if shift != 0 {
			intercept += shift
			for i := range r {
				r[i] -= shift
			}
			if math.Abs(shift) > maxDelta {
				maxDelta = math.Abs(shift)
			}
		}

		if err := errors.CheckNumericalStability("coordinate descent", beta, iter); err != nil {
			return 0, errors.NewConvergenceError("coordinate descent", iter,
				"coefficients diverged to non-finite values")
		}
		if maxDelta < tol {
			return intercept, nil
		}
	}
	return intercept, nil
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// lambdaPath builds the descending log-spaced penalty path from the
// standardized gradient at the null model. The largest value is the
// smallest penalty that zeroes every coefficient; a pure ridge mix borrows
// the usual small surrogate for the division.
func lambdaPath(x *mat.Dense, y []float64, alpha float64, nLambda int, minRatio float64) []float64 {
	xs, _, _ := standardizeColumns(x)
	n, p := xs.Dims()

	yc := make([]float64, n)
	mean := meanOf(y)
	for i := range y {
		yc[i] = y[i] - mean
	}

	maxDot := 0.0
	for j := 0; j < p; j++ {
		dot := 0.0
		for i := 0; i < n; i++ {
			dot += xs.At(i, j) * yc[i]
		}
		if d := math.Abs(dot) / float64(n); d > maxDot {
			maxDot = d
		}
	}
	if maxDot <= 0 {
		maxDot = 1e-3
	}

	a := alpha
	if a < 1e-3 {
		a = 1e-3
	}
	lambdaMax := maxDot / a
	lambdaMin := lambdaMax * minRatio

	path := make([]float64, nLambda)
	if nLambda == 1 {
		path[0] = lambdaMax
		return path
	}
	step := (math.Log(lambdaMax) - math.Log(lambdaMin)) / float64(nLambda-1)
	for l := 0; l < nLambda; l++ {
		path[l] = math.Exp(math.Log(lambdaMax) - float64(l)*step)
	}
	return path
}

// pickOneSE selects the penalty index by the one-standard-error rule over
// the per-fold mean deviances: the largest penalty whose mean stays within
// one standard error of the overall minimum. It returns the chosen index
// and its mean cross-validated deviance.
func pickOneSE(cv [][]float64, path []float64) (int, float64) {
	nl := len(path)
	mean := make([]float64, nl)
	se := make([]float64, nl)

	for l := 0; l < nl; l++ {
		vals := make([]float64, 0, len(cv))
		for f := range cv {
			if cv[f] != nil {
				vals = append(vals, cv[f][l])
			}
		}
		if len(vals) == 0 {
			mean[l] = math.Inf(1)
			continue
		}
		m := meanOf(vals)
		mean[l] = m
		if len(vals) > 1 {
			ss := 0.0
			for _, v := range vals {
				ss += (v - m) * (v - m)
			}
			se[l] = math.Sqrt(ss/float64(len(vals)-1)) / math.Sqrt(float64(len(vals)))
		}
	}

	best := 0
	for l := 1; l < nl; l++ {
		if mean[l] < mean[best] {
			best = l
		}
	}

	// path descends, so the first index within the band is the most
	// regularized choice
	limit := mean[best] + se[best]
	for l := 0; l <= best; l++ {
		if mean[l] <= limit {
			return l, mean[l]
		}
	}
	return best, mean[best]
}

// foldIDs assigns each sample a fold by seeded shuffle.
func foldIDs(n, k int, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	ids := make([]int, n)
	for pos, i := range perm {
		ids[i] = pos % k
	}
	return ids
}

func splitFold(folds []int, f int) (train, test []int) {
	for i, id := range folds {
		if id == f {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}
	return train, test
}

// standardizeColumns centers and scales each column to unit variance,
// returning the standardized copy plus the factors. Constant columns keep
// scale 1 so they contribute nothing.
func standardizeColumns(x mat.Matrix) (*mat.Dense, []float64, []float64) {
	n, p := x.Dims()
	means := make([]float64, p)
	scales := make([]float64, p)
	out := mat.NewDense(n, p, nil)

	for j := 0; j < p; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		m := sum / float64(n)
		ss := 0.0
		for i := 0; i < n; i++ {
			d := x.At(i, j) - m
			ss += d * d
		}
		s := math.Sqrt(ss / float64(n))
		if s < 1e-8 || math.IsNaN(s) {
			s = 1
		}
		means[j] = m
		scales[j] = s
		for i := 0; i < n; i++ {
			out.Set(i, j, (x.At(i, j)-m)/s)
		}
	}
	return out, means, scales
}

func pickRows(x *mat.Dense, rows []int) *mat.Dense {
	_, p := x.Dims()
	out := mat.NewDense(len(rows), p, nil)
	for i, r := range rows {
		for j := 0; j < p; j++ {
			out.Set(i, j, x.At(r, j))
		}
	}
	return out
}

func pickValues(v []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = v[r]
	}
	return out
}

func meanOf(v []float64) float64 {
	total := 0.0
	for _, x := range v {
		total += x
	}
	return total / float64(len(v))
}

func nonzero(v []float64) int {
	count := 0
	for _, x := range v {
		if x != 0 {
			count++
		}
	}
	return count
}
