package regression

import (
	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// FitStepwise grows a GLM by forward selection. Starting from the
// intercept-only model, each step fits every one-feature extension and adds
// the candidate with the lowest AIC; selection stops when no candidate
// improves on the current score. The returned model records the chosen
// columns in Selected, so Predict accepts full-width rows.
func FitStepwise(x mat.Matrix, y []float64, family Family, opts GLMOptions) (glm *GLM, err error) {
	defer errors.Recover(&err, "regression.FitStepwise")

	n, p := x.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError("regression.FitStepwise", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return nil, errors.NewShapeMismatchError("regression.FitStepwise", n, len(y), 0)
	}
	if !family.Valid() {
		return nil, errors.NewValidationError("family", "unknown family", family)
	}
	if err := family.checkResponse(y); err != nil {
		return nil, err
	}

	selected := []int{}
	coef, dev, _, err := irls(x, y, selected, family, opts)
	if err != nil {
		return nil, err
	}
	best := aic(family, y, dev, 1)
	bestCoef, bestDev := coef, dev

	remaining := make([]int, p)
	for j := range remaining {
		remaining[j] = j
	}

	for len(remaining) > 0 && len(selected)+2 < n {
		stepBest := best
		stepIdx := -1
		var stepCoef []float64
		var stepDev float64

		for ri, c := range remaining {
			trial := append(append([]int{}, selected...), c)
			coef, dev, _, err := irls(x, y, trial, family, opts)
			if err != nil {
				// a candidate that cannot be fitted is skipped, not fatal
				continue
			}
			score := aic(family, y, dev, len(trial)+1)
			if score < stepBest {
				stepBest = score
				stepIdx = ri
				stepCoef = coef
				stepDev = dev
			}
		}

		if stepIdx < 0 {
			break
		}
		selected = append(selected, remaining[stepIdx])
		remaining = append(remaining[:stepIdx], remaining[stepIdx+1:]...)
		best = stepBest
		bestCoef, bestDev = stepCoef, stepDev
	}

	glm = &GLM{
		Family:    family,
		Intercept: bestCoef[0],
		NFeatures: p,
		Selected:  selected,
		Deviance:  bestDev,
		AIC:       best,
	}
	if len(selected) > 0 {
		glm.Weights = mat.NewVecDense(len(selected), bestCoef[1:])
	}

	mu := glm.fittedMeans(x)
	glm.Dispersion = dispersion(family, y, mu, len(selected)+1)
	glm.NullDeviance = nullDeviance(family, y)
	glm.SetFitted()
	return glm, nil
}
