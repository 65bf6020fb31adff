package regression

import (
	"math"
	"testing"
)

func TestStepwiseSelectsInformativeFeatures(t *testing.T) {
	rng := newRand(23)
	n := 150
	x := linearDesign(n, 5, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = 1.0 + 2.0*x.At(i, 1) - 3.0*x.At(i, 3) + 0.1*rng.NormFloat64()
	}

	glm, err := FitStepwise(x, y, Gaussian, GLMOptions{})
	if err != nil {
		t.Fatalf("FitStepwise failed: %v", err)
	}

	has := func(c int) bool {
		for _, s := range glm.Selected {
			if s == c {
				return true
			}
		}
		return false
	}
	if !has(1) || !has(3) {
		t.Fatalf("Selected = %v, must contain the informative columns 1 and 3", glm.Selected)
	}
	if len(glm.Selected) > 4 {
		t.Errorf("Selected = %v, selection admitted every noise column", glm.Selected)
	}

	// strongest predictor enters first
	if glm.Selected[0] != 3 {
		t.Errorf("first selected = %d, want the largest-effect column 3", glm.Selected[0])
	}

	pred, err := glm.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	rmse := 0.0
	for i := 0; i < n; i++ {
		d := pred.AtVec(i) - y[i]
		rmse += d * d
	}
	rmse = math.Sqrt(rmse / float64(n))
	if rmse > 0.2 {
		t.Errorf("in-sample rmse = %v, want close to the noise level", rmse)
	}
}

func TestStepwiseConstantResponseStaysInterceptOnly(t *testing.T) {
	rng := newRand(29)
	n := 60
	x := linearDesign(n, 4, rng)
	y := make([]float64, n)
	for i := range y {
		y[i] = 5.0
	}

	glm, err := FitStepwise(x, y, Gaussian, GLMOptions{})
	if err != nil {
		t.Fatalf("FitStepwise failed: %v", err)
	}
	if len(glm.Selected) != 0 {
		t.Errorf("Selected = %v, constant response must keep the intercept-only model", glm.Selected)
	}
	if math.Abs(glm.Intercept-5.0) > 1e-8 {
		t.Errorf("intercept = %v, want 5.0", glm.Intercept)
	}

	pred, err := glm.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if math.Abs(pred.AtVec(i)-5.0) > 1e-8 {
			t.Fatalf("prediction %d = %v, want 5.0", i, pred.AtVec(i))
		}
	}
}

func TestStepwisePredictAcceptsFullWidth(t *testing.T) {
	rng := newRand(31)
	n := 100
	x := linearDesign(n, 6, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = 4.0*x.At(i, 2) + 0.1*rng.NormFloat64()
	}

	glm, err := FitStepwise(x, y, Gaussian, GLMOptions{})
	if err != nil {
		t.Fatalf("FitStepwise failed: %v", err)
	}
	if glm.NFeatures != 6 {
		t.Errorf("NFeatures = %d, want the full input width 6", glm.NFeatures)
	}

	// full-width rows work even when only a subset was selected
	if _, err := glm.Predict(linearDesign(5, 6, rng)); err != nil {
		t.Errorf("Predict on full-width rows failed: %v", err)
	}
	if _, err := glm.Predict(linearDesign(5, 2, rng)); err == nil {
		t.Error("expected error for subset-width rows")
	}
}

func TestStepwiseBinomial(t *testing.T) {
	rng := newRand(37)
	n := 300
	x := linearDesign(n, 4, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		eta := 2.5 * x.At(i, 0)
		if rng.Float64() < 1/(1+math.Exp(-eta)) {
			y[i] = 1
		}
	}

	glm, err := FitStepwise(x, y, Binomial, GLMOptions{})
	if err != nil {
		t.Fatalf("FitStepwise failed: %v", err)
	}
	if len(glm.Selected) == 0 || glm.Selected[0] != 0 {
		t.Errorf("Selected = %v, want column 0 first", glm.Selected)
	}

	pred, err := glm.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if p := pred.AtVec(i); p <= 0 || p >= 1 {
			t.Fatalf("prediction %d = %v, want probability scale", i, p)
		}
	}
}
