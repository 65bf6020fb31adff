package regression

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/statclim/downgo/pkg/errors"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// linearDesign builds an n x p design with standard normal entries.
func linearDesign(n, p int, rng *rand.Rand) *mat.Dense {
	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	return x
}

func TestFitGLMGaussianRecoversCoefficients(t *testing.T) {
	rng := newRand(7)
	n := 200
	x := linearDesign(n, 2, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = 2.0 + 3.0*x.At(i, 0) - 1.0*x.At(i, 1) + 0.05*rng.NormFloat64()
	}

	glm, err := FitGLM(x, y, Gaussian, GLMOptions{})
	if err != nil {
		t.Fatalf("FitGLM failed: %v", err)
	}

	if math.Abs(glm.Intercept-2.0) > 0.05 {
		t.Errorf("intercept = %v, want 2.0", glm.Intercept)
	}
	if math.Abs(glm.Weights.AtVec(0)-3.0) > 0.05 {
		t.Errorf("weight 0 = %v, want 3.0", glm.Weights.AtVec(0))
	}
	if math.Abs(glm.Weights.AtVec(1)+1.0) > 0.05 {
		t.Errorf("weight 1 = %v, want -1.0", glm.Weights.AtVec(1))
	}
	if glm.Deviance >= glm.NullDeviance {
		t.Errorf("deviance %v should be below null deviance %v", glm.Deviance, glm.NullDeviance)
	}
	if glm.Dispersion <= 0 || glm.Dispersion > 0.01 {
		t.Errorf("dispersion = %v, want a small residual variance", glm.Dispersion)
	}
}

func TestFitGLMBinomialProbabilityScale(t *testing.T) {
	rng := newRand(11)
	n := 500
	x := linearDesign(n, 2, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		eta := -0.5 + 2.0*x.At(i, 0)
		p := 1 / (1 + math.Exp(-eta))
		if rng.Float64() < p {
			y[i] = 1
		}
	}

	glm, err := FitGLM(x, y, Binomial, GLMOptions{})
	if err != nil {
		t.Fatalf("FitGLM failed: %v", err)
	}

	if glm.Weights.AtVec(0) < 1.0 {
		t.Errorf("weight 0 = %v, want clearly positive near 2", glm.Weights.AtVec(0))
	}
	if math.Abs(glm.Weights.AtVec(1)) > 0.5 {
		t.Errorf("weight 1 = %v, want near zero", glm.Weights.AtVec(1))
	}

	pred, err := glm.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < n; i++ {
		p := pred.AtVec(i)
		if p <= 0 || p >= 1 {
			t.Fatalf("prediction %d = %v, binomial output must be a probability", i, p)
		}
	}
	if glm.Dispersion != 1 {
		t.Errorf("binomial dispersion = %v, want fixed 1", glm.Dispersion)
	}
}

func TestFitGLMPoissonLogLink(t *testing.T) {
	rng := newRand(13)
	n := 400
	x := linearDesign(n, 1, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		mu := math.Exp(0.5 + 0.8*x.At(i, 0))
		pois := distuv.Poisson{Lambda: mu, Src: rng}
		y[i] = pois.Rand()
	}

	glm, err := FitGLM(x, y, Poisson, GLMOptions{})
	if err != nil {
		t.Fatalf("FitGLM failed: %v", err)
	}
	if math.Abs(glm.Intercept-0.5) > 0.15 {
		t.Errorf("intercept = %v, want near 0.5", glm.Intercept)
	}
	if math.Abs(glm.Weights.AtVec(0)-0.8) > 0.15 {
		t.Errorf("weight = %v, want near 0.8", glm.Weights.AtVec(0))
	}

	pred, err := glm.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if pred.AtVec(i) <= 0 {
			t.Fatalf("prediction %d = %v, log link output must stay positive", i, pred.AtVec(i))
		}
	}
}

func TestFitGLMGammaDispersion(t *testing.T) {
	rng := newRand(17)
	n := 600
	shape := 4.0 // true dispersion 1/shape = 0.25
	x := linearDesign(n, 1, rng)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		mu := math.Exp(1.0 + 0.5*x.At(i, 0))
		gamma := distuv.Gamma{Alpha: shape, Beta: shape / mu, Src: rng}
		y[i] = gamma.Rand()
	}

	glm, err := FitGLM(x, y, Gamma, GLMOptions{})
	if err != nil {
		t.Fatalf("FitGLM failed: %v", err)
	}
	if math.Abs(glm.Intercept-1.0) > 0.2 {
		t.Errorf("intercept = %v, want near 1.0", glm.Intercept)
	}
	if math.Abs(glm.Weights.AtVec(0)-0.5) > 0.2 {
		t.Errorf("weight = %v, want near 0.5", glm.Weights.AtVec(0))
	}
	if math.Abs(glm.Dispersion-0.25) > 0.1 {
		t.Errorf("dispersion = %v, want near 0.25", glm.Dispersion)
	}
}

func TestFitGLMValidation(t *testing.T) {
	rng := newRand(3)
	x := linearDesign(10, 2, rng)
	y := make([]float64, 10)

	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "response length mismatch",
			run: func() error {
				_, err := FitGLM(x, y[:5], Gaussian, GLMOptions{})
				return err
			},
		},
		{
			name: "unknown family",
			run: func() error {
				_, err := FitGLM(x, y, Family(42), GLMOptions{})
				return err
			},
		},
		{
			name: "binomial response outside 0/1",
			run: func() error {
				bad := append([]float64{}, y...)
				bad[3] = 2
				_, err := FitGLM(x, bad, Binomial, GLMOptions{})
				return err
			},
		},
		{
			name: "gamma response not positive",
			run: func() error {
				bad := make([]float64, 10)
				for i := range bad {
					bad[i] = 1
				}
				bad[4] = -0.5
				_, err := FitGLM(x, bad, Gamma, GLMOptions{})
				return err
			},
		},
		{
			name: "more features than samples",
			run: func() error {
				wide := linearDesign(3, 5, rng)
				_, err := FitGLM(wide, []float64{1, 2, 3}, Gaussian, GLMOptions{})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGLMPredictChecks(t *testing.T) {
	var unfitted GLM
	if _, err := unfitted.Predict(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected NotFittedError")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %T", err)
		}
	}

	rng := newRand(5)
	x := linearDesign(30, 2, rng)
	y := make([]float64, 30)
	for i := range y {
		y[i] = x.At(i, 0) + 0.1*rng.NormFloat64()
	}
	glm, err := FitGLM(x, y, Gaussian, GLMOptions{})
	if err != nil {
		t.Fatalf("FitGLM failed: %v", err)
	}

	if _, err := glm.Predict(mat.NewDense(5, 3, nil)); err == nil {
		t.Error("expected error for feature width mismatch")
	} else {
		var shapeErr *errors.ShapeMismatchError
		if !errors.As(err, &shapeErr) {
			t.Errorf("expected ShapeMismatchError, got %T", err)
		}
	}
}

func TestFamilyStrings(t *testing.T) {
	tests := []struct {
		family Family
		want   string
	}{
		{Gaussian, "gaussian"},
		{Binomial, "binomial"},
		{Gamma, "gamma"},
		{Poisson, "poisson"},
		{Family(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.family.String(); got != tt.want {
			t.Errorf("Family(%d).String() = %q, want %q", int(tt.family), got, tt.want)
		}
	}
	if Family(99).Valid() {
		t.Error("Family(99) must not be valid")
	}
}

func TestFamilyDevianceZeroAtPerfectFit(t *testing.T) {
	tests := []struct {
		family Family
		y      float64
	}{
		{Gaussian, 1.3},
		{Binomial, 1},
		{Binomial, 0},
		{Gamma, 2.5},
		{Poisson, 3},
	}
	for _, tt := range tests {
		if d := tt.family.devianceResidual(tt.y, tt.y); math.Abs(d) > 1e-6 {
			t.Errorf("%v deviance residual at mu=y=%v is %v, want ~0", tt.family, tt.y, d)
		}
	}
}
