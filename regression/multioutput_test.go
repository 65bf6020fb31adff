package regression

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

func TestFitMPRecoversExactCoefficients(t *testing.T) {
	rng := newRand(71)
	n := 50
	x := linearDesign(n, 3, rng)

	// two outputs with known coefficients, no noise
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, 1.0+2.0*x.At(i, 0)-1.0*x.At(i, 2))
		y.Set(i, 1, -0.5+0.5*x.At(i, 1))
	}

	m, err := FitMP(x, y)
	if err != nil {
		t.Fatalf("FitMP failed: %v", err)
	}

	want := [][]float64{
		{2.0, 0.0},
		{0.0, 0.5},
		{-1.0, 0.0},
	}
	for j := 0; j < 3; j++ {
		for k := 0; k < 2; k++ {
			if math.Abs(m.Weights.At(j, k)-want[j][k]) > 1e-8 {
				t.Errorf("weight (%d,%d) = %v, want %v", j, k, m.Weights.At(j, k), want[j][k])
			}
		}
	}
	if math.Abs(m.Intercepts[0]-1.0) > 1e-8 || math.Abs(m.Intercepts[1]+0.5) > 1e-8 {
		t.Errorf("intercepts = %v, want [1.0 -0.5]", m.Intercepts)
	}

	pred, err := m.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !mat.EqualApprox(pred, y, 1e-8) {
		t.Error("noise-free predictions must reproduce the outputs")
	}
}

func TestFitMPHandlesRankDeficiency(t *testing.T) {
	rng := newRand(73)
	n := 40
	x := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		v := rng.NormFloat64()
		x.Set(i, 0, v)
		x.Set(i, 1, 2*v) // exact duplicate direction
		x.Set(i, 2, rng.NormFloat64())
	}
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, x.At(i, 0)+x.At(i, 2))
		y.Set(i, 1, -x.At(i, 2))
	}

	m, err := FitMP(x, y)
	if err != nil {
		t.Fatalf("FitMP must stay defined under rank deficiency: %v", err)
	}

	// coefficients are not unique here, fitted values are
	pred, err := m.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !mat.EqualApprox(pred, y, 1e-8) {
		t.Error("fitted values must match despite the collinear design")
	}
}

func TestFitMPShapeChecks(t *testing.T) {
	rng := newRand(79)
	x := linearDesign(10, 2, rng)
	y := mat.NewDense(8, 2, nil)

	_, err := FitMP(x, y)
	if err == nil {
		t.Fatal("expected error for row mismatch")
	}
	var shapeErr *errors.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeMismatchError, got %T", err)
	}
}

func TestMultiOutputPredictChecks(t *testing.T) {
	var unfitted MultiOutput
	if _, err := unfitted.Predict(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected NotFittedError")
	}

	rng := newRand(83)
	x := linearDesign(20, 3, rng)
	y := mat.NewDense(20, 2, nil)
	for i := 0; i < 20; i++ {
		y.Set(i, 0, x.At(i, 0))
		y.Set(i, 1, x.At(i, 1))
	}
	m, err := FitMP(x, y)
	if err != nil {
		t.Fatalf("FitMP failed: %v", err)
	}
	if _, err := m.Predict(mat.NewDense(4, 5, nil)); err == nil {
		t.Error("expected error for feature width mismatch")
	}
}

func TestPseudoInverseMoorePenrose(t *testing.T) {
	rng := newRand(89)
	a := linearDesign(6, 4, rng)

	p, err := PseudoInverse(a)
	if err != nil {
		t.Fatalf("PseudoInverse failed: %v", err)
	}

	rows, cols := p.Dims()
	if rows != 4 || cols != 6 {
		t.Fatalf("pinv dims = (%d, %d), want (4, 6)", rows, cols)
	}

	// defining property: A * A+ * A = A
	var ap, apa mat.Dense
	ap.Mul(a, p)
	apa.Mul(&ap, a)
	if !mat.EqualApprox(&apa, a, 1e-10) {
		t.Error("A pinv(A) A must reproduce A")
	}

	// pinv of the identity is the identity
	eye := mat.NewDiagDense(3, []float64{1, 1, 1})
	pi, err := PseudoInverse(eye)
	if err != nil {
		t.Fatalf("PseudoInverse of identity failed: %v", err)
	}
	if !mat.EqualApprox(pi, eye, 1e-12) {
		t.Error("pinv of the identity must be the identity")
	}
}
