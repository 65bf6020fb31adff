package regression

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGroupLassoZeroesFeatureBlocks(t *testing.T) {
	rng := newRand(101)
	n := 150
	x := linearDesign(n, 6, rng)

	// both outputs depend on features 0 and 2 only
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, 2.0*x.At(i, 0)+1.0*x.At(i, 2)+0.2*rng.NormFloat64())
		y.Set(i, 1, -1.5*x.At(i, 0)+0.5*x.At(i, 2)+0.2*rng.NormFloat64())
	}

	m, err := FitGroupLasso(x, y, GroupLassoOptions{Seed: 5})
	if err != nil {
		t.Fatalf("FitGroupLasso failed: %v", err)
	}

	norm := func(j int) float64 {
		a := m.Weights.At(j, 0)
		b := m.Weights.At(j, 1)
		return math.Sqrt(a*a + b*b)
	}
	if norm(0) < 0.5 || norm(2) < 0.2 {
		t.Errorf("informative blocks too small: feature 0 norm %v, feature 2 norm %v", norm(0), norm(2))
	}

	// the penalty acts on whole rows: a feature is either in for every
	// output or out for every output
	for j := 0; j < 6; j++ {
		a := m.Weights.At(j, 0)
		b := m.Weights.At(j, 1)
		if (a == 0) != (b == 0) {
			t.Errorf("feature %d has a split block: [%v %v]", j, a, b)
		}
	}

	zeroed := 0
	for j := 0; j < 6; j++ {
		if norm(j) == 0 {
			zeroed++
		}
	}
	if zeroed == 0 {
		t.Error("expected at least one noise block to be fully zeroed")
	}
}

func TestGroupLassoRequiresMultipleOutputs(t *testing.T) {
	rng := newRand(103)
	x := linearDesign(30, 3, rng)
	y := mat.NewDense(30, 1, nil)

	if _, err := FitGroupLasso(x, y, GroupLassoOptions{}); err == nil {
		t.Error("expected error for a single output column")
	}
}

func TestGroupLassoReproducibleWithSeed(t *testing.T) {
	rng := newRand(107)
	n := 80
	x := linearDesign(n, 4, rng)
	y := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		base := x.At(i, 1)
		y.Set(i, 0, base+0.3*rng.NormFloat64())
		y.Set(i, 1, 2*base+0.3*rng.NormFloat64())
		y.Set(i, 2, -base+0.3*rng.NormFloat64())
	}

	opts := GroupLassoOptions{Seed: 42}
	a, err := FitGroupLasso(x, y, opts)
	if err != nil {
		t.Fatalf("first fit failed: %v", err)
	}
	b, err := FitGroupLasso(x, y, opts)
	if err != nil {
		t.Fatalf("second fit failed: %v", err)
	}

	if a.Lambda != b.Lambda {
		t.Errorf("Lambda differs across identical seeds: %v vs %v", a.Lambda, b.Lambda)
	}
	if !mat.Equal(a.Weights, b.Weights) {
		t.Error("weights differ across identical seeds")
	}
}

func TestGroupLassoPredictShape(t *testing.T) {
	rng := newRand(109)
	n := 60
	x := linearDesign(n, 3, rng)
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		y.Set(i, 0, x.At(i, 0)+0.1*rng.NormFloat64())
		y.Set(i, 1, x.At(i, 0)+0.1*rng.NormFloat64())
	}

	m, err := FitGroupLasso(x, y, GroupLassoOptions{Seed: 1})
	if err != nil {
		t.Fatalf("FitGroupLasso failed: %v", err)
	}

	pred, err := m.Predict(linearDesign(10, 3, rng))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	r, c := pred.Dims()
	if r != 10 || c != 2 {
		t.Errorf("prediction dims = (%d, %d), want (10, 2)", r, c)
	}
}
