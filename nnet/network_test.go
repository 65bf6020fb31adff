package nnet

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

func trainingData(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	x := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := rng.Float64()*4 - 2
		b := rng.Float64()*4 - 2
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y.Set(i, 0, math.Sin(a)+0.5*b)
	}
	return x, y
}

func TestFitLearnsSmoothTarget(t *testing.T) {
	x, y := trainingData(300, 1)

	nw, err := Fit(x, y, Config{Hidden: 12, Epochs: 4000, LearningRate: 0.1, Seed: 7})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if nw.Loss > 0.05 {
		t.Errorf("training mse = %v, network failed to learn the target", nw.Loss)
	}

	pred, err := nw.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	rmse := 0.0
	n, _ := x.Dims()
	for i := 0; i < n; i++ {
		d := pred.At(i, 0) - y.At(i, 0)
		rmse += d * d
	}
	rmse = math.Sqrt(rmse / float64(n))
	if rmse > 0.25 {
		t.Errorf("in-sample rmse = %v, want a close fit", rmse)
	}
}

func TestFitMultiOutput(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	n := 200
	x := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		y.Set(i, 0, x.At(i, 0)+x.At(i, 1))
		y.Set(i, 1, x.At(i, 2)-x.At(i, 0))
	}

	nw, err := Fit(x, y, Config{Hidden: 8, Epochs: 3000, LearningRate: 0.1, Seed: 11})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if nw.NOutputs != 2 {
		t.Errorf("NOutputs = %d, want 2", nw.NOutputs)
	}

	pred, err := nw.Predict(x)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	r, c := pred.Dims()
	if r != n || c != 2 {
		t.Fatalf("prediction dims = (%d, %d), want (%d, 2)", r, c, n)
	}
	if nw.Loss > 0.2 {
		t.Errorf("training mse = %v, want a close multi-output fit", nw.Loss)
	}
}

func TestFitReproducibleWithSeed(t *testing.T) {
	x, y := trainingData(100, 5)

	cfg := Config{Hidden: 6, Epochs: 200, Seed: 21}
	a, err := Fit(x, y, cfg)
	if err != nil {
		t.Fatalf("first fit failed: %v", err)
	}
	b, err := Fit(x, y, cfg)
	if err != nil {
		t.Fatalf("second fit failed: %v", err)
	}

	if !mat.Equal(a.W1, b.W1) || !mat.Equal(a.W2, b.W2) {
		t.Error("weights differ across identical seeds")
	}
	if a.Loss != b.Loss {
		t.Errorf("loss differs across identical seeds: %v vs %v", a.Loss, b.Loss)
	}

	c, err := Fit(x, y, Config{Hidden: 6, Epochs: 200, Seed: 22})
	if err != nil {
		t.Fatalf("third fit failed: %v", err)
	}
	if mat.Equal(a.W1, c.W1) {
		t.Error("different seeds should initialize differently")
	}
}

func TestFitWeightDecayShrinksWeights(t *testing.T) {
	x, y := trainingData(150, 9)

	free, err := Fit(x, y, Config{Hidden: 10, Epochs: 1500, Seed: 2})
	if err != nil {
		t.Fatalf("unpenalized fit failed: %v", err)
	}
	decayed, err := Fit(x, y, Config{Hidden: 10, Epochs: 1500, Seed: 2, Decay: 0.01})
	if err != nil {
		t.Fatalf("decayed fit failed: %v", err)
	}

	if normOf(decayed.W2) >= normOf(free.W2) {
		t.Errorf("decay did not shrink the output layer: %v vs %v",
			normOf(decayed.W2), normOf(free.W2))
	}
}

func normOf(m *mat.Dense) float64 {
	r, c := m.Dims()
	total := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			total += v * v
		}
	}
	return math.Sqrt(total)
}

func TestFitValidation(t *testing.T) {
	x, y := trainingData(20, 13)

	if _, err := Fit(x, mat.NewDense(10, 1, nil), Config{}); err == nil {
		t.Error("expected error for row mismatch")
	}
	if _, err := Fit(x, y, Config{Decay: -1}); err == nil {
		t.Error("expected error for negative decay")
	}
}

func TestPredictChecks(t *testing.T) {
	var unfitted Network
	if _, err := unfitted.Predict(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected NotFittedError")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %T", err)
		}
	}

	x, y := trainingData(50, 17)
	nw, err := Fit(x, y, Config{Epochs: 50, Seed: 1})
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := nw.Predict(mat.NewDense(4, 5, nil)); err == nil {
		t.Error("expected error for feature width mismatch")
	}
}
