// Package nnet implements the small feed-forward network behind the neural
// downscaling backend: one sigmoid hidden layer, linear outputs, batch
// gradient descent with optional weight decay. Inputs are standardized
// internally and the factors travel with the fitted network.
package nnet

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// Config tunes the fit. Zero values select the documented defaults.
type Config struct {
	// Hidden is the hidden layer width. Default 10.
	Hidden int

	// LearningRate scales the gradient step. Default 0.05.
	LearningRate float64

	// Epochs bounds the full-batch passes. Default 1000.
	Epochs int

	// Decay is the L2 weight-decay strength applied to both layers.
	Decay float64

	// Seed drives the weight initialization. The same seed and data
	// reproduce the fit exactly.
	Seed uint64

	// Tol stops training early when the relative loss change drops under
	// it. Default 1e-9.
	Tol float64
}

func (c Config) hidden() int {
	if c.Hidden <= 0 {
		return 10
	}
	return c.Hidden
}

func (c Config) learningRate() float64 {
	if c.LearningRate <= 0 {
		return 0.05
	}
	return c.LearningRate
}

func (c Config) epochs() int {
	if c.Epochs <= 0 {
		return 1000
	}
	return c.Epochs
}

func (c Config) tol() float64 {
	if c.Tol <= 0 {
		return 1e-9
	}
	return c.Tol
}

// Network is a fitted single-hidden-layer perceptron.
type Network struct {
	W1 *mat.Dense // features x hidden
	B1 []float64
	W2 *mat.Dense // hidden x outputs
	B2 []float64

	// Means and Scales standardize inputs before the forward pass.
	Means  []float64
	Scales []float64

	NFeatures int
	NHidden   int
	NOutputs  int

	Loss   float64 // mean squared error at the last epoch
	Epochs int     // epochs actually run

	fitted bool
}

// IsFitted reports whether the network went through a successful fit.
func (n *Network) IsFitted() bool {
	return n != nil && n.fitted
}

// SetFitted marks the network usable after fitting or decoding.
func (n *Network) SetFitted() { n.fitted = true }

// Fit trains the network by full-batch gradient descent on the squared
// error. It supports any number of output columns, so single-site and
// joint multi-site fits share one code path.
func Fit(x, y mat.Matrix, cfg Config) (network *Network, err error) {
	defer errors.Recover(&err, "nnet.Fit")

	n, p := x.Dims()
	yn, outputs := y.Dims()
	if n == 0 || p == 0 {
		return nil, errors.NewModelError("nnet.Fit", "empty data", errors.ErrEmptyData)
	}
	if yn != n {
		return nil, errors.NewShapeMismatchError("nnet.Fit", n, yn, 0)
	}
	if cfg.Decay < 0 {
		return nil, errors.NewValidationError("Decay", "weight decay must not be negative", cfg.Decay)
	}

	hidden := cfg.hidden()
	lr := cfg.learningRate()
	epochs := cfg.epochs()
	tol := cfg.tol()

	xs, means, scales := standardize(x)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	w1 := mat.NewDense(p, hidden, nil)
	b1 := make([]float64, hidden)
	w2 := mat.NewDense(hidden, outputs, nil)
	b2 := make([]float64, outputs)
	initLayer(w1, rng, p)
	initLayer(w2, rng, hidden)

	h := mat.NewDense(n, hidden, nil)
	out := mat.NewDense(n, outputs, nil)
	dOut := mat.NewDense(n, outputs, nil)
	dHidden := mat.NewDense(n, hidden, nil)
	gw1 := mat.NewDense(p, hidden, nil)
	gw2 := mat.NewDense(hidden, outputs, nil)

	nf := float64(n)
	prevLoss := math.Inf(1)
	ran := 0

	for epoch := 1; epoch <= epochs; epoch++ {
		forward(xs, w1, b1, w2, b2, h, out)

		loss := 0.0
		for i := 0; i < n; i++ {
			for k := 0; k < outputs; k++ {
				d := out.At(i, k) - y.At(i, k)
				dOut.Set(i, k, d/nf)
				loss += d * d
			}
		}
		loss /= nf
		if err := errors.CheckScalar("nnet loss", loss, epoch); err != nil {
			return nil, errors.NewConvergenceError("gradient descent", epoch,
				"training loss diverged; lower the learning rate")
		}

		// output layer gradients
		gw2.Mul(h.T(), dOut)
		if cfg.Decay > 0 {
			var decayed mat.Dense
			decayed.Scale(cfg.Decay, w2)
			gw2.Add(gw2, &decayed)
		}
		gb2 := columnSums(dOut)

		// backpropagate through the sigmoid layer
		dHidden.Mul(dOut, w2.T())
		for i := 0; i < n; i++ {
			for k := 0; k < hidden; k++ {
				a := h.At(i, k)
				dHidden.Set(i, k, dHidden.At(i, k)*a*(1-a))
			}
		}
		gw1.Mul(xs.T(), dHidden)
		if cfg.Decay > 0 {
			var decayed mat.Dense
			decayed.Scale(cfg.Decay, w1)
			gw1.Add(gw1, &decayed)
		}
		gb1 := columnSums(dHidden)

		step(w1, gw1, lr)
		step(w2, gw2, lr)
		for k := range b1 {
			b1[k] -= lr * gb1[k]
		}
		for k := range b2 {
			b2[k] -= lr * gb2[k]
		}

		ran = epoch
		if math.Abs(prevLoss-loss)/(loss+1e-12) < tol {
			prevLoss = loss
			break
		}
		prevLoss = loss
	}

	network = &Network{
		W1:        w1,
		B1:        b1,
		W2:        w2,
		B2:        b2,
		Means:     means,
		Scales:    scales,
		NFeatures: p,
		NHidden:   hidden,
		NOutputs:  outputs,
		Loss:      prevLoss,
		Epochs:    ran,
	}
	network.SetFitted()
	return network, nil
}

// Predict runs the forward pass on new rows.
func (nw *Network) Predict(x mat.Matrix) (*mat.Dense, error) {
	if !nw.IsFitted() {
		return nil, errors.NewNotFittedError("Network", "Predict")
	}
	n, p := x.Dims()
	if p != nw.NFeatures {
		return nil, errors.NewShapeMismatchError("Network.Predict", nw.NFeatures, p, 1)
	}

	xs := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xs.Set(i, j, (x.At(i, j)-nw.Means[j])/nw.Scales[j])
		}
	}

	h := mat.NewDense(n, nw.NHidden, nil)
	out := mat.NewDense(n, nw.NOutputs, nil)
	forward(xs, nw.W1, nw.B1, nw.W2, nw.B2, h, out)
	return out, nil
}

// forward fills the hidden activations and the linear outputs in place.
func forward(xs, w1 *mat.Dense, b1 []float64, w2 *mat.Dense, b2 []float64, h, out *mat.Dense) {
	n, _ := xs.Dims()
	hidden := len(b1)
	outputs := len(b2)

	h.Mul(xs, w1)
	for i := 0; i < n; i++ {
		for k := 0; k < hidden; k++ {
			h.Set(i, k, sigmoid(h.At(i, k)+b1[k]))
		}
	}
	out.Mul(h, w2)
	for i := 0; i < n; i++ {
		for k := 0; k < outputs; k++ {
			out.Set(i, k, out.At(i, k)+b2[k])
		}
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}

// initLayer fills w with normal draws scaled by the fan-in.
func initLayer(w *mat.Dense, rng *rand.Rand, fanIn int) {
	r, c := w.Dims()
	scale := 1.0 / math.Sqrt(float64(fanIn))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			w.Set(i, j, rng.NormFloat64()*scale)
		}
	}
}

// step applies one gradient-descent update in place.
func step(w, g *mat.Dense, lr float64) {
	var scaled mat.Dense
	scaled.Scale(lr, g)
	w.Sub(w, &scaled)
}

func columnSums(m *mat.Dense) []float64 {
	r, c := m.Dims()
	sums := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			sums[j] += m.At(i, j)
		}
	}
	return sums
}

// standardize centers and scales each input column, guarding constant
// columns with unit scale.
func standardize(x mat.Matrix) (*mat.Dense, []float64, []float64) {
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
