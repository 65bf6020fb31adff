package downscale

import (
	"github.com/statclim/downgo/nnet"
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/regression"
)

// Aggregation selects how the analog method combines the outcomes of the
// selected neighbours.
type Aggregation int

const (
	// AnalogClosest takes the outcome of the single nearest pattern.
	AnalogClosest Aggregation = iota

	// AnalogMean averages the outcomes of the selected analogs per site.
	AnalogMean

	// AnalogMedian takes the per-site median of the selected analogs.
	AnalogMedian
)

// String returns the aggregation tag.
func (a Aggregation) String() string {
	switch a {
	case AnalogClosest:
		return "closest"
	case AnalogMean:
		return "mean"
	case AnalogMedian:
		return "median"
	default:
		return "unknown"
	}
}

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	return a >= AnalogClosest && a <= AnalogMedian
}

// AnalogConfig tunes the analog backend.
type AnalogConfig struct {
	// Count is the number of nearest training patterns consulted per
	// prediction. Zero means 1.
	Count int

	// Aggregation combines the analog outcomes; the default is closest.
	// Simulation ignores it and draws uniformly among the analogs.
	Aggregation Aggregation
}

func (c AnalogConfig) count() int {
	if c.Count <= 0 {
		return 1
	}
	return c.Count
}

func (c AnalogConfig) validate() error {
	if c.Count < 0 {
		return errors.NewValidationError("Analog.Count", "analog count must not be negative", c.Count)
	}
	if !c.Aggregation.Valid() {
		return errors.NewValidationError("Analog.Aggregation", "unknown aggregation", c.Aggregation)
	}
	return nil
}

// TrainConfig is the explicit, typed configuration of a training run. Every
// field is named and validated; there is no pass-through option bag. The
// zero value requests a single-site Gaussian maximum-likelihood fit.
type TrainConfig struct {
	// Mode is the GLM fitting mode. Must be FitNone for other methods.
	Mode FittingMode

	// Family tags the response distribution of the GLM backend.
	Family regression.Family

	// Joint fits one model across all sites instead of one independent
	// model per site. Only MP and groupLasso support it. The analog method
	// is joint by construction and ignores the flag.
	Joint bool

	// Simulate switches prediction from the deterministic conditional mean
	// to draws from the fitted distribution: Bernoulli for Binomial, a
	// gamma draw with shape 1/dispersion and scale dispersion times mean
	// for Gamma, and a uniform draw among the analogs for the analog
	// method.
	Simulate bool

	// Seed drives every stochastic element of the experiment: simulation
	// draws, the internal penalty-search folds and the network weight
	// initialization. The same seed reproduces the run exactly.
	Seed uint64

	// Workers bounds the per-site fitting pool. Zero means the number of
	// available CPU cores.
	Workers int

	// Analog configures the analog backend.
	Analog AnalogConfig

	// GLM tunes the IRLS loop for the unpenalized modes and the outer
	// reweighting of the penalized ones.
	GLM regression.GLMOptions

	// Penalty tunes the elastic-net path for FitL1, FitL2 and FitL1L2.
	// Its Alpha, Seed and GLM fields are set by the adapter from the mode,
	// Seed and GLM above.
	Penalty regression.ElasticNetOptions

	// Group tunes the group-lasso path for FitGroupLasso. Seed is set by
	// the adapter from Seed above.
	Group regression.GroupLassoOptions

	// Neural configures the perceptron backend. Seed is set by the adapter.
	Neural nnet.Config
}

// ModelInfo describes a trained artifact: which method and mode produced it,
// the response family, the site layout and whether prediction simulates.
// Predict interprets artifacts solely through this descriptor.
type ModelInfo struct {
	Method     Method
	Mode       FittingMode
	Family     regression.Family
	SingleSite bool
	Simulate   bool

	// Seed is the experiment seed, kept so reloaded experiments reproduce
	// their simulation draws.
	Seed uint64
}
