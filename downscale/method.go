package downscale

import (
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/regression"
)

// Method selects the downscaling backend. The zero value is invalid so an
// uninitialized configuration cannot silently pick a method.
type Method int

const (
	// Analogs predicts from the observed outcomes of the most similar
	// training patterns.
	Analogs Method = iota + 1

	// GLM fits generalized linear models, one per site or jointly,
	// according to the fitting mode.
	GLM

	// Neural fits a single-hidden-layer perceptron.
	Neural
)

// String returns the method tag.
func (m Method) String() string {
	switch m {
	case Analogs:
		return "analogs"
	case GLM:
		return "GLM"
	case Neural:
		return "neural"
	default:
		return "unknown"
	}
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == Analogs || m == GLM || m == Neural
}

// FittingMode selects how the GLM backend estimates its coefficients. The
// zero value is FitNone, the plain maximum-likelihood fit. Adding a mode
// means adding an enum member and a branch in the adapter; every switch over
// the mode carries an error default.
type FittingMode int

const (
	// FitNone is the direct IRLS maximum-likelihood fit.
	FitNone FittingMode = iota

	// FitStepwise grows the model by forward selection on AIC.
	FitStepwise

	// FitL1 is the lasso: an L1-penalized fit with the penalty strength
	// chosen by internal cross-validation.
	FitL1

	// FitL2 is the ridge penalty, selected the same way.
	FitL2

	// FitL1L2 searches the elastic-net mixing grid 0.0, 0.1, ..., 1.0 and
	// keeps the mix with the lowest cross-validated deviance.
	FitL1L2

	// FitGroupLasso fits all sites jointly with feature-wise groups across
	// outputs. Multi-site only.
	FitGroupLasso

	// FitMP solves the least-squares problem in closed form through the
	// Moore-Penrose pseudo-inverse of the intercept-augmented design.
	FitMP
)

// String returns the fitting-mode tag.
func (f FittingMode) String() string {
	switch f {
	case FitNone:
		return "none"
	case FitStepwise:
		return "stepwise"
	case FitL1:
		return "L1"
	case FitL2:
		return "L2"
	case FitL1L2:
		return "L1L2"
	case FitGroupLasso:
		return "groupLasso"
	case FitMP:
		return "MP"
	default:
		return "unknown"
	}
}

// Valid reports whether f is a known fitting mode.
func (f FittingMode) Valid() bool {
	return f >= FitNone && f <= FitMP
}

// checkCombination enforces the method / fitting-mode / site-layout legality
// table before any computation starts.
//
// Fitting modes belong to the GLM method. Within GLM, groupLasso demands the
// joint multi-site layout, MP accepts either layout, and every other mode
// demands single-site fitting. The joint modes solve least-squares problems,
// so they are restricted to the Gaussian family. Stochastic simulation is
// defined for the analog method and for the Binomial and Gamma families
// under GLM; everything else is rejected up front.
func checkCombination(method Method, cfg *TrainConfig) error {
	if !method.Valid() {
		return errors.NewValidationError("Method", "unknown method", method)
	}
	if !cfg.Mode.Valid() {
		return errors.NewValidationError("Mode", "unknown fitting mode", cfg.Mode)
	}
	if !cfg.Family.Valid() {
		return errors.NewValidationError("Family", "unknown family", cfg.Family)
	}

	if method != GLM && cfg.Mode != FitNone {
		return errors.NewUnsupportedCombinationError(method.String(), cfg.Mode.String(),
			"fitting modes apply to the GLM method only")
	}

	if method == GLM {
		switch cfg.Mode {
		case FitGroupLasso:
			if !cfg.Joint {
				return errors.NewUnsupportedCombinationError(method.String(), cfg.Mode.String(),
					"group lasso fits all sites jointly; single-site mode is not defined")
			}
		case FitMP:
			// either layout: the closed form solves every site at once and
			// the per-site solutions coincide with its columns
		default:
			if cfg.Joint {
				return errors.NewUnsupportedCombinationError(method.String(), cfg.Mode.String(),
					"joint multi-site fitting is limited to MP and groupLasso")
			}
		}
		if (cfg.Mode == FitMP || cfg.Mode == FitGroupLasso) && cfg.Family != regression.Gaussian {
			return errors.NewUnsupportedCombinationError(method.String(), cfg.Mode.String(),
				"joint least-squares modes support the gaussian family only")
		}
	}

	if cfg.Simulate {
		switch {
		case method == Analogs:
			// draws uniformly among the analogs, no family involved
		case method == GLM && (cfg.Family == regression.Binomial || cfg.Family == regression.Gamma):
		default:
			return errors.NewUnsupportedSimulationError(cfg.Family.String())
		}
	}
	return nil
}
