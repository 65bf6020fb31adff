package regression

import (
	"math"

	"github.com/statclim/downgo/pkg/errors"
)

// Family identifies the GLM error distribution. Each family carries a fixed
// canonical-for-downscaling link: identity for Gaussian, logit for Binomial,
// log for Gamma and Poisson.
type Family int

const (
	Gaussian Family = iota
	Binomial
	Gamma
	Poisson
)

// String returns the lowercase family name.
func (f Family) String() string {
	switch f {
	case Gaussian:
		return "gaussian"
	case Binomial:
		return "binomial"
	case Gamma:
		return "gamma"
	case Poisson:
		return "poisson"
	default:
		return "unknown"
	}
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case Gaussian, Binomial, Gamma, Poisson:
		return true
	}
	return false
}

const (
	// probEps keeps binomial means strictly inside (0, 1).
	probEps = 1e-10

	// meanEps keeps log-link means strictly positive.
	meanEps = 1e-10
)

// linkInverse maps the linear predictor to the mean scale.
func (f Family) linkInverse(eta float64) float64 {
	switch f {
	case Gaussian:
		return eta
	case Binomial:
		p := 1.0 / (1.0 + errors.StabilizeExp(-eta))
		return errors.ClipValue(p, probEps, 1-probEps)
	case Gamma, Poisson:
		return math.Max(errors.StabilizeExp(eta), meanEps)
	default:
		return math.NaN()
	}
}

// link maps the mean to the linear-predictor scale.
func (f Family) link(mu float64) float64 {
	switch f {
	case Gaussian:
		return mu
	case Binomial:
		p := errors.ClipValue(mu, probEps, 1-probEps)
		return math.Log(p / (1 - p))
	case Gamma, Poisson:
		return errors.StabilizeLog(mu)
	default:
		return math.NaN()
	}
}

// muEta is the derivative dmu/deta of the inverse link at eta.
func (f Family) muEta(eta float64) float64 {
	switch f {
	case Gaussian:
		return 1
	case Binomial:
		p := f.linkInverse(eta)
		return p * (1 - p)
	case Gamma, Poisson:
		return math.Max(errors.StabilizeExp(eta), meanEps)
	default:
		return math.NaN()
	}
}

// variance is the family variance function V(mu).
func (f Family) variance(mu float64) float64 {
	switch f {
	case Gaussian:
		return 1
	case Binomial:
		p := errors.ClipValue(mu, probEps, 1-probEps)
		return p * (1 - p)
	case Gamma:
		return mu * mu
	case Poisson:
		return math.Max(mu, meanEps)
	default:
		return math.NaN()
	}
}

// devianceResidual is the contribution of one observation to the deviance.
func (f Family) devianceResidual(y, mu float64) float64 {
	switch f {
	case Gaussian:
		d := y - mu
		return d * d
	case Binomial:
		p := errors.ClipValue(mu, probEps, 1-probEps)
		d := 0.0
		if y > 0 {
			d += y * math.Log(y/p)
		}
		if y < 1 {
			d += (1 - y) * math.Log((1-y)/(1-p))
		}
		return 2 * d
	case Gamma:
		m := math.Max(mu, meanEps)
		v := math.Max(y, meanEps)
		return 2 * (-math.Log(v/m) + (y-m)/m)
	case Poisson:
		m := math.Max(mu, meanEps)
		d := -(y - m)
		if y > 0 {
			d += y * math.Log(y/m)
		}
		return 2 * d
	default:
		return math.NaN()
	}
}

// deviance sums the deviance residuals of a fitted mean vector.
func (f Family) deviance(y, mu []float64) float64 {
	total := 0.0
	for i := range y {
		total += f.devianceResidual(y[i], mu[i])
	}
	return total
}

// startMu returns the iteration starting mean for one observation, following
// the usual pull toward the interior of the family support.
func (f Family) startMu(y float64) float64 {
	switch f {
	case Gaussian:
		return y
	case Binomial:
		return (y + 0.5) / 2
	case Gamma, Poisson:
		return math.Max(y, meanEps) + 0.1
	default:
		return math.NaN()
	}
}

// checkResponse validates the response range for the family.
func (f Family) checkResponse(y []float64) error {
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewValueError("regression.FitGLM", "response contains non-finite values")
		}
		switch f {
		case Binomial:
			if v != 0 && v != 1 {
				return errors.NewValidationError("y", "binomial response must be 0 or 1", v)
			}
		case Gamma:
			if v <= 0 {
				return errors.NewValidationError("y", "gamma response must be positive", v)
			}
		case Poisson:
			if v < 0 {
				return errors.NewValidationError("y", "poisson response must not be negative", v)
			}
		}
	}
	return nil
}
