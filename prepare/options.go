package prepare

import (
	"github.com/statclim/downgo/pkg/errors"
)

// DefaultVarianceExplained is the cumulative explained-variance threshold
// used when a PCOptions leaves VarianceExplained unset.
const DefaultVarianceExplained = 0.95

// NAAction selects how missing values in the inputs are handled. The policy
// is an explicit parameter: there is no ambient default that silently
// changes behavior between runs.
type NAAction int

const (
	// NAOmit drops rows containing NaN from the fitting subset. The
	// recorded transform is fitted on complete rows only; prediction still
	// covers every row of the new predictors.
	NAOmit NAAction = iota

	// NAFail rejects inputs containing NaN.
	NAFail
)

// String returns the name of the policy.
func (a NAAction) String() string {
	switch a {
	case NAOmit:
		return "omit"
	case NAFail:
		return "fail"
	default:
		return "unknown"
	}
}

// PCOptions configures a principal-component reduction.
type PCOptions struct {
	// VarianceExplained is the cumulative explained-variance threshold in
	// (0, 1]. The smallest component count reaching it is retained.
	// Zero means DefaultVarianceExplained.
	VarianceExplained float64

	// MaxComponents caps the retained component count when positive. A cap
	// below the threshold count wins over the threshold.
	MaxComponents int

	// Joint fits a single reduction over all variables together instead of
	// one reduction per variable.
	Joint bool
}

func (o *PCOptions) validate(param string) error {
	if o.VarianceExplained < 0 || o.VarianceExplained > 1 {
		return errors.NewValidationError(param, "variance threshold must be in (0, 1]", o.VarianceExplained)
	}
	if o.MaxComponents < 0 {
		return errors.NewValidationError(param, "component cap must not be negative", o.MaxComponents)
	}
	return nil
}

func (o *PCOptions) threshold() float64 {
	if o.VarianceExplained == 0 {
		return DefaultVarianceExplained
	}
	return o.VarianceExplained
}

// Options configures Build.
type Options struct {
	// SpatialPredictors enables principal-component reduction of the
	// flattened predictor fields. Nil keeps the raw grid-point columns.
	SpatialPredictors *PCOptions

	// PredictandComponents enables principal-component reduction of the
	// predictand sites. Backend output is mapped back to sites through the
	// recorded inverse. Nil keeps one output per site.
	PredictandComponents *PCOptions

	// NAAction is the missing-value policy. The zero value is NAOmit.
	NAAction NAAction
}

func (o *Options) validate() error {
	if o.SpatialPredictors != nil {
		if err := o.SpatialPredictors.validate("SpatialPredictors"); err != nil {
			return err
		}
	}
	if o.PredictandComponents != nil {
		if err := o.PredictandComponents.validate("PredictandComponents"); err != nil {
			return err
		}
	}
	if o.NAAction != NAOmit && o.NAAction != NAFail {
		return errors.NewValidationError("NAAction", "unknown missing-value policy", o.NAAction)
	}
	return nil
}
