// Package grid defines the data structures exchanged with the downscaling
// pipeline: gridded predictor fields, point predictands and model output.
//
// A predictor variable is stored as one dense matrix per ensemble member with
// time steps as rows and grid points as columns. Predictands are a single
// time x site matrix. All structures carry their time axis explicitly so that
// alignment can be checked before any computation starts.
package grid

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
)

// Site identifies a predictand location.
type Site struct {
	ID  string
	Lat float64
	Lon float64
}

// Variable is one predictor field: a name plus one matrix per ensemble
// member. Each member matrix is time x space.
type Variable struct {
	Name    string
	Members []*mat.Dense
}

// PredictorSet holds gridded predictor variables sharing one time axis.
// Reanalysis data carries a single member; seasonal forecasts carry one
// member per ensemble realization.
type PredictorSet struct {
	Times     []time.Time
	Variables []Variable
}

// PredictandSet holds observed values at point locations, time x site.
type PredictandSet struct {
	Times []time.Time
	Sites []Site
	Data  *mat.Dense
}

// PredictionSet is downscaled model output on the predictand layout, one
// time x site matrix per predictor member.
type PredictionSet struct {
	Times   []time.Time
	Sites   []Site
	Members []*mat.Dense
}

// Steps returns the number of time steps.
func (p *PredictorSet) Steps() int {
	return len(p.Times)
}

// MemberCount returns the number of ensemble members. All variables carry
// the same count on a valid set.
func (p *PredictorSet) MemberCount() int {
	if len(p.Variables) == 0 {
		return 0
	}
	return len(p.Variables[0].Members)
}

// FeatureCount returns the total number of grid-point columns across all
// variables, i.e. the width of the flattened predictor matrix.
func (p *PredictorSet) FeatureCount() int {
	total := 0
	for _, v := range p.Variables {
		if len(v.Members) == 0 || v.Members[0] == nil {
			continue
		}
		_, c := v.Members[0].Dims()
		total += c
	}
	return total
}

// Validate checks the structural invariants of the set: at least one
// variable, a uniform member count, and every member matrix matching the
// time axis length.
func (p *PredictorSet) Validate() error {
	if len(p.Times) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "predictor set has no time steps")
	}
	if len(p.Variables) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "predictor set has no variables")
	}

	members := len(p.Variables[0].Members)
	if members == 0 {
		return errors.NewValidationError("Members", "variable carries no member matrices", p.Variables[0].Name)
	}

	for _, v := range p.Variables {
		if v.Name == "" {
			return errors.NewValidationError("Name", "variable name must not be empty", v.Name)
		}
		if len(v.Members) != members {
			return errors.NewValidationError("Members", "all variables must carry the same member count", v.Name)
		}
		cols := -1
		for _, member := range v.Members {
			if member == nil {
				return errors.NewValidationError("Members", "member matrix is nil", v.Name)
			}
			r, c := member.Dims()
			if r != len(p.Times) {
				return errors.NewShapeMismatchError("PredictorSet.Validate", len(p.Times), r, 0)
			}
			if cols == -1 {
				cols = c
			} else if c != cols {
				return errors.NewShapeMismatchError("PredictorSet.Validate", cols, c, 1)
			}
		}
	}
	return nil
}

// Steps returns the number of time steps.
func (p *PredictandSet) Steps() int {
	return len(p.Times)
}

// SiteCount returns the number of predictand locations.
func (p *PredictandSet) SiteCount() int {
	return len(p.Sites)
}

// Validate checks that the data matrix matches the declared time and site
// axes.
func (p *PredictandSet) Validate() error {
	if len(p.Times) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "predictand set has no time steps")
	}
	if len(p.Sites) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "predictand set has no sites")
	}
	if p.Data == nil {
		return errors.Wrap(errors.ErrEmptyData, "predictand set has no data matrix")
	}
	r, c := p.Data.Dims()
	if r != len(p.Times) {
		return errors.NewShapeMismatchError("PredictandSet.Validate", len(p.Times), r, 0)
	}
	if c != len(p.Sites) {
		return errors.NewShapeMismatchError("PredictandSet.Validate", len(p.Sites), c, 1)
	}
	return nil
}

// AlignTimes verifies that predictor and predictand share the same time axis,
// length first, then timestamp by timestamp. Misalignment is reported before
// any numeric work.
func AlignTimes(x *PredictorSet, y *PredictandSet) error {
	if len(x.Times) != len(y.Times) {
		return errors.NewShapeMismatchError("AlignTimes", len(x.Times), len(y.Times), 0)
	}
	for i := range x.Times {
		if !x.Times[i].Equal(y.Times[i]) {
			// equal length but different ordering: only the first i rows align
			return errors.Wrapf(
				errors.NewShapeMismatchError("AlignTimes", len(x.Times), i, 0),
				"time axes diverge at index %d", i)
		}
	}
	return nil
}
