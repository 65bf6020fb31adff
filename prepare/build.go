// Package prepare turns gridded predictors and point predictands into the
// flat matrices consumed by the model backends. Building records every
// transform applied (standardization factors, principal-component loadings,
// missing-value policy) so new predictors can be projected into the exact
// training feature space at prediction time, without refitting.
package prepare

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/grid"
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/pkg/log"
)

// Data is the output of Build: aligned predictor and predictand matrices
// plus the recorded transforms. Pure value; it copies from its inputs and
// aliases nothing, and is immutable once built.
type Data struct {
	X *mat.Dense // kept rows x features (reduced when a reduction is set)
	Y *mat.Dense // kept rows x outputs (sites, or predictand components)

	Times []time.Time // time stamps of the kept rows
	Sites []grid.Site

	KeptRows    []int // indices into the original time axis
	DroppedRows []int // rows omitted under NAOmit

	VariableNames []string
	RawFeatures   int

	Reduction  *Reduction // predictor transform; nil = plain flattening
	YReduction *Reduction // predictand transform; nil = none
	NAAction   NAAction
}

// Samples returns the number of fitted rows.
func (d *Data) Samples() int {
	r, _ := d.X.Dims()
	return r
}

// Features returns the predictor feature count after reduction.
func (d *Data) Features() int {
	_, c := d.X.Dims()
	return c
}

// Outputs returns the number of fitted output columns.
func (d *Data) Outputs() int {
	_, c := d.Y.Dims()
	return c
}

// SingleSite reports whether the fitted output layout is a single column.
func (d *Data) SingleSite() bool {
	return d.Outputs() == 1
}

// Build validates, aligns and flattens the inputs into fitting matrices.
//
// Training requires exactly one ensemble member; forecast ensembles must be
// subset with SelectMember first. The predictor and predictand time axes
// must match exactly, checked before any numeric work. Missing values are
// handled according to opts.NAAction, and the optional principal-component
// reductions are fitted on the complete rows only.
func Build(predictors *grid.PredictorSet, predictand *grid.PredictandSet, opts Options) (data *Data, err error) {
	defer errors.Recover(&err, "prepare.Build")
	started := time.Now()
	logger := log.GetLoggerWithName("prepare")

	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := predictors.Validate(); err != nil {
		return nil, err
	}
	if err := predictand.Validate(); err != nil {
		return nil, err
	}
	if err := grid.AlignTimes(predictors, predictand); err != nil {
		return nil, err
	}
	if mc := predictors.MemberCount(); mc != 1 {
		return nil, errors.NewValidationError("Members",
			"training requires exactly one ensemble member; subset the ensemble with SelectMember", mc)
	}

	rawX := flattenMember(predictors, 0)
	rawY := mat.DenseCopyOf(predictand.Data)
	_, rawFeatures := rawX.Dims()

	kept, dropped := completeRows(rawX, rawY)
	if opts.NAAction == NAFail && len(dropped) > 0 {
		return nil, errors.NewValueError("prepare.Build",
			"input contains missing values and the policy is NAFail")
	}
	if len(kept) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no complete rows after omitting missing values")
	}
	if len(dropped) > 0 {
		rawX = selectRows(rawX, kept)
		rawY = selectRows(rawY, kept)
	}

	times := make([]time.Time, len(kept))
	for i, r := range kept {
		times[i] = predictors.Times[r]
	}

	names := make([]string, len(predictors.Variables))
	for i, v := range predictors.Variables {
		names[i] = v.Name
	}

	x := rawX
	var reduction *Reduction
	if opts.SpatialPredictors != nil {
		spans := variableSpans(predictors)
		if opts.SpatialPredictors.Joint {
			spans = []blockSpan{{name: "joint", start: 0, cols: rawFeatures}}
		}
		reduction, err = fitReduction(rawX, spans, opts.SpatialPredictors)
		if err != nil {
			return nil, err
		}
		x, err = reduction.Project(rawX)
		if err != nil {
			return nil, err
		}
	}

	y := rawY
	var yReduction *Reduction
	if opts.PredictandComponents != nil {
		spans := []blockSpan{{name: "predictand", start: 0, cols: len(predictand.Sites)}}
		yReduction, err = fitReduction(rawY, spans, opts.PredictandComponents)
		if err != nil {
			return nil, err
		}
		y, err = yReduction.Project(rawY)
		if err != nil {
			return nil, err
		}
	}

	sites := make([]grid.Site, len(predictand.Sites))
	copy(sites, predictand.Sites)

	data = &Data{
		X:             x,
		Y:             y,
		Times:         times,
		Sites:         sites,
		KeptRows:      kept,
		DroppedRows:   dropped,
		VariableNames: names,
		RawFeatures:   rawFeatures,
		Reduction:     reduction,
		YReduction:    yReduction,
		NAAction:      opts.NAAction,
	}

	fields := []any{
		log.OperationKey, log.OperationPrepare,
		log.SamplesKey, data.Samples(),
		log.FeaturesKey, data.Features(),
		log.SitesKey, len(sites),
		log.VariablesKey, len(names),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	}
	if reduction != nil {
		fields = append(fields,
			log.PCComponentsKey, reduction.Features(),
			log.PCVarianceKey, reduction.ExplainedVariance(),
		)
	}
	logger.Info("prepared data", fields...)

	return data, nil
}

// Transform projects the predictors of a new set through the recorded
// transform and returns one matrix per ensemble member. The variables must
// match the training layout in name, order and width. Rows containing NaN
// propagate NaN into the projected features.
func (d *Data) Transform(p *grid.PredictorSet) ([]*mat.Dense, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if got := p.FeatureCount(); got != d.RawFeatures {
		return nil, errors.NewShapeMismatchError("Data.Transform", d.RawFeatures, got, 1)
	}
	if len(p.Variables) != len(d.VariableNames) {
		return nil, errors.NewValidationError("Variables",
			"variable count differs from training", len(p.Variables))
	}
	for i, v := range p.Variables {
		if v.Name != d.VariableNames[i] {
			return nil, errors.NewValidationError("Variables",
				"variable order differs from training", v.Name)
		}
	}

	out := make([]*mat.Dense, p.MemberCount())
	for m := range out {
		raw := flattenMember(p, m)
		if d.Reduction != nil {
			proj, err := d.Reduction.Project(raw)
			if err != nil {
				return nil, err
			}
			out[m] = proj
			continue
		}
		out[m] = raw
	}
	return out, nil
}

// flattenMember concatenates the variable blocks of one ensemble member
// into a single time x features matrix, in variable order.
func flattenMember(p *grid.PredictorSet, member int) *mat.Dense {
	rows := p.Steps()
	out := mat.NewDense(rows, p.FeatureCount(), nil)
	offset := 0
	for _, v := range p.Variables {
		m := v.Members[member]
		_, c := m.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < c; j++ {
				out.Set(i, offset+j, m.At(i, j))
			}
		}
		offset += c
	}
	return out
}

// variableSpans maps each predictor variable onto its raw column range.
func variableSpans(p *grid.PredictorSet) []blockSpan {
	spans := make([]blockSpan, 0, len(p.Variables))
	offset := 0
	for _, v := range p.Variables {
		_, c := v.Members[0].Dims()
		spans = append(spans, blockSpan{name: v.Name, start: offset, cols: c})
		offset += c
	}
	return spans
}

// completeRows partitions row indices into those free of NaN across both
// matrices and those carrying at least one.
func completeRows(x, y *mat.Dense) (kept, dropped []int) {
	rows, xc := x.Dims()
	_, yc := y.Dims()
	for i := 0; i < rows; i++ {
		complete := true
		for j := 0; j < xc; j++ {
			if math.IsNaN(x.At(i, j)) {
				complete = false
				break
			}
		}
		if complete {
			for j := 0; j < yc; j++ {
				if math.IsNaN(y.At(i, j)) {
					complete = false
					break
				}
			}
		}
		if complete {
			kept = append(kept, i)
		} else {
			dropped = append(dropped, i)
		}
	}
	return kept, dropped
}

// selectRows copies the given rows of m into a new matrix.
func selectRows(m *mat.Dense, rows []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}
