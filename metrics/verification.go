// Package metrics provides verification measures for downscaled series:
// error magnitude, systematic bias and linear association between observed
// and predicted values. Pairs where either side is NaN are excluded, so
// series with omitted rows or unwritten cross-validation folds score on
// their covered part.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/statclim/downgo/grid"
	"github.com/statclim/downgo/pkg/errors"
)

// completePairs filters the aligned series down to the pairs where both
// values are finite numbers.
func completePairs(op string, obs, pred []float64) (o, p []float64, err error) {
	if len(obs) == 0 {
		return nil, nil, errors.NewValueError(op, "empty series")
	}
	if len(pred) != len(obs) {
		return nil, nil, errors.NewShapeMismatchError(op, len(obs), len(pred), 0)
	}

	o = make([]float64, 0, len(obs))
	p = make([]float64, 0, len(obs))
	for i := range obs {
		if math.IsNaN(obs[i]) || math.IsNaN(pred[i]) {
			continue
		}
		o = append(o, obs[i])
		p = append(p, pred[i])
	}
	if len(o) == 0 {
		return nil, nil, errors.NewValueError(op, "no complete pairs after removing missing values")
	}
	return o, p, nil
}

// MSE returns the mean squared error of the prediction series.
func MSE(obs, pred []float64) (float64, error) {
	o, p, err := completePairs("metrics.MSE", obs, pred)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range o {
		d := p[i] - o[i]
		sum += d * d
	}
	return sum / float64(len(o)), nil
}

// RMSE returns the root mean squared error of the prediction series.
func RMSE(obs, pred []float64) (float64, error) {
	mse, err := MSE(obs, pred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE returns the mean absolute error of the prediction series.
func MAE(obs, pred []float64) (float64, error) {
	o, p, err := completePairs("metrics.MAE", obs, pred)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range o {
		sum += math.Abs(p[i] - o[i])
	}
	return sum / float64(len(o)), nil
}

// Bias returns the mean error of the prediction series. Positive values
// mean the predictions run high.
func Bias(obs, pred []float64) (float64, error) {
	o, p, err := completePairs("metrics.Bias", obs, pred)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range o {
		sum += p[i] - o[i]
	}
	return sum / float64(len(o)), nil
}

// Correlation returns the Pearson correlation between the observed and
// predicted series. A constant series leaves the measure undefined; that
// case is reported through the warning hook and scored as 0.
func Correlation(obs, pred []float64) (float64, error) {
	o, p, err := completePairs("metrics.Correlation", obs, pred)
	if err != nil {
		return 0, err
	}
	if stat.Variance(o, nil) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("correlation", "zero variance in the observed series", 0))
		return 0, nil
	}
	if stat.Variance(p, nil) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("correlation", "zero variance in the predicted series", 0))
		return 0, nil
	}
	return stat.Correlation(o, p, nil), nil
}

// Scores bundles the verification measures of one series.
type Scores struct {
	N           int // pairs entering the measures after NaN removal
	RMSE        float64
	MAE         float64
	Bias        float64
	Correlation float64
}

// Evaluate computes all measures of one aligned series pair in a single
// pass over the complete pairs.
func Evaluate(obs, pred []float64) (Scores, error) {
	o, p, err := completePairs("metrics.Evaluate", obs, pred)
	if err != nil {
		return Scores{}, err
	}

	var sq, abs, diff float64
	for i := range o {
		d := p[i] - o[i]
		sq += d * d
		abs += math.Abs(d)
		diff += d
	}
	n := float64(len(o))

	corr := 0.0
	switch {
	case stat.Variance(o, nil) == 0:
		errors.Warn(errors.NewUndefinedMetricWarning("correlation", "zero variance in the observed series", 0))
	case stat.Variance(p, nil) == 0:
		errors.Warn(errors.NewUndefinedMetricWarning("correlation", "zero variance in the predicted series", 0))
	default:
		corr = stat.Correlation(o, p, nil)
	}

	return Scores{
		N:           len(o),
		RMSE:        math.Sqrt(sq / n),
		MAE:         abs / n,
		Bias:        diff / n,
		Correlation: corr,
	}, nil
}

// SiteScores pairs a predictand location with its verification measures.
type SiteScores struct {
	Site grid.Site
	Scores
}

// EvaluateSites scores one prediction member against the observed series,
// site by site. The two sets must share the time and site axes exactly.
func EvaluateSites(obs *grid.PredictandSet, pred *grid.PredictionSet, member int) ([]SiteScores, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	if member < 0 || member >= len(pred.Members) {
		return nil, errors.NewValueError("metrics.EvaluateSites", "prediction member index out of range")
	}
	if len(pred.Times) != len(obs.Times) {
		return nil, errors.NewShapeMismatchError("metrics.EvaluateSites", len(obs.Times), len(pred.Times), 0)
	}
	for i := range obs.Times {
		if !obs.Times[i].Equal(pred.Times[i]) {
			return nil, errors.Wrapf(
				errors.NewShapeMismatchError("metrics.EvaluateSites", len(obs.Times), i, 0),
				"observed and predicted time axes diverge at index %d", i)
		}
	}
	if len(pred.Sites) != len(obs.Sites) {
		return nil, errors.NewShapeMismatchError("metrics.EvaluateSites", len(obs.Sites), len(pred.Sites), 1)
	}

	n := len(obs.Times)
	obsCol := make([]float64, n)
	predCol := make([]float64, n)
	out := make([]SiteScores, len(obs.Sites))
	for s := range obs.Sites {
		for i := 0; i < n; i++ {
			obsCol[i] = obs.Data.At(i, s)
			predCol[i] = pred.Members[member].At(i, s)
		}
		scores, err := Evaluate(obsCol, predCol)
		if err != nil {
			return nil, errors.Wrapf(err, "site %s", obs.Sites[s].ID)
		}
		out[s] = SiteScores{Site: obs.Sites[s], Scores: scores}
	}
	return out, nil
}
