package downscale

import (
	"context"
	"time"

	"github.com/statclim/downgo/core/parallel"
	"github.com/statclim/downgo/grid"
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/pkg/log"
	"github.com/statclim/downgo/prepare"
)

// FoldSpec describes how the time record is partitioned for
// cross-validation. Exactly one of the three variants must be set.
type FoldSpec struct {
	// K splits the record into K contiguous folds of near-equal length.
	K int

	// LeaveOneOut holds out each time step in turn.
	LeaveOneOut bool

	// Custom lists explicit held-out index sets. The sets must be disjoint
	// but need not cover the record; uncovered rows are reported as
	// incomplete coverage.
	Custom [][]int
}

// build materializes the held-out index sets over an n-row record.
func (f FoldSpec) build(n int) ([][]int, error) {
	variants := 0
	if f.K > 0 {
		variants++
	}
	if f.LeaveOneOut {
		variants++
	}
	if len(f.Custom) > 0 {
		variants++
	}
	if variants != 1 {
		return nil, errors.NewValidationError("Folds",
			"exactly one fold specification must be set", variants)
	}

	switch {
	case f.LeaveOneOut:
		folds := make([][]int, n)
		for i := range folds {
			folds[i] = []int{i}
		}
		return folds, nil

	case f.K > 0:
		if f.K < 2 {
			return nil, errors.NewValidationError("Folds",
				"contiguous fold count must be at least 2", f.K)
		}
		if f.K > n {
			return nil, errors.NewValidationError("Folds",
				"more folds than time steps", f.K)
		}
		folds := make([][]int, f.K)
		for i := 0; i < f.K; i++ {
			start := i * n / f.K
			end := (i + 1) * n / f.K
			fold := make([]int, 0, end-start)
			for r := start; r < end; r++ {
				fold = append(fold, r)
			}
			folds[i] = fold
		}
		return folds, nil

	default:
		seen := make([]bool, n)
		folds := make([][]int, len(f.Custom))
		for fi, set := range f.Custom {
			if len(set) == 0 {
				return nil, errors.NewValidationError("Folds",
					"custom fold is empty", fi)
			}
			fold := make([]int, len(set))
			for i, r := range set {
				if r < 0 || r >= n {
					return nil, errors.NewValueError("downscale.CrossValidate",
						"custom fold index out of range")
				}
				if seen[r] {
					return nil, errors.NewValidationError("Folds",
						"custom folds must be disjoint", r)
				}
				seen[r] = true
				fold[i] = r
			}
			folds[fi] = fold
		}
		return folds, nil
	}
}

// CVConfig configures a cross-validation run.
type CVConfig struct {
	Method  Method
	Train   TrainConfig
	Prepare prepare.Options
	Folds   FoldSpec

	// Workers bounds the fold pool. Zero means the number of available CPU
	// cores. The internal penalty-search pools of the backends are
	// independent of this pool.
	Workers int
}

// FoldError records the failure of one fold.
type FoldError struct {
	Fold int
	Err  error
}

// CVResult is the outcome of a cross-validation run: the out-of-sample
// prediction series shaped exactly like the predictand, the failures of
// individual folds, and the time indices no fold wrote. Rows listed in
// Missing hold NaN in the prediction series.
type CVResult struct {
	Predictions *grid.PredictionSet
	FoldErrors  []FoldError
	Missing     []int
}

// CrossValidate estimates out-of-sample skill by k-fold cross-validation.
// Every fold re-runs the full preparation on its training rows only, so no
// information from the held-out segment leaks into the recorded transforms,
// then trains and predicts the held-out rows into the shared output series.
//
// Folds run concurrently on a bounded pool; each fold owns fresh copies of
// its subsets. A fold's failure is recorded and the remaining folds
// continue. When rows stay unwritten, because folds failed, the fold
// specification does not cover the record, or ctx was cancelled, the partial
// result is returned together with an IncompleteCoverageError naming the
// missing indices.
func CrossValidate(ctx context.Context, predictors *grid.PredictorSet, predictand *grid.PredictandSet, cfg CVConfig) (*CVResult, error) {
	started := time.Now()
	logger := log.GetLoggerWithName("downscale")

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
			"cross-validation requires exactly one ensemble member; subset the ensemble with SelectMember", mc)
	}
	if err := checkCombination(cfg.Method, &cfg.Train); err != nil {
		return nil, err
	}
	if cfg.Method == Analogs {
		if err := cfg.Train.Analog.validate(); err != nil {
			return nil, err
		}
	}

	n := len(predictand.Times)
	folds, err := cfg.Folds.build(n)
	if err != nil {
		return nil, err
	}

	logger.Info("cross-validation started",
		log.OperationKey, log.OperationCrossValidate,
		log.MethodKey, cfg.Method.String(),
		log.ModeKey, cfg.Train.Mode.String(),
		log.FoldsKey, len(folds),
		log.WorkersKey, cfg.Workers,
		log.SamplesKey, n,
		log.SitesKey, len(predictand.Sites),
	)

	out := grid.NewPredictionSet(predictand.Times, predictand.Sites, 1)
	written := make([]bool, n)
	sites := len(predictand.Sites)

	errs := parallel.ForEachContext(ctx, len(folds), cfg.Workers, func(f int) error {
		test := folds[f]
		train := complement(n, test)

		trainX, err := predictors.Subset(train)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		trainY, err := predictand.Subset(train)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		data, err := prepare.Build(trainX, trainY, cfg.Prepare)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		exp, err := Train(data, cfg.Method, cfg.Train)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		testX, err := predictors.Subset(test)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}
		pred, err := Predict(exp, testX)
		if err != nil {
			return errors.Wrapf(err, "fold %d", f)
		}

		// folds hold disjoint rows, so these writes never overlap
		for i, row := range test {
			for s := 0; s < sites; s++ {
				out.Members[0].Set(row, s, pred.Members[0].At(i, s))
			}
			written[row] = true
		}
		return nil
	})

	result := &CVResult{Predictions: out}
	for f, e := range errs {
		if e != nil {
			result.FoldErrors = append(result.FoldErrors, FoldError{Fold: f, Err: e})
			logger.Error("fold failed",
				log.OperationKey, log.OperationCrossValidate,
				log.FoldKey, f,
				"error", e.Error(),
			)
		}
	}
	for i, w := range written {
		if !w {
			result.Missing = append(result.Missing, i)
		}
	}

	logger.Info("cross-validation finished",
		log.OperationKey, log.OperationCrossValidate,
		log.FoldsKey, len(folds),
		"failed_folds", len(result.FoldErrors),
		"missing_rows", len(result.Missing),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)

	if len(result.Missing) > 0 {
		return result, errors.NewIncompleteCoverageError("downscale.CrossValidate", result.Missing, n)
	}
	return result, nil
}

// complement returns the row indices outside test, ascending.
func complement(n int, test []int) []int {
	held := make([]bool, n)
	for _, i := range test {
		held[i] = true
	}
	out := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !held[i] {
			out = append(out, i)
		}
	}
	return out
}
