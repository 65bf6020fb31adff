package downscale

import (
	"math/rand/v2"
	"time"

	"github.com/statclim/downgo/grid"
	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/pkg/log"
)

// Predict downscales a new predictor set with a trained experiment. Each
// ensemble member is projected through the transform recorded at preparation
// time, never refitted, then run through the artifact selected by the
// experiment's ModelInfo. Predictand components are mapped back to sites
// through the recorded inverse. The output carries the times of the new
// predictors and the sites of the training data.
//
// Simulation draws come from a PCG source seeded with the experiment seed,
// so repeated calls on the same experiment and input are identical.
func Predict(exp *Experiment, predictors *grid.PredictorSet) (*grid.PredictionSet, error) {
	started := time.Now()
	logger := log.GetLoggerWithName("downscale")

	if exp == nil || exp.Artifact == nil || exp.Prepared == nil {
		return nil, errors.NewNotFittedError("Experiment", "Predict")
	}

	projected, err := exp.Prepared.Transform(predictors)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(exp.Info.Seed, exp.Info.Seed))
	out := grid.NewPredictionSet(predictors.Times, exp.Prepared.Sites, len(projected))

	for m, x := range projected {
		yhat, err := exp.Artifact.predict(x, exp.Info, rng)
		if err != nil {
			return nil, errors.Wrapf(err, "member %d", m)
		}
		if exp.Prepared.YReduction != nil {
			yhat, err = exp.Prepared.YReduction.Reconstruct(yhat)
			if err != nil {
				return nil, errors.Wrapf(err, "member %d", m)
			}
		}
		r, c := yhat.Dims()
		if r != len(out.Times) || c != len(out.Sites) {
			return nil, errors.NewShapeMismatchError("downscale.Predict", len(out.Sites), c, 1)
		}
		out.Members[m] = yhat
	}

	logger.Info("predicted",
		log.OperationKey, log.OperationPredict,
		log.MethodKey, exp.Info.Method.String(),
		log.SamplesKey, len(out.Times),
		log.SitesKey, len(out.Sites),
		log.MembersKey, len(out.Members),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return out, nil
}
