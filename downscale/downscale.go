// Package downscale orchestrates the statistical downscaling pipeline: it
// dispatches trained backends over prepared matrices, enforces the legality
// table between methods, fitting modes and site layouts, projects new
// predictors through the transforms recorded at preparation time, simulates
// from the fitted distributions when requested, and drives seasonal
// cross-validation over a bounded worker pool.
//
// Training consumes a prepare.Data and yields an Experiment: the model
// artifact plus the ModelInfo descriptor and the recorded transform needed
// to predict on new data. Experiments serialize to a compact file format for
// later prediction runs.
package downscale

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/statclim/downgo/pkg/errors"
	"github.com/statclim/downgo/pkg/log"
	"github.com/statclim/downgo/prepare"
)

// Artifact is a trained backend model. Concrete artifacts live in this
// package; Predict drives them through ModelInfo, never by inspecting their
// shape.
type Artifact interface {
	predict(x *mat.Dense, info ModelInfo, rng *rand.Rand) (*mat.Dense, error)
}

// Experiment is the result of a training run: the descriptor, the recorded
// data transforms and the fitted artifact. It carries everything prediction
// needs, so it can be persisted and reloaded on another host.
type Experiment struct {
	Info     ModelInfo
	Prepared *prepare.Data
	Artifact Artifact
}

// Train fits the selected method on prepared data. The method, fitting mode,
// site layout and simulation flag are checked against the legality table
// before any fitting starts. Single-site fits run one model per output
// column on a bounded worker pool.
func Train(data *prepare.Data, method Method, cfg TrainConfig) (exp *Experiment, err error) {
	defer errors.Recover(&err, "downscale.Train")
	started := time.Now()
	logger := log.GetLoggerWithName("downscale")

	if data == nil || data.X == nil || data.Y == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "downscale.Train: no prepared data")
	}
	if err := checkCombination(method, &cfg); err != nil {
		return nil, err
	}

	var artifact Artifact
	singleSite := !cfg.Joint

	switch method {
	case Analogs:
		if err := cfg.Analog.validate(); err != nil {
			return nil, err
		}
		artifact = trainAnalog(data, cfg.Analog)
		singleSite = false
	case GLM:
		artifact, err = trainGLM(data, &cfg)
		if err != nil {
			return nil, err
		}
	case Neural:
		artifact, err = trainNeural(data, &cfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewValidationError("Method", "unknown method", method)
	}

	exp = &Experiment{
		Info: ModelInfo{
			Method:     method,
			Mode:       cfg.Mode,
			Family:     cfg.Family,
			SingleSite: singleSite,
			Simulate:   cfg.Simulate,
			Seed:       cfg.Seed,
		},
		Prepared: data,
		Artifact: artifact,
	}

	logger.Info("trained experiment",
		log.OperationKey, log.OperationTrain,
		log.MethodKey, method.String(),
		log.ModeKey, cfg.Mode.String(),
		log.FamilyKey, cfg.Family.String(),
		log.SamplesKey, data.Samples(),
		log.FeaturesKey, data.Features(),
		log.SitesKey, len(data.Sites),
		log.RandomSeedKey, cfg.Seed,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)
	return exp, nil
}

// column copies column j of m into a fresh slice.
func column(m *mat.Dense, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	mat.Col(out, j, m)
	return out
}
