// Package downgo provides empirical statistical downscaling for Go: it
// relates large-scale atmospheric predictor fields to local observations
// and produces calibrated point-scale series from reanalysis or seasonal
// forecast ensembles.
//
// The pipeline follows the perfect-prognosis approach: prepare aligned
// matrices from gridded predictors and station predictands, train a
// transfer method on the historical overlap, then project new predictor
// fields through the exact recorded transform to predict local values.
//
// # Features
//
// - Transfer methods: analogs, generalized linear models, neural networks
// - Predictor reduction: per-variable or joint principal components, recorded and never refit
// - Fitting modes: stepwise selection, lasso/ridge/elastic-net paths, group lasso, pseudo-inverse
// - Stochastic simulation from the fitted Bernoulli and Gamma distributions
// - Seasonal cross-validation with per-fold preparation on a bounded worker pool
// - Compact experiment files for training once and predicting elsewhere
//
// # Installation
//
//	go get github.com/statclim/downgo
//
// # Quick Start
//
// Training on a historical overlap and downscaling new predictors:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/statclim/downgo/downscale"
//	    "github.com/statclim/downgo/prepare"
//	)
//
//	func main() {
//	    // predictors: *grid.PredictorSet, predictand: *grid.PredictandSet
//	    data, err := prepare.Build(predictors, predictand, prepare.Options{
//	        SpatialPredictors: &prepare.PCOptions{VarianceExplained: 0.95},
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    exp, err := downscale.Train(data, downscale.GLM, downscale.TrainConfig{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    pred, err := downscale.Predict(exp, newPredictors)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println("downscaled steps:", len(pred.Times))
//	}
//
// # Packages
//
//   - grid: gridded predictor sets, point predictand sets and prediction series
//   - prepare: matrix building, standardization, principal-component reduction, missing-value policy
//   - regression: iteratively reweighted GLMs, stepwise selection, elastic net, group lasso, pseudo-inverse
//   - nnet: single-hidden-layer perceptron
//   - downscale: method dispatch, training, prediction, cross-validation, experiment persistence
//   - metrics: verification measures for downscaled series
//   - pkg/errors: typed error taxonomy with structured logging support
//   - pkg/log: logging interface with a zerolog provider
//   - core/parallel: parallel loop helpers and bounded worker pools
//
// # Reproducibility
//
// Every stochastic step runs off an explicit seed: simulation draws, the
// internal fold assignment of penalty searches and neural weight
// initialization all reproduce exactly for the same seed and data. Fitted
// experiments serialize with their recorded transforms, so a reloaded
// experiment predicts bit-identical values.
package downgo
