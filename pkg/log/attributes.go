// Standard attribute keys for downscaling operations.
//
// Using these keys consistently across the library keeps log output
// analyzable: every training run, prediction and cross-validation fold
// reports its context under the same names. Keys follow a hierarchical
// naming convention ("model.method", "data.sites", "cv.fold") to support
// structured filtering.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model or component doing the work.
	// Examples: "Experiment", "ElasticNet", "Network"
	ModelNameKey = "model.name"

	// MethodKey identifies the downscaling method.
	// Values: "analogs", "GLM", "neural"
	MethodKey = "model.method"

	// FamilyKey identifies the GLM family in use.
	// Values: "gaussian", "binomial", "gamma", "poisson"
	FamilyKey = "model.family"

	// ModeKey identifies the fitting mode.
	// Values: "none", "stepwise", "L1", "L2", "L1L2", "groupLasso", "MP"
	ModeKey = "model.fitting_mode"

	// ExperimentIDKey provides a unique identifier for a trained experiment.
	ExperimentIDKey = "experiment.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "prepare", "train", "predict", "cross_validate"
	OperationKey = "ml.operation"

	// ComponentKey identifies the package performing the operation.
	// Examples: "prepare", "downscale", "regression"
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase.
	// Examples: "preparation", "training", "inference", "validation"
	PhaseKey = "ml.phase"
)

// Data shape and characteristics.
const (
	// SamplesKey is the number of time steps (rows) being processed.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of predictor columns after flattening or
	// reduction. Important when debugging shape mismatches.
	FeaturesKey = "data.features"

	// SitesKey is the number of predictand locations.
	SitesKey = "data.sites"

	// VariablesKey is the number of predictor variables before flattening.
	VariablesKey = "data.variables"

	// MembersKey is the number of ensemble members in a predictor set.
	MembersKey = "data.members"
)

// Principal-component reduction context.
const (
	// PCComponentsKey is the number of principal components retained.
	PCComponentsKey = "pca.components"

	// PCVarianceKey is the cumulative explained-variance fraction of the
	// retained components.
	PCVarianceKey = "pca.variance_explained"
)

// Cross-validation context.
const (
	// FoldKey is the index of the fold being processed.
	FoldKey = "cv.fold"

	// FoldsKey is the total number of folds in the partition.
	FoldsKey = "cv.folds"

	// WorkersKey is the size of the fold worker pool.
	WorkersKey = "cv.workers"
)

// Performance metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the current iteration of an iterative fit.
	IterationKey = "training.iteration"

	// LossKey records deviance or loss during training.
	LossKey = "metrics.loss"
)

// Error and warning context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	// Examples: "SHAPE_MISMATCH", "UNSUPPORTED_COMBINATION"
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the error type.
	// Examples: "ShapeMismatchError", "ConvergenceError"
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey provides hints for resolving the issue.
	// Example: "Subset the ensemble with SelectMember before training"
	SuggestionKey = "error.suggestion"
)

// Configuration.
const (
	// RandomSeedKey records the random seed, for reproducibility of
	// stochastic simulation and fold shuffling.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute value constants.
const (
	// Operations
	OperationPrepare       = "prepare"
	OperationTrain         = "train"
	OperationPredict       = "predict"
	OperationTransform     = "transform"
	OperationCrossValidate = "cross_validate"
	OperationSimulate      = "simulate"

	// Phases
	PhasePreparation = "preparation"
	PhaseTraining    = "training"
	PhaseValidation  = "validation"
	PhaseInference   = "inference"

	// Error codes
	ErrorNotFitted              = "NOT_FITTED"
	ErrorShapeMismatch          = "SHAPE_MISMATCH"
	ErrorUnsupportedCombination = "UNSUPPORTED_COMBINATION"
	ErrorUnsupportedSimulation  = "UNSUPPORTED_SIMULATION"
	ErrorIncompleteCoverage     = "INCOMPLETE_COVERAGE"
	ErrorConvergence            = "CONVERGENCE_FAILURE"
	ErrorEmptyData              = "EMPTY_DATA"
	ErrorSingularMatrix         = "SINGULAR_MATRIX"
)
