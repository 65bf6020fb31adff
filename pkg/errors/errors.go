// Package errors provides the error handling and warning system used across
// the project. Errors are structured types carrying the context needed to
// diagnose a failed downscaling run (operation, shapes, method/mode pairs,
// uncovered indices) and gain stack traces through cockroachdb/errors.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// Default handler logs to standard error.
		log.Printf("downgo-Warning: %v\n", w)
	}
	// zerolog warn hook, injected lazily to avoid an import cycle with pkg/log.
	zerologWarnFunc func(warning error)
)

// SetWarningHandler installs a library-wide handler for non-fatal warnings
// such as ConvergenceWarning.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc wires warnings into the zerolog pipeline. Called by
// pkg/log during provider setup.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning through the zerolog hook when one is installed,
// falling back to the plain handler otherwise.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warning types
//
// ===========================================================================

// ConvergenceWarning reports that an iterative fit stopped at its iteration
// cap without meeting the tolerance. Non-fatal: the last iterate is still
// usable, unlike ConvergenceError.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the structured warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a new ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning reports a verification measure that is ill-defined
// for the given series, e.g. correlation of a constant prediction.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // value returned under this condition
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// NewUndefinedMetricWarning creates a new UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Structured error types
//
// ===========================================================================

// NotFittedError is returned when Predict or Transform is called on a model
// that has not been trained.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("downgo: %s: this model is not fitted yet. Call Train() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace attached.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// ShapeMismatchError is returned when two data structures that must share an
// axis do not, e.g. predictor and predictand time axes of different length,
// or a prediction matrix with the wrong feature count. Detected before any
// numeric work starts.
type ShapeMismatchError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows/time, 1 for columns/features
}

func (e *ShapeMismatchError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("downgo: %s: shape mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError creates a ShapeMismatchError with a stack trace attached.
func NewShapeMismatchError(op string, expected, got, axis int) error {
	err := &ShapeMismatchError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// UnsupportedCombinationError is returned when a method, fitting mode and
// site layout cannot be combined, e.g. group lasso on a single site or an
// L1 path fitted jointly over multiple sites.
type UnsupportedCombinationError struct {
	Method string
	Mode   string
	Reason string
}

func (e *UnsupportedCombinationError) Error() string {
	return fmt.Sprintf("downgo: %s with fitting mode %s is not supported: %s", e.Method, e.Mode, e.Reason)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *UnsupportedCombinationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("method", e.Method).
		Str("mode", e.Mode).
		Str("reason", e.Reason).
		Str("type", "UnsupportedCombinationError")
}

// NewUnsupportedCombinationError creates an UnsupportedCombinationError with a
// stack trace attached.
func NewUnsupportedCombinationError(method, mode, reason string) error {
	err := &UnsupportedCombinationError{Method: method, Mode: mode, Reason: reason}
	return errors.WithStack(err)
}

// UnsupportedSimulationError is returned when stochastic simulation is
// requested for a model family that has no defined noise model.
type UnsupportedSimulationError struct {
	Family string
}

func (e *UnsupportedSimulationError) Error() string {
	return fmt.Sprintf("downgo: stochastic simulation is not supported for family %q", e.Family)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *UnsupportedSimulationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("family", e.Family).
		Str("type", "UnsupportedSimulationError")
}

// NewUnsupportedSimulationError creates an UnsupportedSimulationError with a
// stack trace attached.
func NewUnsupportedSimulationError(family string) error {
	err := &UnsupportedSimulationError{Family: family}
	return errors.WithStack(err)
}

// IncompleteCoverageError reports time indices that no cross-validation fold
// wrote, either because the fold specification does not cover the record or
// because folds failed. The partial result is still returned alongside it.
type IncompleteCoverageError struct {
	Op      string
	Missing []int
	Total   int
}

func (e *IncompleteCoverageError) Error() string {
	n := len(e.Missing)
	if n <= 10 {
		return fmt.Sprintf("downgo: %s: %d of %d time indices were never predicted: %v", e.Op, n, e.Total, e.Missing)
	}
	return fmt.Sprintf("downgo: %s: %d of %d time indices were never predicted (first 10: %v)", e.Op, n, e.Total, e.Missing[:10])
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *IncompleteCoverageError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("missing", len(e.Missing)).
		Int("total", e.Total).
		Str("type", "IncompleteCoverageError")
}

// NewIncompleteCoverageError creates an IncompleteCoverageError with a stack
// trace attached.
func NewIncompleteCoverageError(op string, missing []int, total int) error {
	err := &IncompleteCoverageError{Op: op, Missing: missing, Total: total}
	return errors.WithStack(err)
}

// ConvergenceError is the fatal form of ConvergenceWarning: the iterative fit
// diverged or produced no usable estimate. Callers attach fold and site
// context with Wrapf; the fit is never retried.
type ConvergenceError struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (e *ConvergenceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("downgo: %s did not converge after %d iterations: %s", e.Algorithm, e.Iterations, e.Message)
	}
	return fmt.Sprintf("downgo: %s did not converge after %d iterations", e.Algorithm, e.Iterations)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ConvergenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).
		Int("iterations", e.Iterations).
		Str("message", e.Message).
		Str("type", "ConvergenceError")
}

// NewConvergenceError creates a ConvergenceError with a stack trace attached.
func NewConvergenceError(algorithm string, iterations int, message string) error {
	err := &ConvergenceError{Algorithm: algorithm, Iterations: iterations, Message: message}
	return errors.WithStack(err)
}

// ValidationError is returned when an input parameter fails validation.
// More specific than ValueError: it names the offending parameter.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("downgo: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the structured error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace attached.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument value is invalid for the operation.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("downgo: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace attached.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError is a general error raised by a model backend.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("downgo: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("downgo: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace attached.
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// NumericalInstabilityError reports NaN, Inf or overflow in the middle of an
// iterative computation.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("downgo: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a
// stack trace attached.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether err matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf wraps an error with a format string.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates a new error.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a new formatted error.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack annotates an error with a stack trace.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Common sentinel errors
//
// ===========================================================================

var (
	// ErrNotImplemented is returned for functionality that is not implemented.
	ErrNotImplemented = New("not implemented")

	// ErrEmptyData is returned when empty data is passed.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a matrix is singular.
	ErrSingularMatrix = New("singular matrix")
)
