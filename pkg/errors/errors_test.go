package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Train",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "downgo: Train: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "downgo: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewShapeMismatchError(t *testing.T) {
	err := NewShapeMismatchError("Build", 120, 118, 0)

	want := "downgo: Build: shape mismatch on axis 0 (rows). Expected 120, got 118"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var shapeErr *ShapeMismatchError
	if !As(err, &shapeErr) {
		t.Error("Error should be castable to *ShapeMismatchError")
	}
	if shapeErr.Axis != 0 {
		t.Errorf("Axis = %d, want 0", shapeErr.Axis)
	}
}

func TestNewUnsupportedCombinationError(t *testing.T) {
	err := NewUnsupportedCombinationError("GLM", "groupLasso", "requires multiple sites")

	want := "downgo: GLM with fitting mode groupLasso is not supported: requires multiple sites"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var combErr *UnsupportedCombinationError
	if !As(err, &combErr) {
		t.Error("Error should be castable to *UnsupportedCombinationError")
	}
}

func TestNewUnsupportedSimulationError(t *testing.T) {
	err := NewUnsupportedSimulationError("gaussian")

	want := `downgo: stochastic simulation is not supported for family "gaussian"`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var simErr *UnsupportedSimulationError
	if !As(err, &simErr) {
		t.Error("Error should be castable to *UnsupportedSimulationError")
	}
}

func TestNewIncompleteCoverageError(t *testing.T) {
	tests := []struct {
		name    string
		missing []int
		total   int
		want    string
	}{
		{
			name:    "few missing indices listed in full",
			missing: []int{3, 7},
			total:   10,
			want:    "downgo: CrossValidate: 2 of 10 time indices were never predicted: [3 7]",
		},
		{
			name:    "long list truncated",
			missing: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
			total:   100,
			want:    "downgo: CrossValidate: 12 of 100 time indices were never predicted (first 10: [0 1 2 3 4 5 6 7 8 9])",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewIncompleteCoverageError("CrossValidate", tt.missing, tt.total)
			if err.Error() != tt.want {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.want)
			}

			var covErr *IncompleteCoverageError
			if !As(err, &covErr) {
				t.Error("Error should be castable to *IncompleteCoverageError")
			}
			if len(covErr.Missing) != len(tt.missing) {
				t.Errorf("Missing length = %d, want %d", len(covErr.Missing), len(tt.missing))
			}
		})
	}
}

func TestNewConvergenceError(t *testing.T) {
	err := NewConvergenceError("IRLS", 25, "deviance diverged")

	want := "downgo: IRLS did not converge after 25 iterations: deviance diverged"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var convErr *ConvergenceError
	if !As(err, &convErr) {
		t.Error("Error should be castable to *ConvergenceError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Experiment", "Predict")

	want := "downgo: Experiment: this model is not fitted yet. Call Train() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValueError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		param   string
		value   interface{}
		message string
		wantMsg string
	}{
		{
			name:    "with message",
			op:      "SetOption",
			param:   "variance_explained",
			value:   -0.5,
			message: "must be in (0, 1]",
			wantMsg: "downgo: SetOption: variance_explained: -0.5 (must be in (0, 1])",
		},
		{
			name:    "without message",
			op:      "SetOption",
			param:   "analog_count",
			value:   0,
			message: "",
			wantMsg: "downgo: SetOption: analog_count: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.message != "" {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v (%s)", tt.param, tt.value, tt.message))
			} else {
				err = NewValueError(tt.op, fmt.Sprintf("%s: %v", tt.param, tt.value))
			}

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			var valErr *ValueError
			if !As(err, &valErr) {
				t.Error("Error should be castable to *ValueError")
			}
		})
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("ElasticNet", 1000, "loss did not decrease")

	want := "ElasticNet failed to converge after 1000 iterations: loss did not decrease"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}

	var convWarn *ConvergenceWarning
	if !As(warn, &convWarn) {
		t.Error("Warning should be castable to *ConvergenceWarning")
	}
}

func TestWrapAndIs(t *testing.T) {
	baseErr := ErrNotImplemented

	wrapped := Wrap(baseErr, "in Experiment.Predict")

	if !Is(wrapped, ErrNotImplemented) {
		t.Error("Expected Is(wrapped, ErrNotImplemented) to be true")
	}

	if !strings.Contains(wrapped.Error(), "in Experiment.Predict") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestWrapf(t *testing.T) {
	baseErr := ErrEmptyData

	wrapped := Wrapf(baseErr, "in %s: fold %d of %d", "CrossValidate", 3, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in CrossValidate: fold 3 of 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestErrorChaining(t *testing.T) {
	err1 := fmt.Errorf("base error")
	err2 := Wrap(err1, "wrapped once")
	err3 := NewModelError("Operation", "failed", err2)

	if !strings.Contains(err3.Error(), "base error") {
		t.Error("Expected error chain to contain base error")
	}

	formatted := fmt.Sprintf("%+v", err3)
	if !strings.Contains(formatted, "errors_test.go") {
		t.Error("Expected detailed error to contain stack trace")
	}
}
