// Package log provides structured logging for downscaling operations.
//
// This package defines a minimal, slog-compatible logging interface that
// decouples the library from any particular logging backend while still
// providing domain-specific structured attributes (operations, data shapes,
// fold context). The default provider is backed by zerolog; an slog bridge
// and a capturing test logger are also included.
//
// Key features:
//   - slog-compatible interface and levels
//   - standard attribute keys for downscaling workflows (operations, shapes, folds)
//   - context-aware logging with field chaining
//   - test-friendly with configurable output destinations
//
// Example usage:
//
//	logger := log.GetLoggerWithName("downscale").With(
//	    log.MethodKey, "GLM",
//	    log.ExperimentIDKey, "exp-001",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationTrain,
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 15,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// The interface provides the core logging methods with structured field
// support and is implementation-agnostic, so backends can be swapped without
// touching call sites. Contextual loggers are created with With.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	// Debug logs carry detailed diagnostic information and are usually
	// disabled outside development.
	//
	// Example:
	//
	//	logger.Debug("Scanning penalty path",
	//	    "lambda_index", 42,
	//	    "deviance", 103.7,
	//	)
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	//
	// Example:
	//
	//	logger.Info("Model training completed",
	//	    log.DurationMsKey, 5432,
	//	    log.SitesKey, 12,
	//	)
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	// Warnings indicate situations that do not stop the run, such as an
	// iterative fit hitting its iteration cap.
	//
	// Example:
	//
	//	logger.Warn("Fold failed, continuing",
	//	    log.FoldKey, 3,
	//	    log.ErrorCodeKey, log.ErrorConvergence,
	//	)
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If an error value is provided as a field value, stack trace
	// information may be included by the backend.
	//
	// Example:
	//
	//	logger.Error("Training failed",
	//	    "error", err,
	//	    log.OperationKey, log.OperationTrain,
	//	    log.SamplesKey, 1000,
	//	)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated, so
	// common context is included in every subsequent message.
	//
	// Example:
	//
	//	foldLogger := logger.With(log.FoldKey, 2, log.FoldsKey, 5)
	//	foldLogger.Info("Fold trained") // carries the fold context
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip expensive field construction for disabled levels.
	//
	// Example:
	//
	//	if logger.Enabled(ctx, LevelDebug) {
	//	    logger.Debug("Deviance path", "path", expensiveSummary())
	//	}
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // detailed diagnostic information
	LevelInfo  Level = 0  // general operational information
	LevelWarn  Level = 4  // warning conditions
	LevelError Level = 8  // error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It exists for dependency
// injection and for swapping the backend in tests.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a component identifier attached.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers created by this provider.
	SetLevel(level Level)
}
