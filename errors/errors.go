// Package errors provides error handling for Quire.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	Mark           = crdb.Mark
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the orchestration core.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested artifact or target does not exist.
	// Callers cannot distinguish "not yet produced" from "never declared";
	// both surface as this error.
	ErrNotFound = New("not found")

	// ErrConflict indicates a version conflict on a compare-and-append write
	ErrConflict = New("version conflict")

	// ErrDependencyCycle indicates the stage graph is not a DAG.
	// Fatal: raised at registration validation, before any execution.
	ErrDependencyCycle = New("dependency cycle")

	// ErrMissingInput indicates a stage was dispatched without a committed
	// input artifact. The engine's readiness check prevents this; it can
	// only surface via forced dispatch.
	ErrMissingInput = New("missing input artifact")

	// ErrStageExecution indicates a stage executor returned failure.
	// Local: the stage is Failed and its dependents BlockedDownstream;
	// unrelated branches proceed.
	ErrStageExecution = New("stage execution failed")

	// ErrStageTimeout indicates a per-stage timeout was exceeded.
	// Treated everywhere as a stage execution failure.
	ErrStageTimeout = New("stage timed out")

	// ErrSplitIntegrity indicates a pinned cross-reference cannot survive
	// an automatic split. The artifact is left unsplit and flagged for
	// manual resolution; the pipeline continues for other artifacts.
	ErrSplitIntegrity = New("split would break pinned reference")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsCycleError checks if an error is or wraps ErrDependencyCycle
func IsCycleError(err error) bool {
	return err != nil && Is(err, ErrDependencyCycle)
}

// IsSplitIntegrityError checks if an error is or wraps ErrSplitIntegrity
func IsSplitIntegrityError(err error) bool {
	return err != nil && Is(err, ErrSplitIntegrity)
}

// IsStageTimeoutError checks if an error is or wraps ErrStageTimeout
func IsStageTimeoutError(err error) bool {
	return err != nil && Is(err, ErrStageTimeout)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewCycleError creates a dependency-cycle error naming the offending cycle
func NewCycleError(cycle []string) error {
	err := Wrapf(ErrDependencyCycle, "cycle: %v", cycle)
	return WithHint(err, "remove one of the declared input/output kinds that closes the loop")
}
