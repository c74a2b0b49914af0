// Package errors consolidates error definitions for dcmon.
//
// It provides:
//   - API error codes used by the transport collaborators
//   - Sentinel errors for all error conditions
//   - Category checking functions
//   - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// API error codes - returned to agents and dashboard consumers
// ============================================================================

const (
	CodeUnknown         int32 = 1
	CodeInvalidRequest  int32 = 2
	CodeFutureTimestamp int32 = 3
	CodeNotFound        int32 = 4
	CodeAlreadyExists   int32 = 5
	CodeInternal        int32 = 6
	CodeStorage         int32 = 7
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeFutureTimestamp:
		return "FutureTimestamp"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeInternal:
		return "Internal"
	case CodeStorage:
		return "Storage"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Not found errors
	ErrNotFound       = errors.New("not found")
	ErrClientNotFound = errors.New("client not found")
	ErrSeriesNotFound = errors.New("series not found")

	// Validation errors
	ErrFutureTimestamp  = errors.New("timestamp too far in the future")
	ErrInvalidName      = errors.New("invalid metric name")
	ErrInvalidLabel     = errors.New("invalid label")
	ErrInvalidValueKind = errors.New("invalid value kind")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrEmptyBatch       = errors.New("empty batch")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Storage errors
	ErrStoreClosed = errors.New("store is closed")
)

// ============================================================================
// Category checks
// ============================================================================

// IsValidation reports whether err is a validation failure. Validation
// failures reject the whole batch and must not be blindly retried with the
// identical payload.
func IsValidation(err error) bool {
	return errors.Is(err, ErrFutureTimestamp) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidLabel) ||
		errors.Is(err, ErrInvalidValueKind) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrEmptyBatch)
}

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrSeriesNotFound)
}

// ErrorToCode maps an error to its API code.
func ErrorToCode(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFutureTimestamp):
		return CodeFutureTimestamp
	case IsValidation(err):
		return CodeInvalidRequest
	case IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, ErrStoreClosed):
		return CodeStorage
	default:
		return CodeInternal
	}
}

// ============================================================================
// Validation errors collection
// ============================================================================

// NewValidation creates a configuration validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// ValidationErrors collects multiple validation errors so configuration
// problems are reported together instead of one per restart.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}

// ============================================================================
// Wrapping utilities
// ============================================================================

// Wrap annotates err with a message, preserving the error chain.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf annotates err with a formatted message, preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return errors.As(err, target) }
