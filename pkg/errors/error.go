// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Configuration errors (100-199): Invalid engine configuration, rejected at construction
//   - Data errors (200-299): Malformed or non-monotonic bars encountered mid-feed
//   - Signal errors (300-399): Signal source failures
//   - Sizing errors (400-499): Position sizing policy errors
//   - Portfolio errors (500-599): Multi-asset rebalancing errors
//   - Engine/run errors (600-699): Replay loop and lifecycle errors
//   - Sink errors (700-799): Trade/event sink persistence errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidLeverage, "leverage must be positive")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeNonMonotonicBar, "bar %d moves backwards in time", index)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeSinkWriteFailed, "failed to persist trade", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeNonMonotonicBar) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsConfiguration reports whether err is a construction-time configuration error.
func IsConfiguration(err error) bool {
	code := GetCode(err)

	return code >= 100 && code < 200
}

// IsData reports whether err is a data error that halted a run mid-feed.
func IsData(err error) bool {
	code := GetCode(err)

	return code >= 200 && code < 300
}

// DataHaltError is a data error carrying the feed index of the offending bar.
// The replay loop halts on it and reports the index so that batch sweeps can
// report partial results accurately.
type DataHaltError struct {
	Index   int    // Feed index of the offending bar
	Symbol  string // Optional: symbol context
	Message string // Human-readable message
	Cause   error  // Optional underlying error
}

// NewDataHaltError creates a new DataHaltError.
func NewDataHaltError(index int, symbol, message string) *DataHaltError {
	return &DataHaltError{
		Index:   index,
		Symbol:  symbol,
		Message: message,
		Cause:   nil,
	}
}

// NewDataHaltErrorf creates a new DataHaltError with a formatted message.
func NewDataHaltErrorf(index int, symbol, format string, args ...any) *DataHaltError {
	return &DataHaltError{
		Index:   index,
		Symbol:  symbol,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Error implements the error interface.
func (e *DataHaltError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (bar %d): %v", e.Message, e.Index, e.Cause)
	}

	return fmt.Sprintf("%s (bar %d)", e.Message, e.Index)
}

// Unwrap returns the underlying error cause.
func (e *DataHaltError) Unwrap() error {
	return e.Cause
}

// IsDataHaltError checks if an error is a DataHaltError.
// It uses errors.As to check the error chain.
func IsDataHaltError(err error) bool {
	var haltErr *DataHaltError

	return errors.As(err, &haltErr)
}
