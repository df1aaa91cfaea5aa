// Package errors provides structured error types for the Strata engine.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryMapping    ErrorCategory = "MAPPING"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes: malformed or out-of-domain input to term parsing.
	CodeOutOfRange      = "OUT_OF_RANGE"
	CodeDecimalPart     = "DECIMAL_PART"
	CodeNumericFormat   = "NUMERIC_FORMAT"
	CodeEmptyDocument   = "EMPTY_DOCUMENT"
	CodeInvalidDocument = "INVALID_DOCUMENT"

	// Mapping codes
	CodeInvalidMapping  = "INVALID_MAPPING"
	CodeMissingColumn   = "MISSING_COLUMN"
	CodeVersionNotFound = "VERSION_NOT_FOUND"

	// Query codes
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeUnknownField         = "UNKNOWN_FIELD"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeSegmentCorrupt = "SEGMENT_CORRUPT"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// StrataError is the structured error type used throughout the engine.
type StrataError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *StrataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StrataError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *StrataError) Is(target error) bool {
	var t *StrataError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new StrataError.
func New(category ErrorCategory, code, message string) *StrataError {
	return &StrataError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new StrataError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *StrataError {
	return &StrataError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *StrataError) WithDetails(details map[string]interface{}) *StrataError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a StrataError.
func GetCategory(err error) ErrorCategory {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a StrataError.
func GetCode(err error) string {
	var se *StrataError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. The term-parsing,
// mapping, and query errors are deterministic functions of their input and
// never retryable; only storage transfer failures are.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

// NewArgumentError reports malformed or out-of-domain input to term
// parsing. Surfaced directly to the caller of a query-construction
// method; never retried.
func NewArgumentError(code, message string) *StrataError {
	return New(ErrCategoryValidation, code, message)
}

// NewUnsupportedOperationError reports an attempt to use an internal
// field in a way it does not support. Signals misuse by a caller, not a
// runtime fault.
func NewUnsupportedOperationError(message string) *StrataError {
	return New(ErrCategoryQuery, CodeUnsupportedOperation, message)
}

// NewConfigurationError reports a request against a representation the
// field was declared without.
func NewConfigurationError(code, message string) *StrataError {
	return New(ErrCategoryMapping, code, message)
}

func NewStorageError(code, message string, cause error) *StrataError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *StrataError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
