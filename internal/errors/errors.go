// Package errors provides structured error types for the annostore system.
// All errors include a category, code, message, and optional cause for
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
	ErrCategoryFormat     ErrorCategory = "FORMAT"
	ErrCategoryDecode     ErrorCategory = "DECODE"
	ErrCategoryCache      ErrorCategory = "CACHE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeDuplicateEntity = "DUPLICATE_ENTITY"
	CodeWriterFinalized = "WRITER_FINALIZED"
	CodeUnknownContext  = "UNKNOWN_CONTEXT"

	// Format codes
	CodeBadSignature       = "BAD_SIGNATURE"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
	CodeMalformedBlock     = "MALFORMED_BLOCK"

	// Decode codes
	CodeTruncated      = "TRUNCATED"
	CodeMalformedTable = "MALFORMED_TABLE"

	// Cache codes
	CodeCacheWriteFailed = "WRITE_FAILED"
	CodeCorruptEntry     = "CORRUPT_ENTRY"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// AnnostoreError is the structured error type used throughout the system.
type AnnostoreError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *AnnostoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *AnnostoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *AnnostoreError) Is(target error) bool {
	var t *AnnostoreError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new AnnostoreError.
func New(category ErrorCategory, code, message string) *AnnostoreError {
	return &AnnostoreError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new AnnostoreError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *AnnostoreError {
	return &AnnostoreError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an AnnostoreError.
func GetCategory(err error) ErrorCategory {
	var ae *AnnostoreError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an AnnostoreError.
func GetCode(err error) string {
	var ae *AnnostoreError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *AnnostoreError {
	return New(ErrCategoryValidation, code, message)
}

func NewFormatError(code, message string) *AnnostoreError {
	return New(ErrCategoryFormat, code, message)
}

func NewDecodeError(code, message string) *AnnostoreError {
	return New(ErrCategoryDecode, code, message)
}

func NewCacheError(code, message string, cause error) *AnnostoreError {
	return Wrap(ErrCategoryCache, code, message, cause)
}

func NewInternalError(message string, cause error) *AnnostoreError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
