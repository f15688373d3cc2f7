package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy of the extraction pipeline.
var (
	// ErrClassification: layout analysis could not segment a page. Recoverable
	// via the whole-page prose fallback, never user-fatal.
	ErrClassification = errors.New("layout classification failed")

	// ErrRecognition: the OCR engine failed or timed out for a region. Fails
	// the page after one retry, siblings keep processing.
	ErrRecognition = errors.New("recognition failed")

	// ErrCacheIO: the cache store is unreadable or an entry is corrupt.
	// Treated as a miss on read, surfaced as a warning on write.
	ErrCacheIO = errors.New("cache i/o error")

	// ErrFingerprintInput: a version or parameter that feeds the fingerprint
	// is missing. Fatal at configuration time, before any page is processed.
	ErrFingerprintInput = errors.New("missing fingerprint input")

	// ErrNotFound is a generic absent-resource sentinel (cache misses).
	ErrNotFound = errors.New("resource not found")

	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
