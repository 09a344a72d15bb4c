package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different failure classes of the pipeline
type ErrorType string

const (
	// Fetch failures
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeUnreachable ErrorType = "unreachable"
	ErrorTypeHTTPStatus  ErrorType = "http_status"

	// Parse failures
	ErrorTypeTableNotFound ErrorType = "table_not_found"
	ErrorTypeRowSkipped    ErrorType = "row_skipped"

	// Persistence failures
	ErrorTypeSchemaInit  ErrorType = "schema_init_failed"
	ErrorTypeWriteFailed ErrorType = "write_failed"

	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error is a typed pipeline error. Code carries the HTTP status for fetch errors.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, msg string, err error) *Error {
	return &Error{Type: t, Message: msg, Err: err}
}

// RateLimited reports that every attempt was throttled
func RateLimited(url string, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeRateLimited,
		Message: fmt.Sprintf("throttled on all %d attempts: %s", attempts, url),
		Code:    429,
	}
}

// Unreachable reports a transport-level failure
func Unreachable(url string, err error) *Error {
	return &Error{
		Type:    ErrorTypeUnreachable,
		Message: url,
		Err:     err,
	}
}

// HTTPStatus reports a non-retried, non-2xx response
func HTTPStatus(url string, code int) *Error {
	return &Error{
		Type:    ErrorTypeHTTPStatus,
		Message: fmt.Sprintf("unexpected status for %s", url),
		Code:    code,
	}
}

// TableNotFound reports that the expected table is absent from a page
func TableNotFound(tableID string) *Error {
	return &Error{
		Type:    ErrorTypeTableNotFound,
		Message: fmt.Sprintf("table %q not found", tableID),
	}
}

// RowSkipped reports a row that could not be extracted
func RowSkipped(tableID string, row int, reason string) *Error {
	return &Error{
		Type:    ErrorTypeRowSkipped,
		Message: fmt.Sprintf("%s row %d: %s", tableID, row, reason),
	}
}

// IsRetryable checks if an error type should be retried by the fetcher
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeRateLimited, ErrorTypeUnreachable:
		return true
	default:
		return false
	}
}

// TypeOf returns the type of a typed error anywhere in the chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries a typed error of the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
