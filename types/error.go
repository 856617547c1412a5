package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Pipeline error codes
const (
	// ErrConfigMissing indicates a required credential or setting is absent.
	// Fatal at startup, never retried.
	ErrConfigMissing ErrorCode = "CONFIG_MISSING"

	// ErrSubmitFailed indicates a job creation request was rejected or the
	// transport failed. Submissions are not assumed idempotent, so this is
	// never retried silently.
	ErrSubmitFailed ErrorCode = "SUBMIT_FAILED"

	// ErrTransientFetch indicates a status check failed at the transport
	// level or with a 5xx-style response. The poll loop swallows these and
	// keeps polling until its attempt budget runs out.
	ErrTransientFetch ErrorCode = "TRANSIENT_FETCH"

	// ErrFetchFailed indicates a status check was rejected outright (a 4xx
	// response). Unlike ErrTransientFetch this aborts the poll loop.
	ErrFetchFailed ErrorCode = "FETCH_FAILED"

	// ErrTerminalFailure indicates the remote job itself reported FAILED or
	// CANCELED. The remote message is carried through verbatim.
	ErrTerminalFailure ErrorCode = "TERMINAL_FAILURE"

	// ErrDecodeFailed indicates a job finished but its terminal payload was
	// missing the expected result. The job is done; retrying cannot help.
	ErrDecodeFailed ErrorCode = "DECODE_FAILED"

	// ErrTimeout indicates a poll loop exhausted its attempt budget.
	ErrTimeout ErrorCode = "TIMEOUT"

	// ErrInternal is a catch-all for local failures (filesystem, encoding).
	ErrInternal ErrorCode = "INTERNAL"

	// ErrInvalidRequest indicates a malformed API request.
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrBusy indicates a pipeline run is already in flight.
	ErrBusy ErrorCode = "BUSY"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code of the remote response.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err carries a retryable *Error anywhere in
// its chain. Unknown error types are not retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCode extracts the error code from an error, or "" for foreign errors.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
