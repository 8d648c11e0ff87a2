// Package errors holds the studio's sentinel errors and AppError, which
// pairs a sentinel with the status code, message and optional details shown
// to the user.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrNoTextExtracted     = errors.New("no text extracted")
	ErrNotFound            = errors.New("not found")
	ErrInvalidAPIKey       = errors.New("invalid api key")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUpstream            = errors.New("upstream model failure")
	ErrInvalidResponse     = errors.New("invalid model response")
	ErrRenderFailed        = errors.New("render failed")
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")
)

// statusBySentinel is consulted in order for errors that are not AppErrors.
var statusBySentinel = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnsupportedFormat, http.StatusBadRequest},
	{ErrNoTextExtracted, http.StatusBadRequest},
	{ErrInvalidAPIKey, http.StatusUnauthorized},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrUpstream, http.StatusBadGateway},
	{ErrInvalidResponse, http.StatusBadGateway},
	{ErrRendererUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusGatewayTimeout},
}

// AppError is an error the HTTP layer can show as-is. Err is the sentinel
// (and optional cause) that errors.Is matches against.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Details    string
}

func (e *AppError) Error() string {
	if e.Details == "" {
		return e.Err.Error() + ": " + e.Message
	}
	return e.Err.Error() + ": " + e.Message + " (" + e.Details + ")"
}

func (e *AppError) Unwrap() error { return e.Err }

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// Wrap is New for a failure with an underlying cause. Both sentinel and
// cause stay reachable through errors.Is, and the cause text becomes the
// details.
func Wrap(sentinel, cause error, statusCode int, message string) *AppError {
	if cause == nil {
		return New(sentinel, statusCode, message)
	}
	return &AppError{
		Err:        fmt.Errorf("%w: %w", sentinel, cause),
		Message:    message,
		StatusCode: statusCode,
		Details:    cause.Error(),
	}
}

// WithDetails returns a copy of e with details set.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func asApp(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Message is the user-facing message of err, or its text when err is not
// an AppError.
func Message(err error) string {
	if appErr, ok := asApp(err); ok {
		return appErr.Message
	}
	return err.Error()
}

func Details(err error) string {
	if appErr, ok := asApp(err); ok {
		return appErr.Details
	}
	return ""
}

// HTTPStatusCode maps err to a response status. Unknown errors are 500.
func HTTPStatusCode(err error) int {
	if appErr, ok := asApp(err); ok {
		return appErr.StatusCode
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
