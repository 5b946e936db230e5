// Package apperror defines the application's error taxonomy.
//
// Every error kind the API can surface has a sentinel here. Services return
// AppError values wrapping one of the sentinels; the HTTP layer maps them to
// status codes in exactly one place (handler.writeError). Keeping the set
// closed means a new error kind forces a conscious decision about its status
// code instead of falling through to a generic 500.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")  // upstream 429 — caller may retry
	ErrUnavailable  = errors.New("unavailable")   // upstream 503 — caller may retry
	ErrConfig       = errors.New("misconfigured") // missing/invalid API key etc. — not retryable
)

// AppError carries the human-readable message alongside the sentinel kind.
//
// errors.Is(err, ErrValidation) works through any number of fmt.Errorf("%w")
// wrappings because AppError implements Unwrap.
type AppError struct {
	Err     error  // one of the sentinels above
	Message string // returned to the client verbatim
	Field   string // optional: field that caused a validation failure
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

func Unauthorized(message string) *AppError {
	return &AppError{Err: ErrUnauthorized, Message: message}
}

func Forbidden(message string) *AppError {
	return &AppError{Err: ErrForbidden, Message: message}
}

// NotFound is used both for genuinely absent records and for records owned by
// another user. Cross-user access must look identical to a miss — a 403 would
// leak that the resource exists.
func NotFound(resource, id string) *AppError {
	return &AppError{Err: ErrNotFound, Message: fmt.Sprintf("%s not found with id %s", resource, id)}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

func RateLimited(message string) *AppError {
	return &AppError{Err: ErrRateLimited, Message: message}
}

func Unavailable(message string) *AppError {
	return &AppError{Err: ErrUnavailable, Message: message}
}

func Config(message string) *AppError {
	return &AppError{Err: ErrConfig, Message: message}
}
