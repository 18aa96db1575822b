// Package apperr defines the error taxonomy shared by services and handlers.
// Services return these values; a single handler-level mapper converts them
// to HTTP status codes. Anything that is not an *Error is treated as an
// internal failure and its details are never exposed to clients.
package apperr

import "errors"

// Kind classifies an error for HTTP mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
	KindConflict
	KindUnauthenticated
)

// Error carries a classification and a human-readable message safe to show
// to clients. Err optionally wraps the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "internal error"
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports that a referenced entity does not exist.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Forbidden reports that the authenticated principal may not perform the
// action on this resource.
func Forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Validation reports malformed or out-of-range input.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// Conflict reports a uniqueness or state conflict, such as a duplicate
// same-day update.
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Unauthenticated reports a missing, invalid or expired credential.
func Unauthenticated(message string) error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// Internal wraps an unexpected failure. The message shown to clients is
// generic; err is retained for logging.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the classification of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// MessageOf extracts the client-safe message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
