// Package apperror defines the status-coded errors returned by the user flows.
// Handlers turn them into a single JSON error envelope; anything that is not
// an *Error is reported as an internal failure.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	Authentication
	Persistence
	Upload
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case Persistence:
		return "persistence"
	case Upload:
		return "upload"
	default:
		return "internal"
	}
}

// Error carries a client-facing message and the underlying cause, which is
// logged but never sent to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) StatusCode() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewValidation(message string) *Error {
	return New(Validation, message, nil)
}

func NewAuthentication(message string) *Error {
	return New(Authentication, message, nil)
}

func NewPersistence(message string, err error) *Error {
	return New(Persistence, message, err)
}

func NewUpload(message string, err error) *Error {
	return New(Upload, message, err)
}

// As returns err as an *Error. Unknown errors become Internal with a generic
// message so causes do not leak to clients.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(Internal, "Something went wrong", err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
