package model

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP status codes; wrap them with
// fmt.Errorf("...: %w", kind) or the helpers below to add a message.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthorized")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// KindError carries a client-facing message alongside its kind.
type KindError struct {
	Kind    error
	Message string
	// Details is merged into the JSON error body when set.
	Details map[string]interface{}
}

func (e *KindError) Error() string {
	return e.Message
}

func (e *KindError) Unwrap() error {
	return e.Kind
}

func Invalid(format string, args ...interface{}) error {
	return &KindError{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) error {
	return &KindError{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &KindError{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) error {
	return &KindError{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...interface{}) error {
	return &KindError{Kind: ErrUnauthenticated, Message: fmt.Sprintf(format, args...)}
}
