package apperr

import "errors"

// Error kinds. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrConflict         = errors.New("conflict")
	ErrStorage          = errors.New("storage error")
	ErrConfiguration    = errors.New("configuration error")
)

// Error carries a kind, a client-facing message and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a missing or malformed client field.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NotFound reports an absent record or asset.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

// Conflict reports a write whose precondition no longer holds.
func Conflict(msg string, err error) error {
	return &Error{Kind: ErrConflict, Message: msg, Err: err}
}

// Storage wraps a backend failure; op names the failed step.
func Storage(op string, err error) error {
	return &Error{Kind: ErrStorage, Message: op, Err: err}
}

// Configuration reports an operator misconfiguration.
func Configuration(msg string) error {
	return &Error{Kind: ErrConfiguration, Message: msg}
}
