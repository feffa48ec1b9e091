package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by services and handlers. Services wrap these with
// fmt.Errorf("...: %w") and handlers map them to status codes via StatusFor.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrUnavailable    = errors.New("database unavailable")
	ErrBroadcast      = errors.New("broadcast failed")
	ErrTooLarge       = errors.New("payload too large")
)

// ValidationError is an ErrInvalidRequest whose message is safe to show to
// API clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidMessage wraps a fixed client-facing message without formatting it.
func InvalidMessage(msg string) error {
	return &ValidationError{Message: msg}
}

// PublicMessage returns the client-facing text of a validation error, or
// fallback for anything else.
func PublicMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return fallback
}

// StatusFor maps an error to its HTTP status. A duplicate reaction is a 400,
// matching the public API clients already handle.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Outcome is the tagged result of a create operation.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeInvalid
	OutcomeNotFound
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrInvalidRequest):
		return OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrConflict):
		return OutcomeDuplicate
	default:
		return OutcomeFailed
	}
}
