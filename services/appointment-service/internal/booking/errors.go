package booking

import (
	"errors"
	"fmt"

	"github.com/salonbook/salonbook/services/appointment-service/internal/availability"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("time slot already booked")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("appointment not found")
	// ErrRepository wraps storage failures. Its detail is for logs only.
	ErrRepository = errors.New("repository failure")
)

// ValidationError names the offending input field. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func repositoryError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRepository, op, err)
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, availability.ErrRejected):
		return "rejected"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	}
	return "error"
}
