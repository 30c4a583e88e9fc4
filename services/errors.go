package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers absent rows and draft courses viewed by
	// outsiders (drafts are treated as non-existent to them)
	ErrNotFound = errors.New("not found")

	// ErrForbidden covers role/ownership mismatches and ineligible
	// enrollment attempts
	ErrForbidden = errors.New("forbidden")
)

// Machine-readable enrollment rejection reasons surfaced with a 403
const (
	ReasonBlocked            = "blocked"
	ReasonAlreadyEnrolled    = "already_enrolled"
	ReasonRegistrationClosed = "registration_closed"
	ReasonRoleNotAllowed     = "role_not_allowed"
	ReasonNotEnrolled        = "not_enrolled"
	ReasonNotOwner           = "not_owner"
)

// ForbiddenError carries the rejection reason alongside ErrForbidden so
// handlers can return it as a machine-readable error code
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Forbidden builds a ForbiddenError for the given reason
func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

// ForbiddenReason extracts the reason from an error chain, or ""
func ForbiddenReason(err error) string {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}

// ValidationError names the offending field of malformed input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidation extracts a ValidationError from an error chain
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
