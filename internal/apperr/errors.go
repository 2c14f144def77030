// Package apperr holds the error taxonomy shared by the store, service and
// transport layers. Callers match with errors.Is / errors.As; the HTTP layer is
// the only place these are turned into status codes.
package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrValidation marks client-fixable input problems (400).
	ErrValidation = errors.New("validation error")
	// ErrAuthentication marks failed credential checks (401). It is deliberately
	// vague: it never says whether the username exists.
	ErrAuthentication = errors.New("invalid credentials")
	// ErrAuthorization marks a token that is present but invalid or expired (403).
	ErrAuthorization = errors.New("token invalid or expired")
	// ErrConflict marks a duplicate resource (409).
	ErrConflict = errors.New("already exists")
	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = errors.New("not found")
	// ErrIntegrity marks corrupted persisted data, e.g. an unparseable hash.
	ErrIntegrity = errors.New("integrity error")
	// ErrStore marks datastore failures.
	ErrStore = errors.New("store error")
)

// Violation describes one failed validation rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries the complete set of violations for a request.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

// Is reports ErrValidation so callers need not know the concrete type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns nil when there is nothing to report.
func NewValidationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
