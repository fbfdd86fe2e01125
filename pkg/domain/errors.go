package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify failures with errors.Is; the concrete
// error types below carry the context and unwrap to one of these.
var (
	// ErrNotFound reports an unknown session or document id.
	ErrNotFound = errors.New("not found")
	// ErrForbidden reports an identity mismatch on a leader or author gated operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState reports a mutation attempted against a session that cannot accept it.
	ErrInvalidState = errors.New("invalid state")
	// ErrContention reports that the retry ceiling was exhausted by concurrent writers.
	ErrContention = errors.New("contention")
	// ErrValidation reports malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrVersionConflict is returned by DocumentStore.Put when the stored version
	// no longer matches the expected one. SessionStore retries on it.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAlreadyExists is returned by DocumentStore.Create for a duplicate id.
	ErrAlreadyExists = errors.New("already exists")
)

// NotFoundError identifies the missing document.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e NotFoundError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("document %s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Unwrap allows errors.Is(err, ErrNotFound).
func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError reports that User is not allowed to act as the owner of a session.
type ForbiddenError struct {
	Kind Kind
	ID   string
	User UserID
	Role string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("%s is not the %s of %s %s", e.User, e.Role, e.Kind, e.ID)
}

// Unwrap allows errors.Is(err, ErrForbidden).
func (e ForbiddenError) Unwrap() error { return ErrForbidden }

// InvalidStateError reports why a session rejected a mutation.
type InvalidStateError struct {
	Kind   Kind
	ID     string
	Reason string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidState).
func (e InvalidStateError) Unwrap() error { return ErrInvalidState }

// ContentionError is returned once every attempt of a mutation lost a version race.
type ContentionError struct {
	ID       string
	Attempts int
}

func (e ContentionError) Error() string {
	return fmt.Sprintf("document %s: gave up after %d conflicting attempts", e.ID, e.Attempts)
}

// Unwrap allows errors.Is(err, ErrContention).
func (e ContentionError) Unwrap() error { return ErrContention }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e ValidationError) Unwrap() error { return ErrValidation }

// IsRetryable reports whether the caller may reasonably retry the request.
// Only contention is transient; every other kind will fail again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention)
}

// Classify maps err to a stable label used for metrics and exit codes.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrContention):
		return "contention"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
