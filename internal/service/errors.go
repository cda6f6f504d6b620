package service

import (
	"errors"
	"fmt"
)

// Flow errors are recovered locally with a user-facing message; the
// transport adapter only logs them. PersistenceError is the one class
// an operator must be able to tell apart, since it means the answers of
// a completed survey were not saved.
var (
	// ErrNotFound: the session points at a coordinate the loaded graph
	// does not contain.
	ErrNotFound = errors.New("question not found")
	// ErrValidation: malformed option index, empty multi-select,
	// exclusive-option conflict, stale button. No state change.
	ErrValidation = errors.New("invalid input")
	// ErrNoSession: input arrived outside a running survey; the
	// respondent is greeted instead.
	ErrNoSession = errors.New("no active survey session")
)

// PersistenceError wraps a failed reconciliation. The session is still
// cleared by the caller: a storage outage must not wedge the
// conversation.
type PersistenceError struct {
	UserID int64
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist survey answers for user %d: %v", e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
