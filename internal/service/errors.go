package service

import (
	"errors"
	"fmt"
)

// --- Error Kinds ---
// Every error a service returns on purpose wraps exactly one of these, so callers can
// branch with errors.Is on either the kind or the concrete sentinel.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation error")
)

// kindError is a concrete service error carrying its kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// validationf builds a one-off validation error for a specific field.
func validationf(format string, args ...any) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// --- Error Definitions ---
var (
	ErrPlanNotFound         = newError(ErrNotFound, "plan not found")
	ErrPlanArchived         = newError(ErrConflict, "plan is archived")
	ErrAssignmentNotFound   = newError(ErrNotFound, "plan assignment not found")
	ErrAssignmentNotPending = newError(ErrInvalidTransition, "only pending plan assignments can be activated or declined")
	ErrNoUsers              = newError(ErrValidation, "at least one user id is required")

	ErrWorkoutNotFound  = newError(ErrNotFound, "workout not found")
	ErrWorkoutArchived  = newError(ErrValidation, "workout is archived")
	ErrWorkoutNotInPlan = newError(ErrValidation, "workout is not part of the plan")

	ErrSessionNotFound  = newError(ErrNotFound, "session not found")
	ErrSessionCompleted = newError(ErrInvalidTransition, "session is already completed")
	ErrLogNotFound      = newError(ErrNotFound, "log not found in session")
	ErrEmptyLog         = newError(ErrValidation, "at least one log field is required")
	ErrPlanNotActive    = newError(ErrConflict, "plan is not the athlete's active plan")

	ErrNoPersonalRecord = newError(ErrNotFound, "no personal record for workout")
)

// Kind returns the kind sentinel err wraps, or nil for unexpected errors.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidTransition, ErrConflict, ErrValidation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
