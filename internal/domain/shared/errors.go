// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
// Every error returned by the application layer matches exactly one of the
// five kind errors below.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("entity not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

// Finer-grained validation and state errors. Each one is also a validation
// or conflict error for errors.Is().
var (
	ErrInvalidID       = &kindError{msg: "invalid ID", kind: ErrValidation}
	ErrEmptyValue      = &kindError{msg: "value cannot be empty", kind: ErrValidation}
	ErrNegativeValue   = &kindError{msg: "value cannot be negative", kind: ErrValidation}
	ErrValueOutOfRange = &kindError{msg: "value out of range", kind: ErrValidation}
	ErrFutureTimestamp = &kindError{msg: "timestamp cannot be in the future", kind: ErrValidation}
	ErrInvalidFormat   = &kindError{msg: "invalid format", kind: ErrValidation}
	ErrAlreadyExists   = &kindError{msg: "entity already exists", kind: ErrConflict}
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Kind is the stable, transport-facing name of an error category.
type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// KindOf classifies err. Anything unrecognised is internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "leaderboard", "wellbeing"
	Op      string // Operation that failed, e.g., "Create", "Reset"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Validationf builds a validation error with a formatted message.
func Validationf(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrValidation, fmt.Sprintf(format, args...))
}

// Internal wraps an infrastructure failure. Errors that already carry a
// kind keep it.
func Internal(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	return WrapError(domain, op, ErrInternal, "operation failed", err)
}

// User domain errors
var (
	ErrUserNotFound       = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists  = NewDomainError("user", "Create", ErrAlreadyExists, "user already exists")
	ErrInvalidUserID      = NewDomainError("user", "Validate", ErrInvalidID, "invalid user ID")
	ErrInvalidDisplayName = NewDomainError("user", "Validate", ErrEmptyValue, "display name is required")
	ErrFutureStreakStart  = NewDomainError("user", "Onboard", ErrFutureTimestamp, "streak start cannot be in the future")
)

// XP domain errors
var (
	ErrInvalidPoints       = NewDomainError("xp", "Award", ErrValueOutOfRange, "points must be positive")
	ErrInvalidActivityType = NewDomainError("xp", "Award", ErrInvalidFormat, "invalid activity type")
)

// Wellbeing domain errors
var (
	ErrInvalidRating = NewDomainError("wellbeing", "Validate", ErrValueOutOfRange, "rating must be between 1 and 10")
	ErrInvalidDate   = NewDomainError("wellbeing", "Validate", ErrInvalidFormat, "date must be YYYY-MM-DD")
	ErrFutureLogDate = NewDomainError("wellbeing", "Validate", ErrFutureTimestamp, "log date cannot be in the future")
	ErrNotesTooLong  = NewDomainError("wellbeing", "Validate", ErrValueOutOfRange, "notes are too long")

	ErrDailyLogNotFound = NewDomainError("wellbeing", "Find", ErrNotFound, "daily log not found")
)

// Achievement domain errors
var (
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
	ErrInvalidAchievement  = NewDomainError("achievement", "Validate", ErrValidation, "invalid achievement")
)

// Leaderboard domain errors
var (
	ErrInvalidPeriod = NewDomainError("leaderboard", "Validate", ErrInvalidFormat, "period must be weekly, monthly or alltime")
	ErrInvalidLimit  = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid limit")
)

// Identity errors
var (
	ErrMissingIdentity = NewDomainError("auth", "Verify", ErrUnauthorized, "missing caller identity")
	ErrInvalidIdentity = NewDomainError("auth", "Verify", ErrUnauthorized, "invalid caller identity")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnauthorized checks if the error is an identity error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
