package service

import (
	"errors"
	"fmt"
	"time"
)

// Common service errors
var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateEmail      = errors.New("email already exists")
	ErrDuplicateUsername   = errors.New("username already exists")
	ErrDuplicatePhone      = errors.New("phone number already used")
	ErrAccountLocked       = errors.New("account is temporarily locked")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrPersistence         = errors.New("storage failure")
	ErrMeasurementNotFound = errors.New("weight entry not found")
	ErrNoGoal              = errors.New("no goal set")
	ErrNotLoggedIn         = errors.New("not logged in")
)

// ValidationError names the input field that was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AccountLockedError carries the lockout expiry
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account is locked until %s", e.Until.Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error {
	return ErrAccountLocked
}

// Remaining returns how long the lock still holds at now
func (e *AccountLockedError) Remaining(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// persistence wraps a store failure so callers can match ErrPersistence
// while the cause stays in the chain for logs
func persistence(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}
