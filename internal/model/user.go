package model

import (
	"time"
)

// AccountState describes where a user sits in the login lockout state machine
type AccountState string

const (
	AccountStateActive   AccountState = "active"
	AccountStateDegraded AccountState = "degraded"
	AccountStateLocked   AccountState = "locked"
)

// User represents the core user entity
type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	Username       string     `json:"username"`
	Phone          string     `json:"phone"`
	PasswordHash   string     `json:"-"` // never expose password hash
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
}

// IsLockedAt checks if the user account is locked at the given instant
func (u *User) IsLockedAt(now time.Time) bool {
	if u.LockedUntil == nil {
		return false
	}
	return now.Before(*u.LockedUntil)
}

// StateAt maps the counters to an AccountState
func (u *User) StateAt(now time.Time) AccountState {
	switch {
	case u.IsLockedAt(now):
		return AccountStateLocked
	case u.FailedAttempts > 0:
		return AccountStateDegraded
	default:
		return AccountStateActive
	}
}
