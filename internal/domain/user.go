package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	UserUnverified UserStatus = "UNVERIFIED"
	UserVerified   UserStatus = "VERIFIED"
	UserActive     UserStatus = "ACTIVE"
	UserBlocked    UserStatus = "BLOCKED"
)

// User is the identity anchor owning licenses.
// It carries only the state the license engine needs; credential and session
// concerns live in the platform authentication service.
type User struct {
	UserID     uuid.UUID
	Email      string
	Status     UserStatus
	CreatedAt  time.Time
	VerifiedAt *time.Time
	BlockedAt  *time.Time
	UpdatedAt  time.Time
}

// IsBlocked reports whether the account is currently blocked.
func (u User) IsBlocked() bool {
	return u.Status == UserBlocked
}

// Verify transitions an unverified account to verified.
func (u *User) Verify(now time.Time) error {
	if u.Status == UserBlocked {
		return fmt.Errorf("%w: cannot verify a blocked user", ErrUserBlocked)
	}
	if u.Status != UserUnverified {
		return fmt.Errorf("%w: user already verified", ErrConflict)
	}
	u.Status = UserVerified
	u.VerifiedAt = &now
	u.UpdatedAt = now
	return nil
}

// Activate promotes a verified account to active. Rejected while blocked.
func (u *User) Activate(now time.Time) error {
	if u.Status == UserBlocked {
		return fmt.Errorf("%w: cannot activate a blocked user", ErrUserBlocked)
	}
	if u.Status == UserUnverified {
		return fmt.Errorf("%w: user must be verified first", ErrConflict)
	}
	u.Status = UserActive
	u.UpdatedAt = now
	return nil
}

// Block suspends the account. Blocking is idempotent.
func (u *User) Block(now time.Time) {
	if u.Status == UserBlocked {
		return
	}
	u.Status = UserBlocked
	u.BlockedAt = &now
	u.UpdatedAt = now
}

// Unblock restores a blocked account to verified.
func (u *User) Unblock(now time.Time) error {
	if u.Status != UserBlocked {
		return fmt.Errorf("%w: user is not blocked", ErrConflict)
	}
	u.Status = UserVerified
	u.BlockedAt = nil
	u.UpdatedAt = now
	return nil
}
