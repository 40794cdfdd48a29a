package domain

import (
	"time"

	"github.com/google/uuid"
)

// LicenseStatus is the stored license state.
type LicenseStatus string

const (
	LicenseActive  LicenseStatus = "ACTIVE"
	LicenseRevoked LicenseStatus = "REVOKED"
	LicenseExpired LicenseStatus = "EXPIRED"
)

// License is the unit being validated. The license key is globally unique and
// immutable after issue; uniqueness is enforced at the store boundary.
type License struct {
	LicenseID      uuid.UUID
	LicenseKey     string
	UserID         uuid.UUID
	Status         LicenseStatus
	MaxActivations int // 0 = unlimited
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	UpdatedAt      time.Time
}

// EffectiveStatus reconciles the stored status against expires_at.
// A license stored as Active but past its expiry must read as Expired on every
// path even when no background job has flipped the stored column. Revocation
// is checked first because it is terminal and outranks expiry.
func (l License) EffectiveStatus(now time.Time) LicenseStatus {
	if l.Status == LicenseRevoked {
		return LicenseRevoked
	}
	if l.Status == LicenseExpired || !now.Before(l.ExpiresAt) {
		return LicenseExpired
	}
	return l.Status
}

// Unlimited reports whether the license has no activation cap.
func (l License) Unlimited() bool {
	return l.MaxActivations == 0
}

// Revoke marks the license terminally revoked. Idempotent.
func (l *License) Revoke(now time.Time) {
	if l.Status == LicenseRevoked {
		return
	}
	l.Status = LicenseRevoked
	l.RevokedAt = &now
	l.UpdatedAt = now
}
