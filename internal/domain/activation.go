package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activation binds one license to one machine fingerprint.
// At most one active record may exist per (license, fingerprint) pair;
// reactivation reuses the existing record instead of inserting a duplicate.
type Activation struct {
	ActivationID  uuid.UUID
	LicenseID     uuid.UUID
	Fingerprint   string
	Hostname      string
	SourceIP      string
	ActivatedAt   time.Time
	LastSeenAt    time.Time
	DeactivatedAt *time.Time
}

// IsActive reports whether the binding currently occupies a capacity slot.
func (a Activation) IsActive() bool {
	return a.DeactivatedAt == nil
}

// IsStale reports whether the last heartbeat is older than ttl.
// Staleness is soft: the record still occupies its slot until explicitly
// deactivated or reactivated elsewhere. There is no background sweep.
func (a Activation) IsStale(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(a.LastSeenAt) > ttl
}

// Reopen clears a closed binding for reuse by a fresh activation.
func (a *Activation) Reopen(now time.Time) {
	a.ActivatedAt = now
	a.LastSeenAt = now
	a.DeactivatedAt = nil
}

// Close releases the capacity slot. Idempotent.
func (a *Activation) Close(now time.Time) {
	if a.DeactivatedAt != nil {
		return
	}
	a.DeactivatedAt = &now
}
