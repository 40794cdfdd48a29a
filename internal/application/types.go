package application

import (
	"time"

	"github.com/google/uuid"
)

type Config struct {
	// HeartbeatTTL is the window after which an activation without a
	// heartbeat is reported Stale by Validate. Zero disables staleness.
	HeartbeatTTL time.Duration
}

// Validation reasons, ordered by precedence. Revocation always outranks
// expiry, and expiry always outranks activation-state checks.
const (
	ReasonNotFound     = "NotFound"
	ReasonRevoked      = "Revoked"
	ReasonExpired      = "Expired"
	ReasonNotActivated = "NotActivated"
	ReasonStale        = "Stale"
)

type ActivateRequest struct {
	LicenseKey  string `json:"license_key"`
	Fingerprint string `json:"fingerprint"`
	Hostname    string `json:"hostname,omitempty"`
	SourceIP    string `json:"source_ip,omitempty"`
}

type ActivateResponse struct {
	ActivationID uuid.UUID `json:"activation_id"`
	ActivatedAt  time.Time `json:"activated_at"`
}

type ValidationResult struct {
	Valid           bool      `json:"valid"`
	Reason          string    `json:"reason,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
	ActivationsUsed int       `json:"activations_used"`
	ActivationsMax  int       `json:"activations_max"`
}

type HeartbeatResponse struct {
	LastSeenAt time.Time `json:"last_seen_at"`
}

type ActivationView struct {
	ActivationID  uuid.UUID  `json:"activation_id"`
	LicenseID     uuid.UUID  `json:"license_id"`
	Fingerprint   string     `json:"fingerprint"`
	Hostname      string     `json:"hostname,omitempty"`
	SourceIP      string     `json:"source_ip,omitempty"`
	ActivatedAt   time.Time  `json:"activated_at"`
	LastSeenAt    time.Time  `json:"last_seen_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	Active        bool       `json:"active"`
}

type IssueLicenseRequest struct {
	UserID         uuid.UUID `json:"user_id"`
	ExpiresAt      time.Time `json:"expires_at"`
	MaxActivations int       `json:"max_activations"`
}

type LicenseView struct {
	LicenseID      uuid.UUID  `json:"license_id"`
	LicenseKey     string     `json:"license_key"`
	UserID         uuid.UUID  `json:"user_id"`
	Status         string     `json:"status"`
	MaxActivations int        `json:"max_activations"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

type ListLicensesQuery struct {
	UserID     string `json:"user_id,omitempty"`
	Status     string `json:"status,omitempty"`
	OrderBy    string `json:"order_by,omitempty"`
	Descending bool   `json:"descending,omitempty"`
	Page       int    `json:"page,omitempty"`
	PerPage    int    `json:"per_page,omitempty"`
}

type CreateUserRequest struct {
	Email string `json:"email"`
}

type UserView struct {
	UserID     uuid.UUID  `json:"user_id"`
	Email      string     `json:"email"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	BlockedAt  *time.Time `json:"blocked_at,omitempty"`
}
