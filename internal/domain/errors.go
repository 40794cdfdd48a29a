package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrLicenseRevoked signals a terminal revocation.
	// Revocation outranks every other license-state check, including expiry.
	ErrLicenseRevoked = errors.New("license revoked")
	// ErrLicenseExpired covers both a stored Expired status and an Active license
	// whose expires_at has passed without the stored status being flipped.
	ErrLicenseExpired = errors.New("license expired")
	// ErrActivationLimitExceeded is returned when a license has no free
	// activation slot for a new or reopened machine binding.
	ErrActivationLimitExceeded = errors.New("activation limit exceeded")
	// ErrActivationNotFound is returned by heartbeat when no active activation
	// exists for the (license, fingerprint) pair; the caller must re-activate.
	ErrActivationNotFound = errors.New("activation not found")
	// ErrStoreUnavailable wraps a store transaction that could not commit.
	// Write-path failures must leave the store in its pre-call state.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrUserBlocked  = errors.New("user blocked")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)
