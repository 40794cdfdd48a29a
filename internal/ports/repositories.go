package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/domain"
)

// Store is the transactional boundary over durable entities.
// WithinTx runs fn against a store view whose mutations commit atomically;
// any error (or context cancellation) rolls back every partial write.
type Store interface {
	Users() UserRepository
	Licenses() LicenseRepository
	Activations() ActivationRepository
	Outbox() OutboxRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// UserRepository defines persistence operations for license-owning identities.
type UserRepository interface {
	Add(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, user domain.User) error
	// Delete removes the user; owned licenses and their activations cascade.
	Delete(ctx context.Context, userID uuid.UUID) error
}

// LicenseRepository manages license rows.
// GetByKeyForUpdate takes a row-level lock and is only meaningful inside
// WithinTx: the ledger holds it across its count-then-insert sequence so two
// concurrent activations can never jointly exceed the activation cap.
type LicenseRepository interface {
	Add(ctx context.Context, license domain.License) error
	GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error)
	GetByKey(ctx context.Context, licenseKey string) (domain.License, error)
	GetByKeyForUpdate(ctx context.Context, licenseKey string) (domain.License, error)
	List(ctx context.Context, criteria []Criteria, opts ListOptions) ([]domain.License, error)
	Update(ctx context.Context, license domain.License) error
	Delete(ctx context.Context, licenseID uuid.UUID) error
}

// ActivationRepository manages machine bindings for a license.
// TouchActive and CloseActive are single-row atomic updates keyed by the
// active (license, fingerprint) pair.
type ActivationRepository interface {
	Add(ctx context.Context, activation domain.Activation) error
	Update(ctx context.Context, activation domain.Activation) error
	GetByFingerprint(ctx context.Context, licenseID uuid.UUID, fingerprint string) (domain.Activation, error)
	ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]domain.Activation, error)
	CountActive(ctx context.Context, licenseID uuid.UUID) (int, error)
	// TouchActive sets last_seen_at on the active binding and returns it;
	// domain.ErrActivationNotFound when no active binding exists.
	TouchActive(ctx context.Context, licenseID uuid.UUID, fingerprint string, seenAt time.Time) (domain.Activation, error)
	// CloseActive sets deactivated_at on the active binding and reports
	// whether a binding was closed. Closing an already-closed or absent
	// binding is a no-op, not an error.
	CloseActive(ctx context.Context, licenseID uuid.UUID, fingerprint string, closedAt time.Time) (bool, error)
}
