package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keygate/license-service/internal/caching"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

// Cache kinds. Point entries use kind:id keys; list families embed the kind's
// version counter so one bump unreaches every cached page of that family.
const (
	kindLicense     = "license"
	kindLicenseKey  = "license-key"
	kindUser        = "user"
	kindLicenseList = "licenses"
	kindActivations = "activations"
)

// Audit actions emitted on state-changing outcomes.
const (
	actionActivated      = "license.activated"
	actionDeactivated    = "license.deactivated"
	actionRevoked        = "license.revoked"
	actionIssued         = "license.issued"
	actionExpiryDetected = "license.expiry_detected"
)

// Service composes the activation ledger and validation protocol over the
// transactional store, with the cache coordinator accelerating reads and the
// audit sink notified outside the critical path.
type Service struct {
	cfg    Config
	store  ports.Store
	cache  *caching.Coordinator
	audit  ports.AuditSink
	logger *slog.Logger
	nowFn  func() time.Time
}

type Dependencies struct {
	Config Config
	Store  ports.Store
	Cache  *caching.Coordinator
	Audit  ports.AuditSink
	Logger *slog.Logger
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		cfg:    deps.Config,
		store:  deps.Store,
		cache:  deps.Cache,
		audit:  deps.Audit,
		logger: deps.Logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cfg.HeartbeatTTL == 0 {
		s.cfg.HeartbeatTTL = 24 * time.Hour
	}
	return s
}

func (s *Service) recordAudit(ctx context.Context, action, entityType, entityID string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, ports.AuditEvent{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  s.nowFn(),
	})
}

// invalidateLicense evicts both point projections of a license (by id and by
// key) and bumps the license list family.
func (s *Service) invalidateLicense(ctx context.Context, license domain.License) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidatePoint(ctx, kindLicense, license.LicenseID.String())
	s.cache.InvalidatePoint(ctx, kindLicenseKey, license.LicenseKey)
	s.cache.BumpListVersion(ctx, kindLicenseList)
}

func (s *Service) invalidateActivations(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.BumpListVersion(ctx, kindActivations)
}

// wrapStore classifies an error coming back from the store boundary: domain
// sentinels pass through verbatim, anything else means the transaction did
// not commit.
func wrapStore(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		domain.ErrNotFound,
		domain.ErrLicenseRevoked,
		domain.ErrLicenseExpired,
		domain.ErrActivationLimitExceeded,
		domain.ErrActivationNotFound,
		domain.ErrUserBlocked,
		domain.ErrInvalidInput,
		domain.ErrConflict,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}
