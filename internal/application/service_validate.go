package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/caching"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

// Validate answers "is this license valid on this machine right now".
// Checks short-circuit in fixed precedence: NotFound, Revoked, Expired,
// NotActivated, Stale. The ordering is part of the contract: revocation
// outranks expiry, expiry outranks activation state.
func (s *Service) Validate(ctx context.Context, licenseKey, fingerprint string) (ValidationResult, error) {
	key := strings.TrimSpace(licenseKey)
	fingerprint = strings.TrimSpace(fingerprint)
	if key == "" || fingerprint == "" {
		return ValidationResult{}, fmt.Errorf("%w: license key and fingerprint are required", domain.ErrInvalidInput)
	}

	license, err := s.licenseByKeyCached(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ValidationResult{Valid: false, Reason: ReasonNotFound}, nil
		}
		return ValidationResult{}, wrapStore(err)
	}

	now := s.nowFn()
	result := ValidationResult{
		ExpiresAt:      license.ExpiresAt,
		ActivationsMax: license.MaxActivations,
	}
	if used, countErr := s.store.Activations().CountActive(ctx, license.LicenseID); countErr == nil {
		result.ActivationsUsed = used
	} else {
		// The count is informational; the verdict stands on the checks below.
		s.logger.DebugContext(ctx, "active count unavailable",
			slog.String("module", "application"),
			slog.String("layer", "service"),
			slog.String("operation", "Validate"),
			slog.String("outcome", "degraded"),
			slog.String("error", countErr.Error()),
		)
	}

	switch license.EffectiveStatus(now) {
	case domain.LicenseRevoked:
		result.Reason = ReasonRevoked
		return result, nil
	case domain.LicenseExpired:
		if license.Status == domain.LicenseActive {
			// Stored status lags behind expires_at; surface the event and
			// evict the cached projections so later reads reconcile from
			// the store. The row itself is left alone.
			s.recordAudit(ctx, actionExpiryDetected, "license", license.LicenseID.String())
			s.invalidateLicense(ctx, license)
		}
		result.Reason = ReasonExpired
		return result, nil
	}

	activation, err := s.store.Activations().GetByFingerprint(ctx, license.LicenseID, fingerprint)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			result.Reason = ReasonNotActivated
			return result, nil
		}
		return ValidationResult{}, wrapStore(err)
	}
	if !activation.IsActive() {
		result.Reason = ReasonNotActivated
		return result, nil
	}
	if activation.IsStale(now, s.cfg.HeartbeatTTL) {
		result.Reason = ReasonStale
		return result, nil
	}

	result.Valid = true
	return result, nil
}

// GetActivations is a read-only projection for administrative listing.
// Results are cached in the activations list family; any ledger write bumps
// the family version, unreaching every cached page at once.
func (s *Service) GetActivations(ctx context.Context, licenseID uuid.UUID) ([]ActivationView, error) {
	criteria := []ports.Criteria{ports.Eq("license_id", licenseID.String())}
	signature := caching.Signature(criteria, ports.ListOptions{})

	var cached []ActivationView
	if s.cache != nil && s.cache.GetList(ctx, kindActivations, signature, &cached) {
		return cached, nil
	}

	if _, err := s.store.Licenses().GetByID(ctx, licenseID); err != nil {
		return nil, wrapStore(err)
	}
	activations, err := s.store.Activations().ListByLicense(ctx, licenseID)
	if err != nil {
		return nil, wrapStore(err)
	}
	views := make([]ActivationView, 0, len(activations))
	for _, activation := range activations {
		views = append(views, toActivationView(activation))
	}
	if s.cache != nil {
		s.cache.SetList(ctx, kindActivations, signature, views)
	}
	return views, nil
}

// licenseByKeyCached is the read-through point lookup used by the hot
// validation path. A cache hit slides the entry's expiry; any cache trouble
// falls back to the store.
func (s *Service) licenseByKeyCached(ctx context.Context, key string) (domain.License, error) {
	var cached LicenseView
	if s.cache != nil && s.cache.GetPoint(ctx, kindLicenseKey, key, &cached) {
		return fromLicenseView(cached), nil
	}
	license, err := s.store.Licenses().GetByKey(ctx, key)
	if err != nil {
		return domain.License{}, err
	}
	if s.cache != nil {
		s.cache.SetPoint(ctx, kindLicenseKey, key, toLicenseView(license))
	}
	return license, nil
}

func toActivationView(a domain.Activation) ActivationView {
	return ActivationView{
		ActivationID:  a.ActivationID,
		LicenseID:     a.LicenseID,
		Fingerprint:   a.Fingerprint,
		Hostname:      a.Hostname,
		SourceIP:      a.SourceIP,
		ActivatedAt:   a.ActivatedAt,
		LastSeenAt:    a.LastSeenAt,
		DeactivatedAt: a.DeactivatedAt,
		Active:        a.IsActive(),
	}
}

func toLicenseView(l domain.License) LicenseView {
	return LicenseView{
		LicenseID:      l.LicenseID,
		LicenseKey:     l.LicenseKey,
		UserID:         l.UserID,
		Status:         string(l.Status),
		MaxActivations: l.MaxActivations,
		CreatedAt:      l.CreatedAt,
		ExpiresAt:      l.ExpiresAt,
		RevokedAt:      l.RevokedAt,
	}
}

func fromLicenseView(v LicenseView) domain.License {
	return domain.License{
		LicenseID:      v.LicenseID,
		LicenseKey:     v.LicenseKey,
		UserID:         v.UserID,
		Status:         domain.LicenseStatus(v.Status),
		MaxActivations: v.MaxActivations,
		CreatedAt:      v.CreatedAt,
		ExpiresAt:      v.ExpiresAt,
		RevokedAt:      v.RevokedAt,
	}
}
