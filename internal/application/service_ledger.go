package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

// Activate is the only write path that creates or reopens machine bindings.
// The whole count-then-insert sequence runs inside one store transaction with
// the license row locked, so two concurrent activations for the same license
// serialize and can never jointly exceed max_activations.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (ActivateResponse, error) {
	key := strings.TrimSpace(req.LicenseKey)
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if key == "" || fingerprint == "" {
		return ActivateResponse{}, fmt.Errorf("%w: license key and fingerprint are required", domain.ErrInvalidInput)
	}

	now := s.nowFn()
	var (
		license        domain.License
		activation     domain.Activation
		changed        bool
		expiryDetected bool
	)
	err := s.store.WithinTx(ctx, func(tx ports.Store) error {
		var err error
		license, err = tx.Licenses().GetByKeyForUpdate(ctx, key)
		if err != nil {
			return err
		}
		switch license.EffectiveStatus(now) {
		case domain.LicenseRevoked:
			return domain.ErrLicenseRevoked
		case domain.LicenseExpired:
			expiryDetected = license.Status == domain.LicenseActive
			return domain.ErrLicenseExpired
		}

		existing, err := tx.Activations().GetByFingerprint(ctx, license.LicenseID, fingerprint)
		switch {
		case err == nil && existing.IsActive():
			// Idempotent re-activation call: return the record unchanged.
			activation = existing
			return nil
		case err == nil:
			// Reactivation of a closed binding: it gave up its slot, so
			// capacity must be re-checked before reopening.
			if err := s.checkCapacity(ctx, tx, license); err != nil {
				return err
			}
			existing.Reopen(now)
			existing.Hostname = strings.TrimSpace(req.Hostname)
			existing.SourceIP = strings.TrimSpace(req.SourceIP)
			if err := tx.Activations().Update(ctx, existing); err != nil {
				return err
			}
			activation = existing
			changed = true
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if err := s.checkCapacity(ctx, tx, license); err != nil {
			return err
		}
		activation = domain.Activation{
			ActivationID: uuid.New(),
			LicenseID:    license.LicenseID,
			Fingerprint:  fingerprint,
			Hostname:     strings.TrimSpace(req.Hostname),
			SourceIP:     strings.TrimSpace(req.SourceIP),
			ActivatedAt:  now,
			LastSeenAt:   now,
		}
		if err := tx.Activations().Add(ctx, activation); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if expiryDetected {
			s.recordAudit(ctx, actionExpiryDetected, "license", license.LicenseID.String())
			s.invalidateLicense(ctx, license)
		}
		return ActivateResponse{}, wrapStore(err)
	}

	if changed {
		s.recordAudit(ctx, actionActivated, "activation", activation.ActivationID.String())
		s.invalidateActivations(ctx)
	}
	return ActivateResponse{ActivationID: activation.ActivationID, ActivatedAt: activation.ActivatedAt}, nil
}

func (s *Service) checkCapacity(ctx context.Context, tx ports.Store, license domain.License) error {
	if license.Unlimited() {
		return nil
	}
	count, err := tx.Activations().CountActive(ctx, license.LicenseID)
	if err != nil {
		return err
	}
	if count >= license.MaxActivations {
		return domain.ErrActivationLimitExceeded
	}
	return nil
}

// Deactivate closes the active binding for the fingerprint. Deactivating an
// already-closed or unknown fingerprint is a no-op, not a failure.
func (s *Service) Deactivate(ctx context.Context, licenseKey, fingerprint string) error {
	key := strings.TrimSpace(licenseKey)
	fingerprint = strings.TrimSpace(fingerprint)
	if key == "" || fingerprint == "" {
		return fmt.Errorf("%w: license key and fingerprint are required", domain.ErrInvalidInput)
	}

	license, err := s.store.Licenses().GetByKey(ctx, key)
	if err != nil {
		return wrapStore(err)
	}
	closed, err := s.store.Activations().CloseActive(ctx, license.LicenseID, fingerprint, s.nowFn())
	if err != nil {
		return wrapStore(err)
	}
	if closed {
		s.recordAudit(ctx, actionDeactivated, "license", license.LicenseID.String())
		s.invalidateActivations(ctx)
	}
	return nil
}

// Heartbeat refreshes last_seen_at on the active binding. It requires an
// active record and never silently creates one; the caller must re-activate
// after ErrActivationNotFound.
func (s *Service) Heartbeat(ctx context.Context, licenseKey, fingerprint string) (HeartbeatResponse, error) {
	key := strings.TrimSpace(licenseKey)
	fingerprint = strings.TrimSpace(fingerprint)
	if key == "" || fingerprint == "" {
		return HeartbeatResponse{}, fmt.Errorf("%w: license key and fingerprint are required", domain.ErrInvalidInput)
	}

	license, err := s.store.Licenses().GetByKey(ctx, key)
	if err != nil {
		return HeartbeatResponse{}, wrapStore(err)
	}
	activation, err := s.store.Activations().TouchActive(ctx, license.LicenseID, fingerprint, s.nowFn())
	if err != nil {
		return HeartbeatResponse{}, wrapStore(err)
	}
	return HeartbeatResponse{LastSeenAt: activation.LastSeenAt}, nil
}
