package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/caching"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

// keyIssueAttempts bounds regeneration retries on a duplicate-key collision.
const keyIssueAttempts = 3

// IssueLicense creates a license owned by an existing, non-blocked user.
// The license key is generated server-side and never changes afterwards.
func (s *Service) IssueLicense(ctx context.Context, req IssueLicenseRequest) (LicenseView, error) {
	if req.UserID == uuid.Nil {
		return LicenseView{}, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if req.MaxActivations < 0 {
		return LicenseView{}, fmt.Errorf("%w: max_activations must be >= 0", domain.ErrInvalidInput)
	}
	now := s.nowFn()
	if !req.ExpiresAt.After(now) {
		return LicenseView{}, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidInput)
	}

	owner, err := s.store.Users().GetByID(ctx, req.UserID)
	if err != nil {
		return LicenseView{}, wrapStore(err)
	}
	if owner.IsBlocked() {
		return LicenseView{}, fmt.Errorf("%w: cannot issue a license to a blocked user", domain.ErrUserBlocked)
	}

	var license domain.License
	for attempt := 0; attempt < keyIssueAttempts; attempt++ {
		key, keyErr := newLicenseKey()
		if keyErr != nil {
			return LicenseView{}, keyErr
		}
		license = domain.License{
			LicenseID:      uuid.New(),
			LicenseKey:     key,
			UserID:         owner.UserID,
			Status:         domain.LicenseActive,
			MaxActivations: req.MaxActivations,
			CreatedAt:      now,
			ExpiresAt:      req.ExpiresAt.UTC(),
			UpdatedAt:      now,
		}
		err = s.store.Licenses().Add(ctx, license)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) {
			return LicenseView{}, wrapStore(err)
		}
	}
	if err != nil {
		return LicenseView{}, wrapStore(err)
	}

	s.recordAudit(ctx, actionIssued, "license", license.LicenseID.String())
	if s.cache != nil {
		s.cache.BumpListVersion(ctx, kindLicenseList)
	}
	return toLicenseView(license), nil
}

// GetLicense serves the admin point projection through the cache.
func (s *Service) GetLicense(ctx context.Context, licenseID uuid.UUID) (LicenseView, error) {
	var cached LicenseView
	if s.cache != nil && s.cache.GetPoint(ctx, kindLicense, licenseID.String(), &cached) {
		return cached, nil
	}
	license, err := s.store.Licenses().GetByID(ctx, licenseID)
	if err != nil {
		return LicenseView{}, wrapStore(err)
	}
	view := toLicenseView(license)
	if s.cache != nil {
		s.cache.SetPoint(ctx, kindLicense, licenseID.String(), view)
	}
	return view, nil
}

// ListLicenses runs a criteria-filtered, paginated query through the
// version-keyed list cache.
func (s *Service) ListLicenses(ctx context.Context, query ListLicensesQuery) ([]LicenseView, error) {
	criteria := make([]ports.Criteria, 0, 2)
	if userID := strings.TrimSpace(query.UserID); userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			return nil, fmt.Errorf("%w: invalid user_id", domain.ErrInvalidInput)
		}
		criteria = append(criteria, ports.Eq("user_id", userID))
	}
	if status := strings.ToUpper(strings.TrimSpace(query.Status)); status != "" {
		switch domain.LicenseStatus(status) {
		case domain.LicenseActive, domain.LicenseRevoked, domain.LicenseExpired:
			criteria = append(criteria, ports.Eq("status", status))
		default:
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, query.Status)
		}
	}
	opts := ports.ListOptions{
		OrderBy:    query.OrderBy,
		Descending: query.Descending,
		Page:       query.Page,
		PerPage:    query.PerPage,
	}.Normalize()
	if opts.OrderBy == "" {
		opts.OrderBy = "created_at"
		opts.Descending = true
	}

	signature := caching.Signature(criteria, opts)
	var cached []LicenseView
	if s.cache != nil && s.cache.GetList(ctx, kindLicenseList, signature, &cached) {
		return cached, nil
	}

	licenses, err := s.store.Licenses().List(ctx, criteria, opts)
	if err != nil {
		return nil, wrapStore(err)
	}
	views := make([]LicenseView, 0, len(licenses))
	for _, license := range licenses {
		views = append(views, toLicenseView(license))
	}
	if s.cache != nil {
		s.cache.SetList(ctx, kindLicenseList, signature, views)
	}
	return views, nil
}

// RevokeLicense terminally revokes a license. Revocation outranks every other
// state and no activation or validation may succeed afterwards. Idempotent.
func (s *Service) RevokeLicense(ctx context.Context, licenseID uuid.UUID) (LicenseView, error) {
	now := s.nowFn()
	var license domain.License
	err := s.store.WithinTx(ctx, func(tx ports.Store) error {
		var err error
		license, err = tx.Licenses().GetByID(ctx, licenseID)
		if err != nil {
			return err
		}
		if license.Status == domain.LicenseRevoked {
			return nil
		}
		license.Revoke(now)
		return tx.Licenses().Update(ctx, license)
	})
	if err != nil {
		return LicenseView{}, wrapStore(err)
	}

	s.recordAudit(ctx, actionRevoked, "license", license.LicenseID.String())
	s.invalidateLicense(ctx, license)
	return toLicenseView(license), nil
}

// ListExpiringLicenses lists active licenses whose expiry falls inside the
// window, for renewal dashboards. Served through the same list family as
// ListLicenses so revocations and issues invalidate it too.
func (s *Service) ListExpiringLicenses(ctx context.Context, window time.Duration) ([]LicenseView, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", domain.ErrInvalidInput)
	}
	// Bounds are truncated to the minute so repeated calls inside the same
	// minute share one cache signature.
	now := s.nowFn().Truncate(time.Minute)
	criteria := []ports.Criteria{
		ports.Eq("status", string(domain.LicenseActive)),
		{Field: "expires_at", Op: ports.OpAfter, Values: []string{now.Format(time.RFC3339)}},
		{Field: "expires_at", Op: ports.OpBefore, Values: []string{now.Add(window).Format(time.RFC3339)}},
	}
	opts := ports.ListOptions{OrderBy: "expires_at"}.Normalize()

	signature := caching.Signature(criteria, opts)
	var cached []LicenseView
	if s.cache != nil && s.cache.GetList(ctx, kindLicenseList, signature, &cached) {
		return cached, nil
	}

	licenses, err := s.store.Licenses().List(ctx, criteria, opts)
	if err != nil {
		return nil, wrapStore(err)
	}
	views := make([]LicenseView, 0, len(licenses))
	for _, license := range licenses {
		views = append(views, toLicenseView(license))
	}
	if s.cache != nil {
		s.cache.SetList(ctx, kindLicenseList, signature, views)
	}
	return views, nil
}
