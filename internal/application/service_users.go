package application

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/domain"
)

// CreateUser registers a new license owner in the Unverified state.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (UserView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return UserView{}, err
	}
	now := s.nowFn()
	user, err := s.store.Users().Add(ctx, domain.User{
		UserID:    uuid.New(),
		Email:     email,
		Status:    domain.UserUnverified,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return UserView{}, wrapStore(err)
	}
	return toUserView(user), nil
}

// GetUser serves the point projection through the cache.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (UserView, error) {
	var cached UserView
	if s.cache != nil && s.cache.GetPoint(ctx, kindUser, userID.String(), &cached) {
		return cached, nil
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return UserView{}, wrapStore(err)
	}
	view := toUserView(user)
	if s.cache != nil {
		s.cache.SetPoint(ctx, kindUser, userID.String(), view)
	}
	return view, nil
}

// VerifyUser transitions Unverified -> Verified.
func (s *Service) VerifyUser(ctx context.Context, userID uuid.UUID) (UserView, error) {
	return s.transitionUser(ctx, userID, func(user *domain.User) error {
		return user.Verify(s.nowFn())
	})
}

// ActivateUser promotes a verified account to Active; rejected while Blocked.
func (s *Service) ActivateUser(ctx context.Context, userID uuid.UUID) (UserView, error) {
	return s.transitionUser(ctx, userID, func(user *domain.User) error {
		return user.Activate(s.nowFn())
	})
}

// BlockUser suspends the account. Existing license validations keep working;
// blocking only gates new issuance and account transitions.
func (s *Service) BlockUser(ctx context.Context, userID uuid.UUID) (UserView, error) {
	return s.transitionUser(ctx, userID, func(user *domain.User) error {
		user.Block(s.nowFn())
		return nil
	})
}

// UnblockUser restores a blocked account to Verified.
func (s *Service) UnblockUser(ctx context.Context, userID uuid.UUID) (UserView, error) {
	return s.transitionUser(ctx, userID, func(user *domain.User) error {
		return user.Unblock(s.nowFn())
	})
}

// DeleteUser removes the account; its licenses and their activations cascade
// at the store boundary. The license list family is bumped because every list
// that included the user's licenses is now stale.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		return wrapStore(err)
	}
	if s.cache != nil {
		s.cache.InvalidatePoint(ctx, kindUser, userID.String())
		s.cache.BumpListVersion(ctx, kindLicenseList)
		s.cache.BumpListVersion(ctx, kindActivations)
	}
	return nil
}

func (s *Service) transitionUser(ctx context.Context, userID uuid.UUID, mutate func(*domain.User) error) (UserView, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return UserView{}, wrapStore(err)
	}
	if err := mutate(&user); err != nil {
		return UserView{}, err
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		return UserView{}, wrapStore(err)
	}
	if s.cache != nil {
		s.cache.InvalidatePoint(ctx, kindUser, userID.String())
	}
	return toUserView(user), nil
}

func toUserView(u domain.User) UserView {
	return UserView{
		UserID:     u.UserID,
		Email:      u.Email,
		Status:     string(u.Status),
		CreatedAt:  u.CreatedAt,
		VerifiedAt: u.VerifiedAt,
		BlockedAt:  u.BlockedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return parsed.Address, nil
}
