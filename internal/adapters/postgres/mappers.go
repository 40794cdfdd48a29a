package postgres

import (
	"errors"
	"strings"

	"github.com/keygate/license-service/internal/domain"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.User {
	return domain.User{
		UserID:     row.UserID,
		Email:      row.Email,
		Status:     domain.UserStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		VerifiedAt: row.VerifiedAt,
		BlockedAt:  row.BlockedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func toUserModel(user domain.User) userModel {
	return userModel{
		UserID:     user.UserID,
		Email:      user.Email,
		Status:     string(user.Status),
		CreatedAt:  user.CreatedAt,
		VerifiedAt: user.VerifiedAt,
		BlockedAt:  user.BlockedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func toDomainLicense(row licenseModel) domain.License {
	return domain.License{
		LicenseID:      row.LicenseID,
		LicenseKey:     row.LicenseKey,
		UserID:         row.UserID,
		Status:         domain.LicenseStatus(row.Status),
		MaxActivations: row.MaxActivations,
		CreatedAt:      row.CreatedAt,
		ExpiresAt:      row.ExpiresAt,
		RevokedAt:      row.RevokedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toLicenseModel(license domain.License) licenseModel {
	return licenseModel{
		LicenseID:      license.LicenseID,
		LicenseKey:     license.LicenseKey,
		UserID:         license.UserID,
		Status:         string(license.Status),
		MaxActivations: license.MaxActivations,
		CreatedAt:      license.CreatedAt,
		ExpiresAt:      license.ExpiresAt,
		RevokedAt:      license.RevokedAt,
		UpdatedAt:      license.UpdatedAt,
	}
}

func toDomainActivation(row activationModel) domain.Activation {
	return domain.Activation{
		ActivationID:  row.ActivationID,
		LicenseID:     row.LicenseID,
		Fingerprint:   row.Fingerprint,
		Hostname:      derefString(row.Hostname),
		SourceIP:      derefString(row.SourceIP),
		ActivatedAt:   row.ActivatedAt,
		LastSeenAt:    row.LastSeenAt,
		DeactivatedAt: row.DeactivatedAt,
	}
}

func toActivationModel(activation domain.Activation) activationModel {
	return activationModel{
		ActivationID:  activation.ActivationID,
		LicenseID:     activation.LicenseID,
		Fingerprint:   activation.Fingerprint,
		Hostname:      nullableString(activation.Hostname),
		SourceIP:      nullableString(activation.SourceIP),
		ActivatedAt:   activation.ActivatedAt,
		LastSeenAt:    activation.LastSeenAt,
		DeactivatedAt: activation.DeactivatedAt,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
