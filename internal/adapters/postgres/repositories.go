package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the GORM-backed implementation of the transactional store
// boundary. WithinTx hands callers a view bound to the transaction handle so
// every repository call inside fn commits or rolls back together.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() ports.UserRepository             { return &userRepository{db: s.db} }
func (s *Store) Licenses() ports.LicenseRepository       { return &licenseRepository{db: s.db} }
func (s *Store) Activations() ports.ActivationRepository { return &activationRepository{db: s.db} }
func (s *Store) Outbox() ports.OutboxRepository          { return &outboxRepository{db: s.db} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx ports.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Add(ctx context.Context, user domain.User) (domain.User, error) {
	rec := toUserModel(user)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrConflict
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var rec userModel
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) Update(ctx context.Context, user domain.User) error {
	rec := toUserModel(user)
	res := r.db.WithContext(ctx).
		Model(&userModel{}).
		Where("user_id = ?", user.UserID).
		Updates(map[string]any{
			"status":      rec.Status,
			"verified_at": rec.VerifiedAt,
			"blocked_at":  rec.BlockedAt,
			"updated_at":  rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	// Licenses and activations cascade through foreign keys.
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&userModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type licenseRepository struct {
	db *gorm.DB
}

func (r *licenseRepository) Add(ctx context.Context, license domain.License) error {
	rec := toLicenseModel(license)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *licenseRepository) GetByID(ctx context.Context, licenseID uuid.UUID) (domain.License, error) {
	var rec licenseModel
	if err := r.db.WithContext(ctx).Where("license_id = ?", licenseID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(rec), nil
}

func (r *licenseRepository) GetByKey(ctx context.Context, licenseKey string) (domain.License, error) {
	var rec licenseModel
	if err := r.db.WithContext(ctx).Where("license_key = ?", licenseKey).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(rec), nil
}

// GetByKeyForUpdate locks the license row for the remainder of the enclosing
// transaction. The ledger holds this lock across its capacity check and
// insert so concurrent activations serialize per license.
func (r *licenseRepository) GetByKeyForUpdate(ctx context.Context, licenseKey string) (domain.License, error) {
	var rec licenseModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("license_key = ?", licenseKey).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.License{}, domain.ErrNotFound
		}
		return domain.License{}, err
	}
	return toDomainLicense(rec), nil
}

func (r *licenseRepository) List(ctx context.Context, criteria []ports.Criteria, opts ports.ListOptions) ([]domain.License, error) {
	query, err := applyLicenseCriteria(r.db.WithContext(ctx).Model(&licenseModel{}), criteria)
	if err != nil {
		return nil, err
	}
	query, err = applyLicenseOrder(query, opts)
	if err != nil {
		return nil, err
	}
	var rows []licenseModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.License, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainLicense(row))
	}
	return result, nil
}

func (r *licenseRepository) Update(ctx context.Context, license domain.License) error {
	rec := toLicenseModel(license)
	res := r.db.WithContext(ctx).
		Model(&licenseModel{}).
		Where("license_id = ?", license.LicenseID).
		Updates(map[string]any{
			"status":     rec.Status,
			"revoked_at": rec.RevokedAt,
			"expires_at": rec.ExpiresAt,
			"updated_at": rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *licenseRepository) Delete(ctx context.Context, licenseID uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("license_id = ?", licenseID).Delete(&licenseModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type activationRepository struct {
	db *gorm.DB
}

func (r *activationRepository) Add(ctx context.Context, activation domain.Activation) error {
	rec := toActivationModel(activation)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *activationRepository) Update(ctx context.Context, activation domain.Activation) error {
	rec := toActivationModel(activation)
	res := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("activation_id = ?", activation.ActivationID).
		Updates(map[string]any{
			"hostname":       rec.Hostname,
			"source_ip":      rec.SourceIP,
			"activated_at":   rec.ActivatedAt,
			"last_seen_at":   rec.LastSeenAt,
			"deactivated_at": rec.DeactivatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *activationRepository) GetByFingerprint(ctx context.Context, licenseID uuid.UUID, fingerprint string) (domain.Activation, error) {
	var rec activationModel
	if err := r.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Where("fingerprint = ?", fingerprint).
		Order("activated_at DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Activation{}, domain.ErrNotFound
		}
		return domain.Activation{}, err
	}
	return toDomainActivation(rec), nil
}

func (r *activationRepository) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]domain.Activation, error) {
	var rows []activationModel
	if err := r.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("activated_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Activation, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainActivation(row))
	}
	return result, nil
}

func (r *activationRepository) CountActive(ctx context.Context, licenseID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("license_id = ?", licenseID).
		Where("deactivated_at IS NULL").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *activationRepository) TouchActive(ctx context.Context, licenseID uuid.UUID, fingerprint string, seenAt time.Time) (domain.Activation, error) {
	res := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("license_id = ?", licenseID).
		Where("fingerprint = ?", fingerprint).
		Where("deactivated_at IS NULL").
		Update("last_seen_at", seenAt)
	if res.Error != nil {
		return domain.Activation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Activation{}, domain.ErrActivationNotFound
	}
	return r.GetByFingerprint(ctx, licenseID, fingerprint)
}

func (r *activationRepository) CloseActive(ctx context.Context, licenseID uuid.UUID, fingerprint string, closedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&activationModel{}).
		Where("license_id = ?", licenseID).
		Where("fingerprint = ?", fingerprint).
		Where("deactivated_at IS NULL").
		Update("deactivated_at", closedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
