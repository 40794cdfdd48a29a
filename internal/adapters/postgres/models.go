package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email      string     `gorm:"column:email"`
	Status     string     `gorm:"column:status"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`
	BlockedAt  *time.Time `gorm:"column:blocked_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type licenseModel struct {
	LicenseID      uuid.UUID  `gorm:"column:license_id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseKey     string     `gorm:"column:license_key"`
	UserID         uuid.UUID  `gorm:"column:user_id"`
	Status         string     `gorm:"column:status"`
	MaxActivations int        `gorm:"column:max_activations"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	ExpiresAt      time.Time  `gorm:"column:expires_at"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (licenseModel) TableName() string { return "licenses" }

type activationModel struct {
	ActivationID  uuid.UUID  `gorm:"column:activation_id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseID     uuid.UUID  `gorm:"column:license_id"`
	Fingerprint   string     `gorm:"column:fingerprint"`
	Hostname      *string    `gorm:"column:hostname"`
	SourceIP      *string    `gorm:"column:source_ip"`
	ActivatedAt   time.Time  `gorm:"column:activated_at"`
	LastSeenAt    time.Time  `gorm:"column:last_seen_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at"`
}

func (activationModel) TableName() string { return "activations" }

type licenseOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (licenseOutboxModel) TableName() string { return "license_outbox" }
