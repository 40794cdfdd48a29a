package application_test

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/domain"
	"github.com/keygate/license-service/internal/ports"
)

// memStore is an in-memory ports.Store. WithinTx holds a single mutex for the
// whole callback, which mirrors the row-lock serialization the production
// adapter gets from SELECT ... FOR UPDATE.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	failCounts bool

	users         map[uuid.UUID]domain.User
	usersByEmail  map[string]uuid.UUID
	licenses      map[uuid.UUID]domain.License
	licensesByKey map[string]uuid.UUID
	activations   map[uuid.UUID]domain.Activation
	outbox        []ports.OutboxRecord
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[uuid.UUID]domain.User{},
		usersByEmail:  map[string]uuid.UUID{},
		licenses:      map[uuid.UUID]domain.License{},
		licensesByKey: map[string]uuid.UUID{},
		activations:   map[uuid.UUID]domain.Activation{},
	}
}

func (s *memStore) Users() ports.UserRepository             { return &memUsers{s} }
func (s *memStore) Licenses() ports.LicenseRepository       { return &memLicenses{s} }
func (s *memStore) Activations() ports.ActivationRepository { return &memActivations{s} }
func (s *memStore) Outbox() ports.OutboxRepository          { return &memOutbox{s} }

func (s *memStore) WithinTx(_ context.Context, fn func(tx ports.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

type memUsers struct{ s *memStore }

func (r *memUsers) Add(_ context.Context, user domain.User) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.usersByEmail[user.Email]; exists {
		return domain.User{}, fmt.Errorf("%w: email taken", domain.ErrConflict)
	}
	r.s.users[user.UserID] = user
	r.s.usersByEmail[user.Email] = user.UserID
	return user, nil
}

func (r *memUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.usersByEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *memUsers) Update(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.UserID]; !ok {
		return domain.ErrNotFound
	}
	r.s.users[user.UserID] = user
	return nil
}

func (r *memUsers) Delete(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.s.users, userID)
	delete(r.s.usersByEmail, user.Email)
	for id, license := range r.s.licenses {
		if license.UserID != userID {
			continue
		}
		delete(r.s.licenses, id)
		delete(r.s.licensesByKey, license.LicenseKey)
		for aid, activation := range r.s.activations {
			if activation.LicenseID == id {
				delete(r.s.activations, aid)
			}
		}
	}
	return nil
}

type memLicenses struct{ s *memStore }

func (r *memLicenses) Add(_ context.Context, license domain.License) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.licensesByKey[license.LicenseKey]; exists {
		return fmt.Errorf("%w: duplicate license key", domain.ErrConflict)
	}
	r.s.licenses[license.LicenseID] = license
	r.s.licensesByKey[license.LicenseKey] = license.LicenseID
	return nil
}

func (r *memLicenses) GetByID(_ context.Context, licenseID uuid.UUID) (domain.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	license, ok := r.s.licenses[licenseID]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	return license, nil
}

func (r *memLicenses) GetByKey(_ context.Context, licenseKey string) (domain.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.licensesByKey[licenseKey]
	if !ok {
		return domain.License{}, domain.ErrNotFound
	}
	return r.s.licenses[id], nil
}

func (r *memLicenses) GetByKeyForUpdate(ctx context.Context, licenseKey string) (domain.License, error) {
	return r.GetByKey(ctx, licenseKey)
}

func (r *memLicenses) List(_ context.Context, criteria []ports.Criteria, opts ports.ListOptions) ([]domain.License, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	matches := make([]domain.License, 0, len(r.s.licenses))
	for _, license := range r.s.licenses {
		if licenseMatches(license, criteria) {
			matches = append(matches, license)
		}
	}

	opts = opts.Normalize()
	sort.Slice(matches, func(i, j int) bool {
		var less bool
		switch opts.OrderBy {
		case "expires_at":
			less = matches[i].ExpiresAt.Before(matches[j].ExpiresAt)
		default:
			less = matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		if opts.Descending {
			return !less
		}
		return less
	})

	offset := opts.Offset()
	if offset >= len(matches) {
		return nil, nil
	}
	end := offset + opts.PerPage
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

func licenseMatches(license domain.License, criteria []ports.Criteria) bool {
	for _, clause := range criteria {
		var field string
		var fieldTime time.Time
		switch clause.Field {
		case "user_id":
			field = license.UserID.String()
		case "status":
			field = string(license.Status)
		case "created_at":
			fieldTime = license.CreatedAt
		case "expires_at":
			fieldTime = license.ExpiresAt
		default:
			return false
		}

		switch clause.Op {
		case ports.OpEq:
			if len(clause.Values) != 1 || field != clause.Values[0] {
				return false
			}
		case ports.OpNeq:
			if len(clause.Values) != 1 || field == clause.Values[0] {
				return false
			}
		case ports.OpIn:
			found := false
			for _, v := range clause.Values {
				if field == v {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case ports.OpBefore, ports.OpAfter:
			if len(clause.Values) != 1 {
				return false
			}
			bound, err := time.Parse(time.RFC3339, clause.Values[0])
			if err != nil {
				return false
			}
			if clause.Op == ports.OpBefore && !fieldTime.Before(bound) {
				return false
			}
			if clause.Op == ports.OpAfter && !fieldTime.After(bound) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (r *memLicenses) Update(_ context.Context, license domain.License) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.licenses[license.LicenseID]; !ok {
		return domain.ErrNotFound
	}
	r.s.licenses[license.LicenseID] = license
	return nil
}

func (r *memLicenses) Delete(_ context.Context, licenseID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	license, ok := r.s.licenses[licenseID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.s.licenses, licenseID)
	delete(r.s.licensesByKey, license.LicenseKey)
	return nil
}

type memActivations struct{ s *memStore }

func (r *memActivations) Add(_ context.Context, activation domain.Activation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.activations[activation.ActivationID] = activation
	return nil
}

func (r *memActivations) Update(_ context.Context, activation domain.Activation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.activations[activation.ActivationID]; !ok {
		return domain.ErrNotFound
	}
	r.s.activations[activation.ActivationID] = activation
	return nil
}

func (r *memActivations) GetByFingerprint(_ context.Context, licenseID uuid.UUID, fingerprint string) (domain.Activation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest domain.Activation
	found := false
	for _, activation := range r.s.activations {
		if activation.LicenseID != licenseID || activation.Fingerprint != fingerprint {
			continue
		}
		if !found || activation.ActivatedAt.After(latest.ActivatedAt) {
			latest = activation
			found = true
		}
	}
	if !found {
		return domain.Activation{}, domain.ErrNotFound
	}
	return latest, nil
}

func (r *memActivations) ListByLicense(_ context.Context, licenseID uuid.UUID) ([]domain.Activation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Activation
	for _, activation := range r.s.activations {
		if activation.LicenseID == licenseID {
			out = append(out, activation)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ActivatedAt.Before(out[j].ActivatedAt)
	})
	return out, nil
}

func (r *memActivations) CountActive(_ context.Context, licenseID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCounts {
		return 0, fmt.Errorf("count query timed out")
	}
	count := 0
	for _, activation := range r.s.activations {
		if activation.LicenseID == licenseID && activation.IsActive() {
			count++
		}
	}
	return count, nil
}

func (r *memActivations) TouchActive(_ context.Context, licenseID uuid.UUID, fingerprint string, seenAt time.Time) (domain.Activation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, activation := range r.s.activations {
		if activation.LicenseID == licenseID && activation.Fingerprint == fingerprint && activation.IsActive() {
			activation.LastSeenAt = seenAt
			r.s.activations[id] = activation
			return activation, nil
		}
	}
	return domain.Activation{}, domain.ErrActivationNotFound
}

func (r *memActivations) CloseActive(_ context.Context, licenseID uuid.UUID, fingerprint string, closedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, activation := range r.s.activations {
		if activation.LicenseID == licenseID && activation.Fingerprint == fingerprint && activation.IsActive() {
			activation.Close(closedAt)
			r.s.activations[id] = activation
			return true, nil
		}
	}
	return false, nil
}

type memOutbox struct{ s *memStore }

func (r *memOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outbox = append(r.s.outbox, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		CreatedAt:    event.OccurredAt,
		FirstSeenAt:  event.OccurredAt,
	})
	return nil
}

func (r *memOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var claimed []ports.OutboxRecord
	for i := range r.s.outbox {
		if len(claimed) >= limit {
			break
		}
		rec := &r.s.outbox[i]
		if rec.PublishedAt != nil || rec.DeadLetteredAt != nil {
			continue
		}
		token := claimToken
		until := claimUntil
		rec.ClaimToken = &token
		rec.ClaimUntil = &until
		claimed = append(claimed, *rec)
	}
	return claimed, nil
}

func (r *memOutbox) MarkPublished(_ context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return r.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.PublishedAt = &at
	})
}

func (r *memOutbox) MarkFailed(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.RetryCount++
		rec.LastError = &errMsg
		rec.LastErrorAt = &at
	})
}

func (r *memOutbox) MarkDeadLettered(_ context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.mark(outboxID, claimToken, func(rec *ports.OutboxRecord) {
		rec.LastError = &errMsg
		rec.DeadLetteredAt = &at
	})
}

func (r *memOutbox) mark(outboxID uuid.UUID, claimToken string, apply func(*ports.OutboxRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.outbox {
		rec := &r.s.outbox[i]
		if rec.OutboxID == outboxID && rec.ClaimToken != nil && *rec.ClaimToken == claimToken {
			apply(rec)
			return nil
		}
	}
	return domain.ErrNotFound
}

// memCacheRepo is an in-memory ports.CacheRepository. Setting fail makes
// every operation error, for exercising the degrade-to-miss paths.
type memCacheRepo struct {
	mu        sync.Mutex
	entries   map[string][]byte
	published map[string][][]byte
	fail      bool
}

func newMemCacheRepo() *memCacheRepo {
	return &memCacheRepo{
		entries:   map[string][]byte{},
		published: map[string][][]byte{},
	}
}

func (c *memCacheRepo) failure() error {
	if c.fail {
		return fmt.Errorf("cache down")
	}
	return nil
}

func (c *memCacheRepo) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return nil, false, err
	}
	raw, ok := c.entries[key]
	return raw, ok, nil
}

func (c *memCacheRepo) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return err
	}
	c.entries[key] = value
	return nil
}

func (c *memCacheRepo) Remove(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return err
	}
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memCacheRepo) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return false, err
	}
	_, ok := c.entries[key]
	return ok, nil
}

func (c *memCacheRepo) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return 0, err
	}
	current, _ := strconv.ParseInt(strings.TrimSpace(string(c.entries[key])), 10, 64)
	current++
	c.entries[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func (c *memCacheRepo) Refresh(_ context.Context, _ string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure()
}

func (c *memCacheRepo) Publish(_ context.Context, channel string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failure(); err != nil {
		return err
	}
	c.published[channel] = append(c.published[channel], payload)
	return nil
}

func (c *memCacheRepo) Subscribe(ctx context.Context, _ string, _ func(payload []byte)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *memCacheRepo) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// captureSink records audit events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

func (s *captureSink) Record(_ context.Context, event ports.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event.Action)
	}
	return out
}
