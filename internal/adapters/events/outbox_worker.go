package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/ports"
)

// WorkerConfig tunes the audit relay loop. Zero values fall back to
// defaults suitable for a single-instance deployment.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	ClaimTTL     time.Duration
	MaxRetries   int
}

// AuditRelay drains the license outbox and hands audit events to the
// configured publisher. Records that keep failing past the retry budget
// are dead-lettered rather than blocking the queue head.
type AuditRelay struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	cfg       WorkerConfig
}

func NewAuditRelay(logger *slog.Logger, outbox ports.OutboxRepository, publisher ports.EventPublisher, cfg WorkerConfig) *AuditRelay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &AuditRelay{logger: logger, outbox: outbox, publisher: publisher, cfg: cfg}
}

// Run drains the outbox on a fixed cadence until ctx is canceled.
func (w *AuditRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.drainOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "audit relay iteration failed",
				"module", "events.audit_relay",
				"layer", "adapter",
				"operation", "drain_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *AuditRelay) drainOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.cfg.BatchSize, claimToken, time.Now().UTC().Add(w.cfg.ClaimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var published, retried, deadLettered int
	for _, rec := range records {
		switch outcome := w.deliver(ctx, rec, claimToken, now); outcome {
		case deliverPublished:
			published++
		case deliverRetry:
			retried++
		case deliverDeadLettered:
			deadLettered++
		}
	}

	w.logger.InfoContext(ctx, "audit batch drained",
		"module", "events.audit_relay",
		"layer", "adapter",
		"operation", "drain_once",
		"outcome", "success",
		"batch_size", len(records),
		"published_count", published,
		"retried_count", retried,
		"dead_lettered_count", deadLettered,
	)
	return nil
}

type deliverOutcome int

const (
	deliverPublished deliverOutcome = iota
	deliverRetry
	deliverDeadLettered
)

func (w *AuditRelay) deliver(ctx context.Context, rec ports.OutboxRecord, claimToken string, now time.Time) deliverOutcome {
	if rec.RetryCount >= w.cfg.MaxRetries {
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry budget exhausted before publish", now)
		return deliverDeadLettered
	}

	if err := w.publisher.Publish(ctx, rec.EventType, rec.Payload); err != nil {
		attempts := rec.RetryCount + 1
		if attempts >= w.cfg.MaxRetries {
			w.logger.ErrorContext(ctx, "audit event dead-lettered",
				"module", "events.audit_relay",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"event_type", rec.EventType,
				"retry_count", attempts,
				"error", err,
			)
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
			return deliverDeadLettered
		}

		w.logger.WarnContext(ctx, "audit publish failed; will retry",
			"module", "events.audit_relay",
			"layer", "adapter",
			"operation", "publish_event",
			"outcome", "failure",
			"outbox_id", rec.OutboxID,
			"event_type", rec.EventType,
			"retry_count", attempts,
			"error", err,
		)
		_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
		return deliverRetry
	}

	_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
	return deliverPublished
}
