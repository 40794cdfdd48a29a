package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/ports"
)

// OutboxAuditSink persists audit events through the transactional outbox.
// Record never surfaces failures to the caller: the audit trail rides
// alongside license operations and must not fail them.
type OutboxAuditSink struct {
	logger *slog.Logger
	outbox ports.OutboxRepository
}

func NewOutboxAuditSink(logger *slog.Logger, outbox ports.OutboxRepository) *OutboxAuditSink {
	return &OutboxAuditSink{logger: logger, outbox: outbox}
}

func (s *OutboxAuditSink) Record(ctx context.Context, event ports.AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WarnContext(ctx, "audit event dropped",
			"module", "events.audit_sink",
			"layer", "adapter",
			"operation", "record_audit",
			"outcome", "failure",
			"action", event.Action,
			"error", err,
		)
		return
	}

	if err := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    event.Action,
		PartitionKey: event.EntityID,
		Payload:      payload,
		OccurredAt:   event.Timestamp,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit event dropped",
			"module", "events.audit_sink",
			"layer", "adapter",
			"operation", "record_audit",
			"outcome", "failure",
			"action", event.Action,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"error", err,
		)
	}
}
