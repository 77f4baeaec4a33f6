package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
)

// Service queues notification events through the outbox. Notifications inform
// the collaborator of workflow outcomes but never influence correctness, so a
// failed enqueue is logged and swallowed.
type Service struct {
	outboxRepo repository.OutboxRepository
}

func NewService(outboxRepo repository.OutboxRepository) *Service {
	return &Service{outboxRepo: outboxRepo}
}

func (s *Service) RequestCreated(ctx context.Context, req *model.AccessRequest) {
	s.enqueue(ctx, model.EventRequestCreated, map[string]interface{}{
		"request_id":   req.ID,
		"requester_id": req.RequesterID,
		"owner_id":     req.OwnerID,
		"urgency":      req.Urgency,
	})
}

func (s *Service) RequestResponded(ctx context.Context, req *model.AccessRequest) {
	s.enqueue(ctx, model.EventRequestResponded, map[string]interface{}{
		"request_id":   req.ID,
		"requester_id": req.RequesterID,
		"owner_id":     req.OwnerID,
		"status":       req.Status,
	})
}

func (s *Service) AccessGranted(ctx context.Context, ownerID, granteeID, recordID uuid.UUID) {
	s.enqueue(ctx, model.EventAccessGranted, map[string]interface{}{
		"owner_id":   ownerID,
		"grantee_id": granteeID,
		"record_id":  recordID,
	})
}

func (s *Service) AccessRevoked(ctx context.Context, ownerID, granteeID uuid.UUID, affected int) {
	s.enqueue(ctx, model.EventAccessRevoked, map[string]interface{}{
		"owner_id":   ownerID,
		"grantee_id": granteeID,
		"affected":   affected,
	})
}

func (s *Service) enqueue(ctx context.Context, eventType string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal notification payload")
		return
	}

	now := time.Now()
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to enqueue notification event")
	}
}
