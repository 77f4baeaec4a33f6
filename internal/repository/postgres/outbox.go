package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// FetchPending claims a batch for one worker. The rows move to PROCESSING
// before the transaction commits, so a second worker polling after the row
// locks release cannot pick up the same events and publish them twice.
func (r *outboxRepository) FetchPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			SELECT * FROM outbox_events
			WHERE status = 'PENDING'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`
		if err := tx.SelectContext(ctx, &events, query, limit); err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(events))
		for i, event := range events {
			ids[i] = event.ID
			event.Status = model.OutboxStatusProcessing
		}
		claim, args, err := sqlx.In(
			`UPDATE outbox_events SET status = 'PROCESSING', updated_at = NOW() WHERE id IN (?)`,
			ids,
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(claim), args...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = 'PROCESSED', processed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.GetDB().ExecContext(ctx, query, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE outbox_events
		SET status = 'FAILED', error_message = $2, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.GetDB().ExecContext(ctx, query, id, message)
	return err
}
