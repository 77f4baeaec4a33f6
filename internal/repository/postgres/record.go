package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
)

type recordRepository struct {
	BaseRepository
}

func NewRecordRepository(base BaseRepository) repository.RecordRepository {
	return &recordRepository{base}
}

func (r *recordRepository) Create(ctx context.Context, record *model.Record) error {
	query := `
		INSERT INTO records (id, owner_id, category, title, emergency_visible, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		record.ID,
		record.OwnerID,
		record.Category,
		record.Title,
		record.EmergencyVisible,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *recordRepository) Get(ctx context.Context, id uuid.UUID) (*model.Record, error) {
	query := `SELECT * FROM records WHERE id = $1`

	var record model.Record
	if err := r.GetDB().GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &record, nil
}

func (r *recordRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, categories []model.Category) ([]*model.Record, error) {
	query := `SELECT * FROM records WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if len(categories) > 0 {
		cats := make([]string, len(categories))
		for i, c := range categories {
			cats[i] = string(c)
		}
		query += " AND category = ANY($2)"
		args = append(args, pq.Array(cats))
	}
	query += " ORDER BY created_at"

	var records []*model.Record
	if err := r.GetDB().SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
