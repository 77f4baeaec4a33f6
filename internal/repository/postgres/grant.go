package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
)

type grantRepository struct {
	BaseRepository
}

func NewGrantRepository(base BaseRepository) repository.GrantRepository {
	return &grantRepository{base}
}

func (r *grantRepository) Insert(ctx context.Context, grant *model.Grant) error {
	query := `
		INSERT INTO grants (id, record_id, owner_id, grantee_id, level, granted_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		grant.ID,
		grant.RecordID,
		grant.OwnerID,
		grant.GranteeID,
		grant.Level,
		grant.GrantedAt,
		grant.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

// RevokeForRecord clears every un-revoked grant for the grantee on one record.
// Repeated calls are no-ops, which keeps bulk revocation retryable.
func (r *grantRepository) RevokeForRecord(ctx context.Context, recordID, granteeID uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE grants
		SET revoked = true, revoked_at = $3
		WHERE record_id = $1 AND grantee_id = $2 AND NOT revoked
	`
	result, err := r.GetDB().ExecContext(ctx, query, recordID, granteeID, at)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke grants: %w", err)
	}
	return result.RowsAffected()
}

// ActiveGrant returns the most permissive active grant, or nil if none.
// Activity is recomputed from expires_at/revoked at call time.
func (r *grantRepository) ActiveGrant(ctx context.Context, recordID, granteeID uuid.UUID, now time.Time) (*model.ActiveGrant, error) {
	query := `
		SELECT level, expires_at
		FROM grants
		WHERE record_id = $1 AND grantee_id = $2 AND NOT revoked
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY CASE level WHEN 'write' THEN 0 ELSE 1 END, granted_at DESC
		LIMIT 1
	`
	var active model.ActiveGrant
	if err := r.GetDB().GetContext(ctx, &active, query, recordID, granteeID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up active grant: %w", err)
	}
	return &active, nil
}

func (r *grantRepository) HasAnyGrant(ctx context.Context, recordID, granteeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM grants WHERE record_id = $1 AND grantee_id = $2)`

	var exists bool
	if err := r.GetDB().GetContext(ctx, &exists, query, recordID, granteeID); err != nil {
		return false, fmt.Errorf("failed to check grant history: %w", err)
	}
	return exists, nil
}

func (r *grantRepository) ListActiveGrantees(ctx context.Context, recordID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT grantee_id
		FROM grants
		WHERE record_id = $1 AND NOT revoked
		  AND (expires_at IS NULL OR expires_at > $2)
	`
	var grantees []uuid.UUID
	if err := r.GetDB().SelectContext(ctx, &grantees, query, recordID, now); err != nil {
		return nil, fmt.Errorf("failed to list active grantees: %w", err)
	}
	return grantees, nil
}

func (r *grantRepository) ListForRecord(ctx context.Context, recordID uuid.UUID) ([]*model.Grant, error) {
	query := `SELECT * FROM grants WHERE record_id = $1 ORDER BY granted_at DESC`

	var grants []*model.Grant
	if err := r.GetDB().SelectContext(ctx, &grants, query, recordID); err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

func (r *grantRepository) RecordsWithActiveGrants(ctx context.Context, ownerID, granteeID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT record_id
		FROM grants
		WHERE owner_id = $1 AND grantee_id = $2 AND NOT revoked
		  AND (expires_at IS NULL OR expires_at > $3)
	`
	var recordIDs []uuid.UUID
	if err := r.GetDB().SelectContext(ctx, &recordIDs, query, ownerID, granteeID, now); err != nil {
		return nil, fmt.Errorf("failed to list records with active grants: %w", err)
	}
	return recordIDs, nil
}
