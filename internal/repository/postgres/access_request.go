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

type accessRequestRepository struct {
	BaseRepository
}

func NewAccessRequestRepository(base BaseRepository) repository.AccessRequestRepository {
	return &accessRequestRepository{base}
}

const requestColumns = `
	id, requester_id, owner_id, reason, requested_level, requested_categories,
	urgency, status, response_message, created_at, updated_at, responded_at, expires_at
`

func (r *accessRequestRepository) Create(ctx context.Context, req *model.AccessRequest) error {
	query := `
		INSERT INTO access_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.OwnerID,
		req.Reason,
		req.RequestedLevel,
		pq.Array(categoryStrings(req.RequestedCategories)),
		req.Urgency,
		req.Status,
		req.ResponseMessage,
		req.CreatedAt,
		req.UpdatedAt,
		req.RespondedAt,
		req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access request: %w", err)
	}
	return nil
}

func (r *accessRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`

	row := r.GetDB().QueryRowxContext(ctx, query, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get access request: %w", err)
	}
	return req, nil
}

func (r *accessRequestRepository) PendingExists(ctx context.Context, requesterID, ownerID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM access_requests
			WHERE requester_id = $1 AND owner_id = $2 AND status = 'pending'
		)
	`
	var exists bool
	if err := r.GetDB().GetContext(ctx, &exists, query, requesterID, ownerID); err != nil {
		return false, fmt.Errorf("failed to check pending requests: %w", err)
	}
	return exists, nil
}

// UpdatePending rewrites the editable fields of a request while it is still
// pending. Returns false when the row was not pending anymore.
func (r *accessRequestRepository) UpdatePending(ctx context.Context, req *model.AccessRequest) (bool, error) {
	query := `
		UPDATE access_requests
		SET reason = $2, requested_level = $3, requested_categories = $4, urgency = $5, updated_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		req.ID,
		req.Reason,
		req.RequestedLevel,
		pq.Array(categoryStrings(req.RequestedCategories)),
		req.Urgency,
		req.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update access request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Respond moves a pending request to its terminal status. The status guard in
// the WHERE clause makes the transition single-shot under concurrency.
func (r *accessRequestRepository) Respond(ctx context.Context, req *model.AccessRequest) (bool, error) {
	query := `
		UPDATE access_requests
		SET status = $2, response_message = $3, responded_at = $4, expires_at = $5, updated_at = $6
		WHERE id = $1 AND status = 'pending'
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		req.ID,
		req.Status,
		req.ResponseMessage,
		req.RespondedAt,
		req.ExpiresAt,
		req.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to respond to access request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *accessRequestRepository) DeletePending(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `DELETE FROM access_requests WHERE id = $1 AND status = 'pending'`

	result, err := r.GetDB().ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to withdraw access request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *accessRequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*model.AccessRequest, error) {
	return r.list(ctx, "requester_id", requesterID)
}

func (r *accessRequestRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.AccessRequest, error) {
	return r.list(ctx, "owner_id", ownerID)
}

func (r *accessRequestRepository) list(ctx context.Context, column string, id uuid.UUID) ([]*model.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE ` + column + ` = $1 ORDER BY created_at DESC`

	rows, err := r.GetDB().QueryxContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list access requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.AccessRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*model.AccessRequest, error) {
	var req model.AccessRequest
	var categories pq.StringArray

	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.OwnerID,
		&req.Reason,
		&req.RequestedLevel,
		&categories,
		&req.Urgency,
		&req.Status,
		&req.ResponseMessage,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.RespondedAt,
		&req.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	req.RequestedCategories = make([]model.Category, len(categories))
	for i, c := range categories {
		req.RequestedCategories[i] = model.Category(c)
	}
	return &req, nil
}

func categoryStrings(categories []model.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}
