package permission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
	"github.com/recordvault/access-api/pkg/errors"
)

// Service is the permission store: the per-record list of grants. Grants are
// appended, never overwritten, so a revoke clears all matching rows.
type Service struct {
	grants repository.GrantRepository
	now    func() time.Time
}

func NewService(grants repository.GrantRepository) *Service {
	return &Service{
		grants: grants,
		now:    time.Now,
	}
}

// Grant appends a new grant for the grantee on one record. Repeated calls are
// idempotent in effect: the record stays accessible, each call adds a row.
func (s *Service) Grant(ctx context.Context, recordID, ownerID, granteeID uuid.UUID, level model.AccessLevel, ttl *time.Duration) (*model.Grant, error) {
	if !level.Valid() {
		return nil, errors.BadRequest("invalid access level", nil)
	}

	now := s.now()
	grant := &model.Grant{
		ID:        uuid.New(),
		RecordID:  recordID,
		OwnerID:   ownerID,
		GranteeID: granteeID,
		Level:     level,
		GrantedAt: now,
	}
	if ttl != nil {
		expires := now.Add(*ttl)
		grant.ExpiresAt = &expires
	}

	if err := s.grants.Insert(ctx, grant); err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return grant, nil
}

// GrantUntil appends a grant with an absolute expiry, used by the request
// workflow where the owner picks the expiry date.
func (s *Service) GrantUntil(ctx context.Context, recordID, ownerID, granteeID uuid.UUID, level model.AccessLevel, expiresAt *time.Time) (*model.Grant, error) {
	if !level.Valid() {
		return nil, errors.BadRequest("invalid access level", nil)
	}

	grant := &model.Grant{
		ID:        uuid.New(),
		RecordID:  recordID,
		OwnerID:   ownerID,
		GranteeID: granteeID,
		Level:     level,
		GrantedAt: s.now(),
		ExpiresAt: expiresAt,
	}

	if err := s.grants.Insert(ctx, grant); err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return grant, nil
}

// Revoke removes the grantee from every record the owner controls that still
// lists them as active. Per-record updates are independent; a transient fault
// on one record surfaces as a partial failure and the caller retries. Re-runs
// converge because already-revoked rows match nothing.
func (s *Service) Revoke(ctx context.Context, ownerID, granteeID uuid.UUID) (*model.RevocationResult, error) {
	now := s.now()

	recordIDs, err := s.grants.RecordsWithActiveGrants(ctx, ownerID, granteeID, now)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}

	result := &model.RevocationResult{}
	for _, recordID := range recordIDs {
		if _, err := s.grants.RevokeForRecord(ctx, recordID, granteeID, now); err != nil {
			result.Failures = append(result.Failures, model.RecordFailure{
				RecordID: recordID,
				Reason:   err.Error(),
			})
			continue
		}
		result.Affected++
	}

	if len(result.Failures) > 0 {
		failures := make([]errors.RecordFailure, len(result.Failures))
		for i, f := range result.Failures {
			failures[i] = errors.RecordFailure{RecordID: f.RecordID, Reason: f.Reason}
		}
		return result, errors.PartialFailure(result.Affected, failures)
	}
	return result, nil
}

// IsActive returns the effective permission for the grantee on the record, or
// nil when no grant is active. Expiry is recomputed here, at read time.
func (s *Service) IsActive(ctx context.Context, recordID, granteeID uuid.UUID) (*model.ActiveGrant, error) {
	active, err := s.grants.ActiveGrant(ctx, recordID, granteeID, s.now())
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return active, nil
}

// HadGrant reports whether any grant, active or not, ever existed. Used to
// tell an expired or revoked grant apart from no grant in audit reasons.
func (s *Service) HadGrant(ctx context.Context, recordID, granteeID uuid.UUID) (bool, error) {
	had, err := s.grants.HasAnyGrant(ctx, recordID, granteeID)
	if err != nil {
		return false, errors.StoreUnavailable(err)
	}
	return had, nil
}

func (s *Service) ListActiveGrantees(ctx context.Context, recordID uuid.UUID) ([]uuid.UUID, error) {
	grantees, err := s.grants.ListActiveGrantees(ctx, recordID, s.now())
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return grantees, nil
}

// ListGrants returns the full grant history of a record for display.
func (s *Service) ListGrants(ctx context.Context, recordID uuid.UUID) ([]*model.Grant, error) {
	grants, err := s.grants.ListForRecord(ctx, recordID)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return grants, nil
}
