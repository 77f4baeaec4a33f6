package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
	"github.com/recordvault/access-api/pkg/errors"
	"github.com/recordvault/access-api/pkg/metrics"
)

// Service fronts the append-only audit log. Append never fails silently: a
// store fault becomes StoreUnavailable so callers holding an authorization
// decision fail closed instead of allowing an unaudited access.
type Service struct {
	repo    repository.AuditRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.AuditRepository, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		now:     time.Now,
	}
}

// EntryOptions carries the optional parts of an audit entry.
type EntryOptions struct {
	RecordID   *uuid.UUID
	Reason     string
	Origin     model.Origin
	Metadata   interface{}
	Denied     bool
	DenyReason model.DenyReason
}

// Append writes one entry and returns its monotonic id.
func (s *Service) Append(ctx context.Context, ownerID, accessorID uuid.UUID, accessType model.AccessType, opts *EntryOptions) (int64, error) {
	entry := &model.AuditEntry{
		OwnerID:    ownerID,
		AccessorID: accessorID,
		AccessType: accessType,
		CreatedAt:  s.now(),
	}

	if opts != nil {
		entry.RecordID = opts.RecordID
		entry.Reason = opts.Reason
		entry.IPAddress = opts.Origin.IPAddress
		entry.UserAgent = opts.Origin.UserAgent
		entry.Denied = opts.Denied
		entry.DenyReason = opts.DenyReason

		if opts.Metadata != nil {
			metadata, err := json.Marshal(opts.Metadata)
			if err != nil {
				return 0, errors.Internal(err)
			}
			entry.Metadata = metadata
		}
	}

	id, err := s.repo.Insert(ctx, entry)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AuditAppendFailures.Inc()
		}
		return 0, errors.StoreUnavailable(err)
	}
	if s.metrics != nil {
		s.metrics.AuditAppends.Inc()
	}
	return id, nil
}

// Query returns a finite, restartable page of entries. Re-running the same
// filter and cursor yields the same result set as of read time.
func (s *Service) Query(ctx context.Context, filter *model.AuditFilter) ([]*model.AuditEntry, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 1000
	}
	entries, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return entries, nil
}

func (s *Service) AggregateStats(ctx context.Context, filter *model.AuditFilter) (*model.AggregateStats, error) {
	stats, err := s.repo.AggregateStats(ctx, filter)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return stats, nil
}
