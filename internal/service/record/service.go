package record

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
	"github.com/recordvault/access-api/pkg/errors"
)

// Service manages record metadata: owner, category and emergency visibility.
// Record content lives with the storage collaborator and never passes
// through this subsystem.
type Service struct {
	repo repository.RecordRepository
	now  func() time.Time
}

func NewService(repo repository.RecordRepository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, category model.Category, title string, emergencyVisible bool) (*model.Record, error) {
	if !category.Valid() {
		return nil, errors.BadRequest("invalid category", nil)
	}

	now := s.now()
	record := &model.Record{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OwnerID:          ownerID,
		Category:         category,
		Title:            title,
		EmergencyVisible: emergencyVisible,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return record, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Record, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("record", err)
		}
		return nil, errors.StoreUnavailable(err)
	}
	return record, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Record, error) {
	records, err := s.repo.ListByOwner(ctx, ownerID, nil)
	if err != nil {
		return nil, errors.StoreUnavailable(err)
	}
	return records, nil
}
