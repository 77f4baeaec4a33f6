package record

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/internal/repository"
)

// CachedStore fronts the record repository with a short-TTL metadata cache
// for the gateway's hot path. Only record metadata is cached; grants are
// always read fresh so revocation takes effect immediately. A flipped
// emergency_visible flag may lag by at most the TTL.
type CachedStore struct {
	repo repository.RecordRepository
	c    *gocache.Cache
}

func NewCachedStore(repo repository.RecordRepository, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{
		repo: repo,
		c:    gocache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) Get(ctx context.Context, id uuid.UUID) (*model.Record, error) {
	if cached, ok := s.c.Get(id.String()); ok {
		return cached.(*model.Record), nil
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.c.SetDefault(id.String(), record)
	return record, nil
}
