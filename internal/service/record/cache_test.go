package record

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordvault/access-api/internal/model"
)

type countingRecordRepo struct {
	records map[uuid.UUID]*model.Record
	gets    int
}

func (f *countingRecordRepo) Create(_ context.Context, record *model.Record) error {
	f.records[record.ID] = record
	return nil
}

func (f *countingRecordRepo) Get(_ context.Context, id uuid.UUID) (*model.Record, error) {
	f.gets++
	record, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return record, nil
}

func (f *countingRecordRepo) ListByOwner(_ context.Context, _ uuid.UUID, _ []model.Category) ([]*model.Record, error) {
	return nil, nil
}

func TestCachedStoreHitsRepoOnce(t *testing.T) {
	record := &model.Record{Base: model.Base{ID: uuid.New()}, OwnerID: uuid.New()}
	repo := &countingRecordRepo{records: map[uuid.UUID]*model.Record{record.ID: record}}
	store := NewCachedStore(repo, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := store.Get(context.Background(), record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.ID, got.ID)
	}
	assert.Equal(t, 1, repo.gets)
}

func TestCachedStoreDoesNotCacheMisses(t *testing.T) {
	repo := &countingRecordRepo{records: map[uuid.UUID]*model.Record{}}
	store := NewCachedStore(repo, time.Minute)
	missing := uuid.New()

	for i := 0; i < 2; i++ {
		_, err := store.Get(context.Background(), missing)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	}
	assert.Equal(t, 2, repo.gets)
}
