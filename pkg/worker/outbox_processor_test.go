package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordvault/access-api/internal/model"
	"github.com/recordvault/access-api/pkg/logger"
	"github.com/recordvault/access-api/pkg/metrics"
)

// Shared across tests: promauto registers in the global registry, so the
// metrics set can only be built once per test binary.
var testMetrics = metrics.NewMetrics("worker_test")

// claimingOutboxRepo mirrors the store's claim semantics: a fetch hands out
// PENDING events and moves them to PROCESSING in the same step, so a second
// fetch never sees them again.
type claimingOutboxRepo struct {
	events  []*model.OutboxEvent
	fetches int
}

func (f *claimingOutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *claimingOutboxRepo) FetchPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	f.fetches++
	var batch []*model.OutboxEvent
	for _, event := range f.events {
		if event.Status != model.OutboxStatusPending {
			continue
		}
		event.Status = model.OutboxStatusProcessing
		batch = append(batch, event)
		if len(batch) == limit {
			break
		}
	}
	return batch, nil
}

func (f *claimingOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	return f.setStatus(id, model.OutboxStatusProcessed)
}

func (f *claimingOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	return f.setStatus(id, model.OutboxStatusFailed)
}

func (f *claimingOutboxRepo) setStatus(id uuid.UUID, status model.OutboxStatus) error {
	for _, event := range f.events {
		if event.ID == id {
			event.Status = status
			return nil
		}
	}
	return fmt.Errorf("no such event: %s", id)
}

type recordingBroker struct {
	published  []string
	publishErr error
}

func (b *recordingBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, channel)
	return nil
}

func (b *recordingBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (b *recordingBroker) Close() error { return nil }

func pendingEvent() *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventAccessGranted,
		Payload:   json.RawMessage(`{"record_id":"r1"}`),
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func newTestProcessor(repo *claimingOutboxRepo, broker *recordingBroker) *OutboxProcessor {
	return NewOutboxProcessor(repo, broker, nil, OutboxProcessorConfig{
		BatchSize: 10,
		Channel:   "access-notifications",
	}, logger.NewLogger(nil), testMetrics)
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	repo := &claimingOutboxRepo{events: []*model.OutboxEvent{pendingEvent()}}
	broker := &recordingBroker{}
	p := newTestProcessor(repo, broker)

	require.NoError(t, p.processEvents(context.Background()))

	assert.Equal(t, []string{"access-notifications"}, broker.published)
	assert.Equal(t, model.OutboxStatusProcessed, repo.events[0].Status)
}

func TestProcessEventsDeliversEachEventOnce(t *testing.T) {
	repo := &claimingOutboxRepo{events: []*model.OutboxEvent{pendingEvent(), pendingEvent()}}
	broker := &recordingBroker{}
	p := newTestProcessor(repo, broker)

	// Two polling rounds over the same backlog: the claim made at fetch
	// time keeps the second round from re-publishing the first round's
	// events.
	require.NoError(t, p.processEvents(context.Background()))
	require.NoError(t, p.processEvents(context.Background()))

	assert.Equal(t, 2, repo.fetches)
	assert.Len(t, broker.published, 2)
}

func TestProcessEventsMarksFailedOnPublishError(t *testing.T) {
	repo := &claimingOutboxRepo{events: []*model.OutboxEvent{pendingEvent()}}
	broker := &recordingBroker{publishErr: fmt.Errorf("broker down")}
	p := newTestProcessor(repo, broker)

	require.NoError(t, p.processEvents(context.Background()))

	assert.Empty(t, broker.published)
	assert.Equal(t, model.OutboxStatusFailed, repo.events[0].Status)
}
