package auditService_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"share-service/internal/events"
	"share-service/internal/model/auditInfo"
	"share-service/internal/service/auditService"
)

type fakeStore struct {
	mu       sync.Mutex
	events   []*auditInfo.Event
	failures int
	attempts int
}

func (f *fakeStore) Append(_ context.Context, event *auditInfo.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("transient insert failure")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListByActor(_ context.Context, actorID uint32, limit int) ([]*auditInfo.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*auditInfo.Event
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].ActorID == actorID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
}

func (f *fakePublisher) Publish(subject string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestRecordPersistsInOrder(t *testing.T) {
	store := &fakeStore{}
	svc := auditService.New(store, nil, zap.NewNop())

	fileID := uuid.New()
	svc.Record(1, auditInfo.ActionUpload, &fileID, map[string]any{"name": "a.txt"})
	svc.Record(1, auditInfo.ActionShare, &fileID, nil)
	svc.Record(1, auditInfo.ActionDownload, &fileID, nil)
	svc.Close()

	assert.Len(t, store.events, 3)
	assert.Equal(t, auditInfo.ActionUpload, store.events[0].Action)
	assert.Equal(t, auditInfo.ActionShare, store.events[1].Action)
	assert.Equal(t, auditInfo.ActionDownload, store.events[2].Action)
}

// gatedStore blocks every append until the gate opens, so the worker stalls
// and the queue backs up.
type gatedStore struct {
	fakeStore
	gate chan struct{}
}

func (g *gatedStore) Append(ctx context.Context, event *auditInfo.Event) error {
	<-g.gate
	return g.fakeStore.Append(ctx, event)
}

// Backpressure must not reorder or drop events: everything recorded while
// the queue is full still reaches the store, in the order it was recorded.
func TestRecordOverflowKeepsOrder(t *testing.T) {
	store := &gatedStore{gate: make(chan struct{})}
	svc := auditService.New(store, nil, zap.NewNop())

	// One event occupies the worker, the queue holds the next batch, and the
	// remainder spills past its capacity.
	const total = 1100
	for i := 0; i < total; i++ {
		svc.Record(1, auditInfo.ActionView, nil, map[string]any{"seq": i})
	}
	close(store.gate)
	svc.Close()

	assert.Len(t, store.events, total)
	for i, e := range store.events {
		if e.Details["seq"] != i {
			t.Fatalf("event %d out of order: got seq %v", i, e.Details["seq"])
		}
	}
}

func TestRecordRetriesTransientFailure(t *testing.T) {
	store := &fakeStore{failures: 2}
	svc := auditService.New(store, nil, zap.NewNop())

	svc.Record(1, auditInfo.ActionView, nil, nil)
	svc.Close()

	assert.Equal(t, 3, store.attempts)
	assert.Len(t, store.events, 1)
}

func TestSidePublisherReceivesEvents(t *testing.T) {
	store := &fakeStore{}
	side := &fakePublisher{}
	svc := auditService.New(store, side, zap.NewNop())

	fileID := uuid.New()
	svc.Record(2, auditInfo.ActionDelete, &fileID, map[string]any{"name": "b.txt"})
	svc.Close()

	assert.Len(t, side.payloads, 1)
	assert.Equal(t, events.SubjectAudit, side.subjects[0])

	published, ok := side.payloads[0].(*auditInfo.Event)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), published.ActorID)
	assert.Equal(t, auditInfo.ActionDelete, published.Action)
}

func TestHistory(t *testing.T) {
	store := &fakeStore{}
	svc := auditService.New(store, nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		svc.Record(3, auditInfo.ActionView, nil, nil)
	}
	svc.Record(4, auditInfo.ActionView, nil, nil)
	svc.Close()

	got, err := svc.History(context.Background(), 3, 2)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, uint32(3), e.ActorID)
	}
}
