package auditService

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"share-service/internal/events"
	"share-service/internal/model/auditInfo"
)

type Store interface {
	Append(ctx context.Context, event *auditInfo.Event) error
	ListByActor(ctx context.Context, actorID uint32, limit int) ([]*auditInfo.Event, error)
}

type SidePublisher interface {
	Publish(subject string, payload any) error
}

const (
	queueSize     = 1024
	appendRetries = 3
	appendTimeout = 5 * time.Second
)

// AuditService decouples audit appends from the operations they describe.
// Record never blocks and never reports failure to the caller; the worker
// retries the durable insert and surfaces terminal failures through the
// logger and the event side-channel, not through the primary operation.
//
// A single worker goroutine drains the queue, so events keep the order their
// actors enqueued them in. When the queue backs up, Record spills into an
// unbounded overflow slice instead of blocking; the worker moves spilled
// events back into the queue in arrival order.
type AuditService struct {
	store Store
	side  SidePublisher
	log   *zap.Logger

	queue chan *auditInfo.Event
	wake  chan struct{}
	quit  chan struct{}
	wg    sync.WaitGroup

	mu       sync.Mutex
	overflow []*auditInfo.Event
}

func New(store Store, side SidePublisher, log *zap.Logger) *AuditService {
	s := &AuditService{
		store: store,
		side:  side,
		log:   log,
		queue: make(chan *auditInfo.Event, queueSize),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Record enqueues an audit event and never blocks. While the overflow buffer
// is non-empty every new event goes there too, so a backed-up queue cannot
// reorder events relative to each other.
func (s *AuditService) Record(actorID uint32, action auditInfo.Action, fileID *uuid.UUID, details map[string]any) {
	event := auditInfo.New(actorID, action, fileID, details)

	s.mu.Lock()
	if len(s.overflow) == 0 {
		select {
		case s.queue <- event:
			s.mu.Unlock()
			return
		default:
		}
	}
	s.overflow = append(s.overflow, event)
	spilled := len(s.overflow)
	s.mu.Unlock()

	if spilled == 1 {
		s.log.Warn("audit queue full, spilling to overflow buffer",
			zap.String("action", string(action)))
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *AuditService) History(ctx context.Context, actorID uint32, limit int) ([]*auditInfo.Event, error) {
	return s.store.ListByActor(ctx, actorID, limit)
}

// Close drains queued and spilled events and stops the worker.
func (s *AuditService) Close() {
	close(s.quit)
	s.wg.Wait()
}

func (s *AuditService) run() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.queue:
			s.persist(event)
			s.refill()
		case <-s.wake:
			s.refill()
		case <-s.quit:
			s.drain()
			return
		}
	}
}

// refill moves spilled events back into the queue. Record and refill share
// the mutex, so an event recorded during a refill lands either in the queue
// after the refilled ones or at the tail of the overflow; arrival order
// survives either way.
func (s *AuditService) refill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.overflow) > 0 {
		select {
		case s.queue <- s.overflow[0]:
			s.overflow = s.overflow[1:]
		default:
			return
		}
	}
}

// drain persists everything still pending. Queued events always predate
// spilled ones, so the queue empties first.
func (s *AuditService) drain() {
	for {
		select {
		case event := <-s.queue:
			s.persist(event)
		default:
			s.mu.Lock()
			if len(s.overflow) == 0 {
				s.mu.Unlock()
				return
			}
			event := s.overflow[0]
			s.overflow = s.overflow[1:]
			s.mu.Unlock()
			s.persist(event)
		}
	}
}

func (s *AuditService) persist(event *auditInfo.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= appendRetries; attempt++ {
		if err = s.store.Append(ctx, event); err == nil {
			break
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		// Silent loss is unacceptable; the full event goes to the log so an
		// operator can replay it.
		s.log.Error("audit append failed after retries",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
			zap.Uint32("actor_id", event.ActorID),
			zap.String("action", string(event.Action)),
			zap.Any("details", event.Details))
	}

	if s.side != nil {
		if pubErr := s.side.Publish(events.SubjectAudit, event); pubErr != nil {
			s.log.Warn("audit side-channel publish failed", zap.Error(pubErr))
		}
	}
}
