package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/job"
	"github.com/xraph/flowsync/queue"
)

// Service provides dead-letter operations over a Store and the queue
// entries are replayed into.
type Service struct {
	store  Store
	queues queue.Store
}

// NewService creates a DLQ service.
func NewService(store Store, queues queue.Store) *Service {
	return &Service{store: store, queues: queues}
}

// Push records a delivery that will not be retried.
func (s *Service) Push(ctx context.Context, d *queue.Delivery, cause error) (*Entry, error) {
	entry := &Entry{
		ID:         id.NewDLQID(),
		DeliveryID: d.ID,
		Queue:      d.Queue,
		Payload:    d.Payload,
		Attempts:   d.Attempt,
		FailedAt:   time.Now().UTC(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if msg, err := job.Decode(d.Payload); err == nil {
		entry.TenantID = msg.TenantID
		entry.FlowName = msg.FlowName
	}

	if err := s.store.PushDLQ(ctx, entry); err != nil {
		return nil, fmt.Errorf("dlq: push delivery %s: %w", d.ID, err)
	}
	return entry, nil
}

// Replay pushes the entry's payload back to its queue as a new delivery
// and marks the entry replayed. If marking fails the new delivery is still
// returned together with the error.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*queue.Delivery, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	d, err := s.queues.PushMessage(ctx, entry.Queue, entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("dlq: replay %s: %w", entryID, err)
	}
	if err := s.store.ReplayDLQ(ctx, entryID, time.Now().UTC()); err != nil {
		return d, fmt.Errorf("dlq: mark %s replayed: %w", entryID, err)
	}
	return d, nil
}

// List returns entries matching opts.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return s.store.ListDLQ(ctx, opts)
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, entryID id.DLQID) (*Entry, error) {
	return s.store.GetDLQ(ctx, entryID)
}

// Purge removes entries that failed before the given time.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return s.store.PurgeDLQ(ctx, before)
}

// Count returns the number of entries.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountDLQ(ctx)
}
