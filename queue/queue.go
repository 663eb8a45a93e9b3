package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/flowsync/id"
)

// Delivery is one queued payload and its delivery state.
type Delivery struct {
	ID      id.DeliveryID `json:"id"`
	Queue   string        `json:"queue"`
	Payload string        `json:"payload"`

	// Attempt counts claims, starting at 1 on the first claim.
	Attempt int `json:"attempt"`

	// LastError is the error recorded by the most recent RetryMessage.
	LastError string `json:"last_error,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`

	// VisibleAt is when the delivery can next be claimed.
	VisibleAt time.Time `json:"visible_at"`
}

// Store defines the persistence contract for queued deliveries.
type Store interface {
	// PushMessage appends payload to queue, visible immediately.
	PushMessage(ctx context.Context, queue, payload string) (*Delivery, error)

	// ClaimMessages leases up to limit visible deliveries from queue,
	// oldest first. Each claimed delivery has its Attempt incremented and
	// is hidden for the visibility duration.
	ClaimMessages(ctx context.Context, queue string, limit int, visibility time.Duration) ([]*Delivery, error)

	// AckMessage removes a delivery permanently.
	AckMessage(ctx context.Context, d *Delivery) error

	// RetryMessage makes a claimed delivery visible again after delay and
	// records d.LastError.
	RetryMessage(ctx context.Context, d *Delivery, delay time.Duration) error

	// ExtendLease keeps a claimed delivery hidden for another visibility
	// duration from now. It returns flowsync.ErrDeliveryNotFound once the
	// delivery has been acknowledged.
	ExtendLease(ctx context.Context, d *Delivery, visibility time.Duration) error

	// CountMessages returns the number of deliveries in queue, visible or
	// leased.
	CountMessages(ctx context.Context, queue string) (int64, error)
}

// Producer pushes encoded job messages to one named queue.
type Producer struct {
	store Store
	queue string
}

// NewProducer returns a Producer for queue.
func NewProducer(store Store, queue string) *Producer {
	return &Producer{store: store, queue: queue}
}

// Queue returns the queue name.
func (p *Producer) Queue() string { return p.queue }

// Push enqueues payload and returns the stored delivery.
func (p *Producer) Push(ctx context.Context, payload string) (*Delivery, error) {
	d, err := p.store.PushMessage(ctx, p.queue, payload)
	if err != nil {
		return nil, fmt.Errorf("queue: push to %q: %w", p.queue, err)
	}
	return d, nil
}

// Enqueue implements cron.Enqueuer.
func (p *Producer) Enqueue(ctx context.Context, payload string) error {
	_, err := p.Push(ctx, payload)
	return err
}

type deliveryKey struct{}

// WithDelivery returns a context carrying d.
func WithDelivery(ctx context.Context, d *Delivery) context.Context {
	return context.WithValue(ctx, deliveryKey{}, d)
}

// DeliveryFromContext returns the delivery being processed, if any.
func DeliveryFromContext(ctx context.Context) (*Delivery, bool) {
	d, ok := ctx.Value(deliveryKey{}).(*Delivery)
	return d, ok && d != nil
}
