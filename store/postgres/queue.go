package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
)

// PushMessage inserts a delivery visible immediately.
func (s *Store) PushMessage(ctx context.Context, q, payload string) (*queue.Delivery, error) {
	ts := now()
	d := &queue.Delivery{
		ID:         id.NewDeliveryID(),
		Queue:      q,
		Payload:    payload,
		EnqueuedAt: ts,
		VisibleAt:  ts,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO flowsync_deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, 0, '', $4, $5)`,
		d.ID.String(), d.Queue, d.Payload, d.EnqueuedAt, d.VisibleAt,
	)
	if err != nil {
		return nil, fmt.Errorf("flowsync/postgres: push message: %w", err)
	}
	return d, nil
}

// ClaimMessages leases up to limit visible deliveries in one statement.
// FOR UPDATE SKIP LOCKED keeps concurrent claimers off each other's rows.
func (s *Store) ClaimMessages(ctx context.Context, q string, limit int, visibility time.Duration) ([]*queue.Delivery, error) {
	if limit <= 0 {
		return nil, nil
	}
	ts := now()

	rows, err := s.pool.Query(ctx, `
		UPDATE flowsync_deliveries d
		SET attempt = d.attempt + 1, visible_at = $3
		FROM (
			SELECT id FROM flowsync_deliveries
			WHERE queue = $1 AND visible_at <= $4
			ORDER BY visible_at, seq
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		) c
		WHERE d.id = c.id
		RETURNING d.id, d.queue, d.payload, d.attempt, d.last_error, d.enqueued_at, d.visible_at, d.seq`,
		q, limit, ts.Add(visibility), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("flowsync/postgres: claim messages: %w", err)
	}
	defer rows.Close()

	type claimed struct {
		d   *queue.Delivery
		seq int64
	}
	var out []claimed
	for rows.Next() {
		var (
			r   deliveryRow
			seq int64
		)
		if err := rows.Scan(append(r.dest(), &seq)...); err != nil {
			return nil, fmt.Errorf("flowsync/postgres: claim scan: %w", err)
		}
		d, err := r.toDelivery()
		if err != nil {
			return nil, fmt.Errorf("flowsync/postgres: claim convert: %w", err)
		}
		out = append(out, claimed{d: d, seq: seq})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flowsync/postgres: claim messages: %w", err)
	}

	// RETURNING carries no ordering guarantee.
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	deliveries := make([]*queue.Delivery, len(out))
	for i, c := range out {
		deliveries[i] = c.d
	}
	return deliveries, nil
}

// AckMessage deletes a delivery.
func (s *Store) AckMessage(ctx context.Context, d *queue.Delivery) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM flowsync_deliveries WHERE id = $1`, d.ID.String())
	if err != nil {
		return fmt.Errorf("flowsync/postgres: ack message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// RetryMessage moves visible_at to now+delay and records d.LastError.
func (s *Store) RetryMessage(ctx context.Context, d *queue.Delivery, delay time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE flowsync_deliveries SET visible_at = $2, last_error = $3 WHERE id = $1`,
		d.ID.String(), now().Add(delay), d.LastError,
	)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: retry message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// ExtendLease moves visible_at of a leased delivery to now+visibility.
func (s *Store) ExtendLease(ctx context.Context, d *queue.Delivery, visibility time.Duration) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE flowsync_deliveries SET visible_at = $2 WHERE id = $1`,
		d.ID.String(), now().Add(visibility),
	)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: extend lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// CountMessages counts deliveries in q.
func (s *Store) CountMessages(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flowsync_deliveries WHERE queue = $1`, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("flowsync/postgres: count messages: %w", err)
	}
	return n, nil
}
