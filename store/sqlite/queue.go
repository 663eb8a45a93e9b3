package sqlite

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
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO flowsync_deliveries (id, queue, payload, attempt, last_error, enqueued_at, visible_at)
		VALUES (:id, :queue, :payload, :attempt, :last_error, :enqueued_at, :visible_at)`,
		toDeliveryModel(d))
	if err != nil {
		return nil, fmt.Errorf("flowsync/sqlite: push message: %w", err)
	}
	return d, nil
}

// ClaimMessages leases up to limit visible deliveries. The single
// UPDATE ... RETURNING statement runs atomically under SQLite's writer lock.
func (s *Store) ClaimMessages(ctx context.Context, q string, limit int, visibility time.Duration) ([]*queue.Delivery, error) {
	if limit <= 0 {
		return nil, nil
	}
	ts := now()

	var models []deliveryModel
	err := s.db.SelectContext(ctx, &models, `
		UPDATE flowsync_deliveries
		SET attempt = attempt + 1, visible_at = ?
		WHERE seq IN (
			SELECT seq FROM flowsync_deliveries
			WHERE queue = ? AND visible_at <= ?
			ORDER BY visible_at, seq
			LIMIT ?
		)
		RETURNING *`,
		toNanos(ts.Add(visibility)), q, toNanos(ts), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("flowsync/sqlite: claim messages: %w", err)
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Seq < models[j].Seq })
	out := make([]*queue.Delivery, 0, len(models))
	for i := range models {
		d, err := fromDeliveryModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("flowsync/sqlite: claim convert: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// AckMessage deletes a delivery.
func (s *Store) AckMessage(ctx context.Context, d *queue.Delivery) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flowsync_deliveries WHERE id = ?`, d.ID.String())
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: ack message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// RetryMessage moves visible_at to now+delay and records d.LastError.
func (s *Store) RetryMessage(ctx context.Context, d *queue.Delivery, delay time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flowsync_deliveries SET visible_at = ?, last_error = ? WHERE id = ?`,
		toNanos(now().Add(delay)), d.LastError, d.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: retry message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// ExtendLease moves visible_at of a leased delivery to now+visibility.
func (s *Store) ExtendLease(ctx context.Context, d *queue.Delivery, visibility time.Duration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flowsync_deliveries SET visible_at = ? WHERE id = ?`,
		toNanos(now().Add(visibility)), d.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: extend lease: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// CountMessages counts deliveries in q.
func (s *Store) CountMessages(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM flowsync_deliveries WHERE queue = ?`, q); err != nil {
		return 0, fmt.Errorf("flowsync/sqlite: count messages: %w", err)
	}
	return n, nil
}
