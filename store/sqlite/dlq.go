package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
)

// PushDLQ inserts a dead-lettered entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO flowsync_dlq (id, delivery_id, queue, payload, tenant_id, flow_name, error, attempts, failed_at, replayed_at)
		VALUES (:id, :delivery_id, :queue, :payload, :tenant_id, :flow_name, :error, :attempts, :failed_at, :replayed_at)`,
		toDLQModel(entry))
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `SELECT * FROM flowsync_dlq`
	var args []any
	if opts.TenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, opts.TenantID)
	}
	query += ` ORDER BY failed_at DESC, id DESC`

	switch {
	case opts.Limit > 0:
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	case opts.Offset > 0:
		// SQLite needs a LIMIT before OFFSET.
		query += ` LIMIT -1`
	}
	if opts.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, opts.Offset)
	}

	var models []dlqEntryModel
	if err := s.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("flowsync/sqlite: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(models))
	for i := range models {
		e, err := fromDLQModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("flowsync/sqlite: list dlq convert: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	var m dlqEntryModel
	if err := s.db.GetContext(ctx, &m, `SELECT * FROM flowsync_dlq WHERE id = ?`, entryID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flowsync.ErrDLQNotFound
		}
		return nil, fmt.Errorf("flowsync/sqlite: get dlq: %w", err)
	}
	return fromDLQModel(&m)
}

// ReplayDLQ stamps replayed_at on an entry.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE flowsync_dlq SET replayed_at = ? WHERE id = ?`, toNanos(at), entryID.String())
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: replay dlq: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowsync.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flowsync_dlq WHERE failed_at < ?`, toNanos(before))
	if err != nil {
		return 0, fmt.Errorf("flowsync/sqlite: purge dlq: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("flowsync/sqlite: purge dlq: %w", err)
	}
	return n, nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM flowsync_dlq`); err != nil {
		return 0, fmt.Errorf("flowsync/sqlite: count dlq: %w", err)
	}
	return n, nil
}
