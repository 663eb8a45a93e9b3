package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
)

// PushDLQ inserts a dead-lettered entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO flowsync_dlq (`+dlqColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		fromDLQEntry(entry).args()...,
	)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	query := `SELECT ` + dlqColumns + ` FROM flowsync_dlq`
	args := []any{}
	argIdx := 1

	if opts.TenantID != "" {
		query += fmt.Sprintf(" WHERE tenant_id = $%d", argIdx)
		args = append(args, opts.TenantID)
		argIdx++
	}

	query += " ORDER BY failed_at DESC, id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("flowsync/postgres: list dlq: %w", err)
	}
	defer rows.Close()

	var entries []*dlq.Entry
	for rows.Next() {
		var r dlqRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("flowsync/postgres: list dlq scan: %w", err)
		}
		e, convErr := r.toEntry()
		if convErr != nil {
			return nil, fmt.Errorf("flowsync/postgres: list dlq convert: %w", convErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flowsync/postgres: list dlq: %w", err)
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	var r dlqRow
	err := s.pool.QueryRow(ctx,
		`SELECT `+dlqColumns+` FROM flowsync_dlq WHERE id = $1`, entryID.String(),
	).Scan(r.dest()...)
	if err != nil {
		if isNoRows(err) {
			return nil, flowsync.ErrDLQNotFound
		}
		return nil, fmt.Errorf("flowsync/postgres: get dlq: %w", err)
	}
	return r.toEntry()
}

// ReplayDLQ stamps replayed_at on an entry.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE flowsync_dlq SET replayed_at = $2 WHERE id = $1`, entryID.String(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: replay dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowsync.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM flowsync_dlq WHERE failed_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("flowsync/postgres: purge dlq: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flowsync_dlq`).Scan(&n); err != nil {
		return 0, fmt.Errorf("flowsync/postgres: count dlq: %w", err)
	}
	return n, nil
}
