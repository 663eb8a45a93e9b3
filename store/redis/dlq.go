package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
)

// PushDLQ stores an entry and indexes it by FailedAt.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	data, err := encodeDLQ(entry)
	if err != nil {
		return fmt.Errorf("flowsync/redis: encode dlq entry: %w", err)
	}
	eID := entry.ID.String()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.dlq(eID), data, 0)
	pipe.ZAdd(ctx, s.keys.dlqIndex(), goredis.Z{Score: float64(entry.FailedAt.UnixNano()), Member: eID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flowsync/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries newest first. Tenant filtering happens client
// side, so filtered pages read the whole index.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	start, stop := int64(0), int64(-1)
	if opts.TenantID == "" {
		start = int64(opts.Offset)
		if opts.Limit > 0 {
			stop = start + int64(opts.Limit) - 1
		}
	}

	ids, err := s.client.ZRevRange(ctx, s.keys.dlqIndex(), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		e, err := s.getDLQ(ctx, eID)
		if err != nil {
			continue
		}
		if opts.TenantID != "" && e.TenantID != opts.TenantID {
			continue
		}
		entries = append(entries, e)
	}

	if opts.TenantID != "" {
		if opts.Offset > 0 {
			if opts.Offset >= len(entries) {
				return nil, nil
			}
			entries = entries[opts.Offset:]
		}
		if opts.Limit > 0 && len(entries) > opts.Limit {
			entries = entries[:opts.Limit]
		}
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	return s.getDLQ(ctx, entryID.String())
}

func (s *Store) getDLQ(ctx context.Context, eID string) (*dlq.Entry, error) {
	data, err := s.client.Get(ctx, s.keys.dlq(eID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, flowsync.ErrDLQNotFound
		}
		return nil, fmt.Errorf("flowsync/redis: get dlq: %w", err)
	}
	return decodeDLQ(data)
}

// ReplayDLQ stamps ReplayedAt on an entry.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID, at time.Time) error {
	e, err := s.GetDLQ(ctx, entryID)
	if err != nil {
		return err
	}
	at = at.UTC()
	e.ReplayedAt = &at

	data, err := encodeDLQ(e)
	if err != nil {
		return fmt.Errorf("flowsync/redis: encode dlq entry: %w", err)
	}
	if err := s.client.Set(ctx, s.keys.dlq(entryID.String()), data, 0).Err(); err != nil {
		return fmt.Errorf("flowsync/redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	maxScore := "(" + strconv.FormatInt(before.UnixNano(), 10)
	ids, err := s.client.ZRangeByScore(ctx, s.keys.dlqIndex(), &goredis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return 0, fmt.Errorf("flowsync/redis: purge dlq: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, eID := range ids {
		keys[i] = s.keys.dlq(eID)
		members[i] = eID
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	removed := pipe.ZRem(ctx, s.keys.dlqIndex(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("flowsync/redis: purge dlq: %w", err)
	}
	return removed.Val(), nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.keys.dlqIndex()).Result()
	if err != nil {
		return 0, fmt.Errorf("flowsync/redis: count dlq: %w", err)
	}
	return n, nil
}
