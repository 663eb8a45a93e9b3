package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
)

// claimScript leases up to ARGV[3] members of KEYS[1] whose score is at or
// below ARGV[1], rescoring them to ARGV[2] and bumping the attempt field of
// the delivery hash at ARGV[4]..member.
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
for _, member in ipairs(ids) do
  redis.call('ZADD', KEYS[1], 'XX', ARGV[2], member)
  redis.call('HINCRBY', ARGV[4] .. member, 'attempt', 1)
end
return ids
`)

// PushMessage stores the delivery hash and adds it to the queue, visible
// immediately.
func (s *Store) PushMessage(ctx context.Context, q, payload string) (*queue.Delivery, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	d := &queue.Delivery{
		ID:         id.NewDeliveryID(),
		Queue:      q,
		Payload:    payload,
		EnqueuedAt: now,
		VisibleAt:  now,
	}
	dID := d.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.delivery(dID), deliveryToMap(d))
	pipe.ZAdd(ctx, s.keys.queue(q), goredis.Z{Score: float64(now.UnixMilli()), Member: dID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("flowsync/redis: push message: %w", err)
	}
	return d, nil
}

// ClaimMessages leases visible deliveries via claimScript.
func (s *Store) ClaimMessages(ctx context.Context, q string, limit int, visibility time.Duration) ([]*queue.Delivery, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	until := now.Add(visibility).UnixMilli()

	ids, err := claimScript.Run(ctx, s.client,
		[]string{s.keys.queue(q)},
		now.UnixMilli(), until, limit, s.keys.deliveryPrefix(),
	).StringSlice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("flowsync/redis: claim messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, dID := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.delivery(dID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("flowsync/redis: claim messages fetch: %w", err)
	}

	out := make([]*queue.Delivery, 0, len(ids))
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			// Acked between the claim and the fetch.
			continue
		}
		d, err := mapToDelivery(vals, float64(until))
		if err != nil {
			s.logger.Warn("skipping undecodable delivery",
				slog.String("delivery_id", ids[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// AckMessage removes a delivery from its queue and deletes its hash.
func (s *Store) AckMessage(ctx context.Context, d *queue.Delivery) error {
	dID := d.ID.String()
	pipe := s.client.TxPipeline()
	rem := pipe.ZRem(ctx, s.keys.queue(d.Queue), dID)
	pipe.Del(ctx, s.keys.delivery(dID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flowsync/redis: ack message: %w", err)
	}
	if rem.Val() == 0 {
		return flowsync.ErrDeliveryNotFound
	}
	return nil
}

// RetryMessage rescores a delivery to now+delay and records d.LastError.
func (s *Store) RetryMessage(ctx context.Context, d *queue.Delivery, delay time.Duration) error {
	dID := d.ID.String()
	qk := s.keys.queue(d.Queue)

	if err := s.client.ZScore(ctx, qk, dID).Err(); err != nil {
		if errors.Is(err, goredis.Nil) {
			return flowsync.ErrDeliveryNotFound
		}
		return fmt.Errorf("flowsync/redis: retry message: %w", err)
	}

	visible := time.Now().UTC().Add(delay).UnixMilli()
	pipe := s.client.TxPipeline()
	pipe.ZAddXX(ctx, qk, goredis.Z{Score: float64(visible), Member: dID})
	pipe.HSet(ctx, s.keys.delivery(dID), "last_error", d.LastError)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flowsync/redis: retry message: %w", err)
	}
	return nil
}

// ExtendLease rescores a leased delivery to now+visibility. ZADD XX CH
// reports zero changes when the member is gone.
func (s *Store) ExtendLease(ctx context.Context, d *queue.Delivery, visibility time.Duration) error {
	visible := time.Now().UTC().Add(visibility).UnixMilli()
	n, err := s.client.ZAddArgs(ctx, s.keys.queue(d.Queue), goredis.ZAddArgs{
		XX:      true,
		Ch:      true,
		Members: []goredis.Z{{Score: float64(visible), Member: d.ID.String()}},
	}).Result()
	if err != nil {
		return fmt.Errorf("flowsync/redis: extend lease: %w", err)
	}
	if n == 0 {
		if err := s.client.ZScore(ctx, s.keys.queue(d.Queue), d.ID.String()).Err(); errors.Is(err, goredis.Nil) {
			return flowsync.ErrDeliveryNotFound
		}
	}
	return nil
}

// CountMessages returns the queue cardinality.
func (s *Store) CountMessages(ctx context.Context, q string) (int64, error) {
	n, err := s.client.ZCard(ctx, s.keys.queue(q)).Result()
	if err != nil {
		return 0, fmt.Errorf("flowsync/redis: count messages: %w", err)
	}
	return n, nil
}
