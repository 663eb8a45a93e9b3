package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/tenant"
)

// CreateTenant stores a new tenant with SETNX and indexes its ID.
func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	now := time.Now().UTC()
	rec := t.Clone()
	if rec.ID == "" {
		rec.ID = rec.TenantID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.ETag = tenant.NewETag()

	data, err := encodeTenant(rec)
	if err != nil {
		return fmt.Errorf("flowsync/redis: encode tenant: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.keys.tenant(rec.TenantID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("flowsync/redis: create tenant: %w", err)
	}
	if !ok {
		return flowsync.ErrDuplicateTenant
	}
	if err := s.client.ZAdd(ctx, s.keys.tenantIndex(), goredis.Z{Member: rec.TenantID}).Err(); err != nil {
		return fmt.Errorf("flowsync/redis: index tenant: %w", err)
	}

	t.ID, t.CreatedAt, t.UpdatedAt, t.ETag = rec.ID, rec.CreatedAt, rec.UpdatedAt, rec.ETag
	return nil
}

// GetTenant retrieves a tenant by TenantID.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	return s.getTenant(ctx, s.client, tenantID)
}

func (s *Store) getTenant(ctx context.Context, c goredis.Cmdable, tenantID string) (*tenant.Tenant, error) {
	data, err := c.Get(ctx, s.keys.tenant(tenantID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, flowsync.ErrTenantNotFound
		}
		return nil, fmt.Errorf("flowsync/redis: get tenant: %w", err)
	}
	return decodeTenant(data)
}

// ListTenants walks the lexicographic tenant index after cursor.
func (s *Store) ListTenants(ctx context.Context, cursor string, limit int) (*tenant.Page, error) {
	lower := "-"
	if cursor != "" {
		lower = "(" + cursor
	}
	by := &goredis.ZRangeBy{Min: lower, Max: "+"}
	if limit > 0 {
		// One extra member tells us whether another page exists.
		by.Count = int64(limit) + 1
	}

	ids, err := s.client.ZRangeByLex(ctx, s.keys.tenantIndex(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: list tenants: %w", err)
	}

	page := &tenant.Page{}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
		page.Next = ids[len(ids)-1]
	}
	if len(ids) == 0 {
		return page, nil
	}

	keys := make([]string, len(ids))
	for i, tid := range ids {
		keys[i] = s.keys.tenant(tid)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: list tenants mget: %w", err)
	}

	page.Tenants = make([]*tenant.Tenant, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Deleted between the index read and MGET.
			continue
		}
		t, err := decodeTenant([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable tenant record",
				slog.String("tenant_id", ids[i]),
				slog.String("error", err.Error()),
			)
			continue
		}
		page.Tenants = append(page.Tenants, t)
	}
	return page, nil
}

// ReplaceTenant writes t inside WATCH/MULTI so the write is dropped if
// another client touches the key after the ETag check.
func (s *Store) ReplaceTenant(ctx context.Context, t *tenant.Tenant) error {
	key := s.keys.tenant(t.TenantID)
	var written *tenant.Tenant

	txf := func(tx *goredis.Tx) error {
		cur, err := s.getTenant(ctx, tx, t.TenantID)
		if err != nil {
			return err
		}
		if cur.ETag != t.ETag {
			return &tenant.ConflictError{TenantID: t.TenantID, ETag: t.ETag}
		}

		next := t.Clone()
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		next.ETag = tenant.NewETag()
		data, err := encodeTenant(next)
		if err != nil {
			return fmt.Errorf("flowsync/redis: encode tenant: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		written = next
		return nil
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return &tenant.ConflictError{TenantID: t.TenantID, ETag: t.ETag}
	}
	if err != nil {
		return err
	}

	t.ID, t.CreatedAt, t.UpdatedAt, t.ETag = written.ID, written.CreatedAt, written.UpdatedAt, written.ETag
	return nil
}

// DeleteTenant removes a tenant and its index entry.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.keys.tenant(tenantID))
	pipe.ZRem(ctx, s.keys.tenantIndex(), tenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flowsync/redis: delete tenant: %w", err)
	}
	if del.Val() == 0 {
		return flowsync.ErrTenantNotFound
	}
	return nil
}
