package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/tenant"
)

const tenantColumns = `id, tenant_id, name, timezone, flows, etag, created_at, updated_at`

// CreateTenant inserts a new tenant row.
func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	next := t.Clone()
	if next.ID == "" {
		next.ID = next.TenantID
	}
	ts := now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = ts
	}
	next.UpdatedAt = ts
	next.ETag = tenant.NewETag()

	flows, err := encodeFlows(next.Flows)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO flowsync_tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		next.ID, next.TenantID, next.Name, next.Timezone, flows, next.ETag, next.CreatedAt, next.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return flowsync.ErrDuplicateTenant
		}
		return fmt.Errorf("flowsync/postgres: create tenant: %w", err)
	}

	t.ID, t.CreatedAt, t.UpdatedAt, t.ETag = next.ID, next.CreatedAt, next.UpdatedAt, next.ETag
	return nil
}

// GetTenant retrieves a tenant by TenantID.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM flowsync_tenants WHERE tenant_id = $1`, tenantID)
	t, err := scanTenant(row)
	if err != nil {
		if isNoRows(err) {
			return nil, flowsync.ErrTenantNotFound
		}
		return nil, fmt.Errorf("flowsync/postgres: get tenant: %w", err)
	}
	return t, nil
}

// ListTenants returns up to limit tenants with tenant_id after cursor.
func (s *Store) ListTenants(ctx context.Context, cursor string, limit int) (*tenant.Page, error) {
	query := `SELECT ` + tenantColumns + ` FROM flowsync_tenants WHERE tenant_id > $1 ORDER BY tenant_id`
	args := []any{cursor}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit+1)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("flowsync/postgres: list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, scanErr := scanTenant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("flowsync/postgres: list tenants scan: %w", scanErr)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flowsync/postgres: list tenants: %w", err)
	}

	page := &tenant.Page{Tenants: tenants}
	if limit > 0 && len(tenants) > limit {
		page.Tenants = tenants[:limit]
		page.Next = tenants[limit-1].TenantID
	}
	return page, nil
}

// ReplaceTenant updates the row only where etag still equals t.ETag.
func (s *Store) ReplaceTenant(ctx context.Context, t *tenant.Tenant) error {
	next := t.Clone()
	if next.ID == "" {
		next.ID = next.TenantID
	}
	next.UpdatedAt = now()
	next.ETag = tenant.NewETag()

	flows, err := encodeFlows(next.Flows)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE flowsync_tenants
		SET id = $3, name = $4, timezone = $5, flows = $6, etag = $7, updated_at = $8
		WHERE tenant_id = $1 AND etag = $2`,
		t.TenantID, t.ETag, next.ID, next.Name, next.Timezone, flows, next.ETag, next.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: replace tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM flowsync_tenants WHERE tenant_id = $1)`, t.TenantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("flowsync/postgres: replace tenant: %w", err)
		}
		if !exists {
			return flowsync.ErrTenantNotFound
		}
		return &tenant.ConflictError{TenantID: t.TenantID, ETag: t.ETag}
	}

	t.ID, t.UpdatedAt, t.ETag = next.ID, next.UpdatedAt, next.ETag
	return nil
}

// DeleteTenant removes a tenant by TenantID.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM flowsync_tenants WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("flowsync/postgres: delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return flowsync.ErrTenantNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var (
		t     tenant.Tenant
		flows []byte
	)
	if err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Timezone, &flows, &t.ETag, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if t.Flows, err = decodeFlows(flows); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
