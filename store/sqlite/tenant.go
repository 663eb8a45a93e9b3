package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/tenant"
)

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

	m, err := toTenantModel(next)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: create tenant: %w", err)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO flowsync_tenants (tenant_id, id, name, timezone, flows, etag, created_at, updated_at)
		VALUES (:tenant_id, :id, :name, :timezone, :flows, :etag, :created_at, :updated_at)`, m)
	if err != nil {
		if isDuplicateKey(err) {
			return flowsync.ErrDuplicateTenant
		}
		return fmt.Errorf("flowsync/sqlite: create tenant: %w", err)
	}

	t.ID, t.CreatedAt, t.UpdatedAt, t.ETag = next.ID, next.CreatedAt, next.UpdatedAt, next.ETag
	return nil
}

// GetTenant retrieves a tenant by TenantID.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	var m tenantModel
	err := s.db.GetContext(ctx, &m, `SELECT * FROM flowsync_tenants WHERE tenant_id = ?`, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, flowsync.ErrTenantNotFound
		}
		return nil, fmt.Errorf("flowsync/sqlite: get tenant: %w", err)
	}
	t, err := fromTenantModel(&m)
	if err != nil {
		return nil, fmt.Errorf("flowsync/sqlite: get tenant: %w", err)
	}
	return t, nil
}

// ListTenants returns up to limit tenants with tenant_id after cursor.
func (s *Store) ListTenants(ctx context.Context, cursor string, limit int) (*tenant.Page, error) {
	query := `SELECT * FROM flowsync_tenants WHERE tenant_id > ? ORDER BY tenant_id`
	args := []any{cursor}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit+1)
	}

	var models []tenantModel
	if err := s.db.SelectContext(ctx, &models, query, args...); err != nil {
		return nil, fmt.Errorf("flowsync/sqlite: list tenants: %w", err)
	}

	tenants := make([]*tenant.Tenant, 0, len(models))
	for i := range models {
		t, err := fromTenantModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("flowsync/sqlite: list tenants: %w", err)
		}
		tenants = append(tenants, t)
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

	m, err := toTenantModel(next)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: replace tenant: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE flowsync_tenants
		SET id = ?, name = ?, timezone = ?, flows = ?, etag = ?, updated_at = ?
		WHERE tenant_id = ? AND etag = ?`,
		m.ID, m.Name, m.Timezone, m.Flows, m.ETag, m.UpdatedAt, t.TenantID, t.ETag,
	)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: replace tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: replace tenant: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM flowsync_tenants WHERE tenant_id = ?)`, t.TenantID); err != nil {
			return fmt.Errorf("flowsync/sqlite: replace tenant: %w", err)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM flowsync_tenants WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return fmt.Errorf("flowsync/sqlite: delete tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return flowsync.ErrTenantNotFound
	}
	return nil
}
