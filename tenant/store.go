package tenant

import "context"

// Page is one slice of a full tenant scan.
type Page struct {
	Tenants []*Tenant

	// Next is the cursor for the following page. Empty when the scan is
	// complete.
	Next string
}

// Store defines the persistence contract for tenant records.
type Store interface {
	// CreateTenant persists a new tenant and assigns its ETag. Returns
	// flowsync.ErrDuplicateTenant if the TenantID already exists.
	CreateTenant(ctx context.Context, t *Tenant) error

	// GetTenant retrieves a tenant by TenantID.
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)

	// ListTenants returns up to limit tenants ordered by TenantID, starting
	// after cursor. An empty cursor starts from the beginning.
	ListTenants(ctx context.Context, cursor string, limit int) (*Page, error)

	// ReplaceTenant overwrites the tenant only if its stored ETag equals
	// t.ETag. On success t.ETag and t.UpdatedAt are refreshed. On mismatch
	// it returns a *ConflictError.
	ReplaceTenant(ctx context.Context, t *Tenant) error

	// DeleteTenant removes a tenant by TenantID.
	DeleteTenant(ctx context.Context, tenantID string) error
}
