package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/tenant"
)

// TenantPage is one page of tenants.
type TenantPage struct {
	Tenants []*tenant.Tenant `json:"tenants"`
	Next    string           `json:"next,omitempty"`
}

// ListTenants returns up to limit tenants after cursor.
func (c *Client) ListTenants(ctx context.Context, cursor string, limit int) (*TenantPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page TenantPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/tenants", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTenant fetches one tenant.
func (c *Client) GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/v1/tenants/" + url.PathEscape(tenantID),
		notFound: flowsync.ErrTenantNotFound,
	}, &t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PutTenant creates t when t.ETag is empty, otherwise replaces it if the
// stored ETag still matches. On success t is updated with the stored
// record, including its new ETag.
func (c *Client) PutTenant(ctx context.Context, t *tenant.Tenant) error {
	h := http.Header{}
	if t.ETag != "" {
		h.Set("If-Match", `"`+t.ETag+`"`)
	}
	err := c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/v1/tenants/" + url.PathEscape(t.TenantID),
		header:   h,
		body:     t,
		notFound: flowsync.ErrTenantNotFound,
	}, t)
	return err
}
