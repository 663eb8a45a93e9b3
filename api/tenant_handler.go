package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/flowsync/tenant"
)

// TenantListResponse is one page of tenants.
type TenantListResponse struct {
	Tenants []*tenant.Tenant `json:"tenants"`
	Next    string           `json:"next,omitempty"`
}

func (a *API) listTenants(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	page, err := a.eng.Store().ListTenants(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	resp := TenantListResponse{Tenants: page.Tenants, Next: page.Next}
	if resp.Tenants == nil {
		resp.Tenants = []*tenant.Tenant{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) getTenant(w http.ResponseWriter, r *http.Request) {
	t, err := a.eng.Store().GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("ETag", quoteETag(t.ETag))
	writeJSON(w, http.StatusOK, t)
}

// putTenant creates the tenant when no ETag is supplied, otherwise it
// replaces it conditionally. The ETag comes from If-Match or the body.
func (a *API) putTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var t tenant.Tenant
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid tenant body: "+err.Error())
		return
	}
	if t.TenantID == "" {
		t.TenantID = tenantID
	}
	if t.TenantID != tenantID {
		writeError(w, http.StatusBadRequest, "bad_request", "tenantId does not match path")
		return
	}
	if match := r.Header.Get("If-Match"); match != "" {
		t.ETag = strings.Trim(match, `"`)
	}

	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", err.Error())
		return
	}
	for _, f := range t.Flows {
		if err := a.schedules.Validate(f.Cron); err != nil {
			a.writeStoreError(w, r, err)
			return
		}
	}

	status := http.StatusOK
	var err error
	if t.ETag == "" {
		status = http.StatusCreated
		err = a.eng.Store().CreateTenant(r.Context(), &t)
	} else {
		err = a.eng.Store().ReplaceTenant(r.Context(), &t)
	}
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	w.Header().Set("ETag", quoteETag(t.ETag))
	writeJSON(w, status, &t)
}

func quoteETag(etag string) string {
	return `"` + etag + `"`
}
