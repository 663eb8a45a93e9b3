package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/flowsync"
)

// Store is a flat name/value secret backend.
type Store interface {
	// GetSecret returns the value stored under name, or a *NotFoundError.
	GetSecret(ctx context.Context, name string) (string, error)

	// SetSecret creates or overwrites the value stored under name.
	SetSecret(ctx context.Context, name, value string) error

	// DeleteSecret removes name. Missing names are not an error.
	DeleteSecret(ctx context.Context, name string) error
}

// Accessor reads credentials for exactly one tenant.
type Accessor interface {
	// TenantID returns the tenant the accessor is bound to.
	TenantID() string

	// Get returns the credential for (system, key). Missing values return
	// an error matching flowsync.ErrSecretNotFound.
	Get(ctx context.Context, system, key string) (string, error)
}

// Provider hands out tenant-scoped accessors.
type Provider interface {
	ForTenant(ctx context.Context, tenantID string) (Accessor, error)
}

const separator = "--"

// Name builds the flat secret name for a tenant credential.
func Name(tenantID, system, key string) string {
	return "tenants" + separator + tenantID + separator + system + separator + key
}

// NotFoundError reports a missing secret.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("flowsync: secret %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return flowsync.ErrSecretNotFound }

// IsNotFound reports whether err is a missing-secret error.
func IsNotFound(err error) bool {
	return errors.Is(err, flowsync.ErrSecretNotFound)
}

// StoreProvider implements Provider over any Store.
type StoreProvider struct {
	store Store
}

// NewStoreProvider returns a Provider backed by store.
func NewStoreProvider(store Store) *StoreProvider {
	return &StoreProvider{store: store}
}

// ForTenant returns an accessor bound to tenantID. Tenant IDs containing
// the name separator are rejected so one tenant cannot address another
// tenant's namespace.
func (p *StoreProvider) ForTenant(_ context.Context, tenantID string) (Accessor, error) {
	if p.store == nil {
		return nil, flowsync.ErrNoStore
	}
	if err := checkSegment("tenant id", tenantID); err != nil {
		return nil, err
	}
	return &accessor{store: p.store, tenantID: tenantID}, nil
}

type accessor struct {
	store    Store
	tenantID string
}

func (a *accessor) TenantID() string { return a.tenantID }

func (a *accessor) Get(ctx context.Context, system, key string) (string, error) {
	if err := checkSegment("system", system); err != nil {
		return "", err
	}
	if err := checkSegment("key", key); err != nil {
		return "", err
	}
	return a.store.GetSecret(ctx, Name(a.tenantID, system, key))
}

func checkSegment(what, s string) error {
	if s == "" {
		return fmt.Errorf("secret: empty %s", what)
	}
	if strings.Contains(s, separator) {
		return fmt.Errorf("secret: %s %q contains %q", what, s, separator)
	}
	return nil
}
