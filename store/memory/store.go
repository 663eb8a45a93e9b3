package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/secret"
	"github.com/xraph/flowsync/tenant"
)

// Ensure Store implements every subsystem store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ tenant.Store = (*Store)(nil)
	_ queue.Store  = (*Store)(nil)
	_ dlq.Store    = (*Store)(nil)
	_ secret.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	tenants    map[string]*tenant.Tenant
	deliveries map[string]*delivery
	dlqs       map[string]*dlq.Entry
	secrets    map[string]string

	// seq orders deliveries that become visible at the same instant.
	seq    uint64
	closed bool
}

type delivery struct {
	d   queue.Delivery
	seq uint64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		tenants:    make(map[string]*tenant.Tenant),
		deliveries: make(map[string]*delivery),
		dlqs:       make(map[string]*dlq.Entry),
		secrets:    make(map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping fails only after Close.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return flowsync.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Data is kept.
func (m *Store) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────
// Tenant Store
// ──────────────────────────────────────────────────

// CreateTenant persists a new tenant and assigns its ETag.
func (m *Store) CreateTenant(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[t.TenantID]; exists {
		return flowsync.ErrDuplicateTenant
	}
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = t.TenantID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	t.ETag = tenant.NewETag()
	m.tenants[t.TenantID] = t.Clone()
	return nil
}

// GetTenant retrieves a tenant by TenantID.
func (m *Store) GetTenant(_ context.Context, tenantID string) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, flowsync.ErrTenantNotFound
	}
	return t.Clone(), nil
}

// ListTenants returns up to limit tenants ordered by TenantID after cursor.
func (m *Store) ListTenants(_ context.Context, cursor string, limit int) (*tenant.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.tenants))
	for tid := range m.tenants {
		if tid > cursor {
			ids = append(ids, tid)
		}
	}
	sort.Strings(ids)

	page := &tenant.Page{}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
		page.Next = ids[len(ids)-1]
	}
	page.Tenants = make([]*tenant.Tenant, len(ids))
	for i, tid := range ids {
		page.Tenants[i] = m.tenants[tid].Clone()
	}
	return page, nil
}

// ReplaceTenant overwrites the tenant if t.ETag matches the stored ETag.
func (m *Store) ReplaceTenant(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.tenants[t.TenantID]
	if !ok {
		return flowsync.ErrTenantNotFound
	}
	if cur.ETag != t.ETag {
		return &tenant.ConflictError{TenantID: t.TenantID, ETag: t.ETag}
	}

	t.ID = cur.ID
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = time.Now().UTC()
	t.ETag = tenant.NewETag()
	m.tenants[t.TenantID] = t.Clone()
	return nil
}

// DeleteTenant removes a tenant by TenantID.
func (m *Store) DeleteTenant(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return flowsync.ErrTenantNotFound
	}
	delete(m.tenants, tenantID)
	return nil
}

// ──────────────────────────────────────────────────
// Queue Store
// ──────────────────────────────────────────────────

// PushMessage appends payload to queue.
func (m *Store) PushMessage(_ context.Context, q, payload string) (*queue.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	m.seq++
	d := &delivery{
		d: queue.Delivery{
			ID:         id.NewDeliveryID(),
			Queue:      q,
			Payload:    payload,
			EnqueuedAt: now,
			VisibleAt:  now,
		},
		seq: m.seq,
	}
	m.deliveries[d.d.ID.String()] = d
	cp := d.d
	return &cp, nil
}

// ClaimMessages leases up to limit visible deliveries from q.
func (m *Store) ClaimMessages(_ context.Context, q string, limit int, visibility time.Duration) ([]*queue.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	candidates := make([]*delivery, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		if d.d.Queue != q || d.d.VisibleAt.After(now) {
			continue
		}
		candidates = append(candidates, d)
	}

	// Sort: VisibleAt ASC, then push order.
	sort.Slice(candidates, func(i, k int) bool {
		if !candidates[i].d.VisibleAt.Equal(candidates[k].d.VisibleAt) {
			return candidates[i].d.VisibleAt.Before(candidates[k].d.VisibleAt)
		}
		return candidates[i].seq < candidates[k].seq
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*queue.Delivery, len(candidates))
	for i, d := range candidates {
		d.d.Attempt++
		d.d.VisibleAt = now.Add(visibility)
		// Return a copy so callers can mutate without racing with the store.
		cp := d.d
		result[i] = &cp
	}
	return result, nil
}

// AckMessage removes a delivery.
func (m *Store) AckMessage(_ context.Context, d *queue.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := d.ID.String()
	if _, ok := m.deliveries[key]; !ok {
		return flowsync.ErrDeliveryNotFound
	}
	delete(m.deliveries, key)
	return nil
}

// RetryMessage makes a delivery visible again after delay.
func (m *Store) RetryMessage(_ context.Context, d *queue.Delivery, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.deliveries[d.ID.String()]
	if !ok {
		return flowsync.ErrDeliveryNotFound
	}
	cur.d.VisibleAt = time.Now().UTC().Add(delay)
	cur.d.LastError = d.LastError
	return nil
}

// ExtendLease pushes a leased delivery's visibility out to now+visibility.
func (m *Store) ExtendLease(_ context.Context, d *queue.Delivery, visibility time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.deliveries[d.ID.String()]
	if !ok {
		return flowsync.ErrDeliveryNotFound
	}
	cur.d.VisibleAt = time.Now().UTC().Add(visibility)
	return nil
}

// CountMessages returns the number of deliveries in q.
func (m *Store) CountMessages(_ context.Context, q string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, d := range m.deliveries {
		if d.d.Queue == q {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// DLQ Store
// ──────────────────────────────────────────────────

// PushDLQ adds an entry to the dead letter queue.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.dlqs[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns entries matching opts, newest first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.dlqs))
	for _, e := range m.dlqs {
		if opts.TenantID != "" && e.TenantID != opts.TenantID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		if !result[i].FailedAt.Equal(result[k].FailedAt) {
			return result[i].FailedAt.After(result[k].FailedAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// GetDLQ retrieves an entry by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return nil, flowsync.ErrDLQNotFound
	}
	cp := *e
	return &cp, nil
}

// ReplayDLQ stamps ReplayedAt on an entry.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.DLQID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dlqs[entryID.String()]
	if !ok {
		return flowsync.ErrDLQNotFound
	}
	at = at.UTC()
	e.ReplayedAt = &at
	return nil
}

// PurgeDLQ removes entries with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.dlqs {
		if e.FailedAt.Before(before) {
			delete(m.dlqs, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of entries.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.dlqs)), nil
}

// ──────────────────────────────────────────────────
// Secret Store
// ──────────────────────────────────────────────────

// GetSecret returns the value stored under name.
func (m *Store) GetSecret(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.secrets[name]
	if !ok {
		return "", &secret.NotFoundError{Name: name}
	}
	return v, nil
}

// SetSecret creates or overwrites a secret.
func (m *Store) SetSecret(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.secrets[name] = value
	return nil
}

// DeleteSecret removes a secret.
func (m *Store) DeleteSecret(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.secrets, name)
	return nil
}
