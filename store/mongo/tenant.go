package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/tenant"
)

// CreateTenant inserts a new tenant document.
func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	t2 := t.Clone()
	if t2.ID == "" {
		t2.ID = t2.TenantID
	}
	ts := now()
	if t2.CreatedAt.IsZero() {
		t2.CreatedAt = ts
	}
	t2.UpdatedAt = ts
	t2.ETag = tenant.NewETag()

	if _, err := s.db.Collection(colTenants).InsertOne(ctx, t2); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return flowsync.ErrDuplicateTenant
		}
		return fmt.Errorf("flowsync/mongo: create tenant: %w", err)
	}
	t.ID, t.CreatedAt, t.UpdatedAt, t.ETag = t2.ID, t2.CreatedAt, t2.UpdatedAt, t2.ETag
	return nil
}

// GetTenant retrieves a tenant by TenantID.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.db.Collection(colTenants).FindOne(ctx, bson.M{"tenant_id": tenantID}).Decode(&t)
	if err != nil {
		if isNoDocuments(err) {
			return nil, flowsync.ErrTenantNotFound
		}
		return nil, fmt.Errorf("flowsync/mongo: get tenant: %w", err)
	}
	return &t, nil
}

// ListTenants returns up to limit tenants with tenant_id after cursor.
func (s *Store) ListTenants(ctx context.Context, cursor string, limit int) (*tenant.Page, error) {
	filter := bson.M{}
	if cursor != "" {
		filter["tenant_id"] = bson.M{"$gt": cursor}
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "tenant_id", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit) + 1)
	}

	cur, err := s.db.Collection(colTenants).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("flowsync/mongo: list tenants: %w", err)
	}
	defer cur.Close(ctx)

	var docs []*tenant.Tenant
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("flowsync/mongo: list tenants decode: %w", err)
	}

	page := &tenant.Page{Tenants: docs}
	if limit > 0 && len(docs) > limit {
		page.Tenants = docs[:limit]
		page.Next = docs[limit-1].TenantID
	}
	return page, nil
}

// ReplaceTenant replaces the document only where _etag still equals
// t.ETag.
func (s *Store) ReplaceTenant(ctx context.Context, t *tenant.Tenant) error {
	col := s.db.Collection(colTenants)

	next := t.Clone()
	if next.ID == "" {
		next.ID = next.TenantID
	}
	next.UpdatedAt = now()
	next.ETag = tenant.NewETag()

	res, err := col.ReplaceOne(ctx, bson.M{"tenant_id": t.TenantID, "_etag": t.ETag}, next)
	if err != nil {
		return fmt.Errorf("flowsync/mongo: replace tenant: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := col.CountDocuments(ctx, bson.M{"tenant_id": t.TenantID})
		if err != nil {
			return fmt.Errorf("flowsync/mongo: replace tenant: %w", err)
		}
		if n == 0 {
			return flowsync.ErrTenantNotFound
		}
		return &tenant.ConflictError{TenantID: t.TenantID, ETag: t.ETag}
	}

	t.ID, t.UpdatedAt, t.ETag = next.ID, next.UpdatedAt, next.ETag
	return nil
}

// DeleteTenant removes a tenant by TenantID.
func (s *Store) DeleteTenant(ctx context.Context, tenantID string) error {
	res, err := s.db.Collection(colTenants).DeleteOne(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("flowsync/mongo: delete tenant: %w", err)
	}
	if res.DeletedCount == 0 {
		return flowsync.ErrTenantNotFound
	}
	return nil
}
