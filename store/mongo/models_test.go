package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/tenant"
)

func TestTenantDocumentShape(t *testing.T) {
	next := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)
	in := &tenant.Tenant{
		ID:       "acme",
		TenantID: "acme",
		ETag:     "etag-1",
		Flows:    []tenant.FlowConfig{{Name: "heartbeat", Enabled: true, Cron: "0 0 * * * *", NextRunUTC: &next}},
	}

	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("bson.Marshal: %v", err)
	}
	doc := bson.Raw(raw)

	for _, key := range []string{"_id", "tenant_id", "_etag", "flows"} {
		if _, err := doc.LookupErr(key); err != nil {
			t.Errorf("document missing %q: %v", key, err)
		}
	}
	if got := doc.Lookup("_etag").StringValue(); got != "etag-1" {
		t.Errorf("_etag = %q", got)
	}

	var out tenant.Tenant
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("bson.Unmarshal: %v", err)
	}
	if out.Flows[0].NextRunUTC == nil || !out.Flows[0].NextRunUTC.Equal(next) {
		t.Errorf("watermark = %v, want %v", out.Flows[0].NextRunUTC, next)
	}
}

func TestDeliveryModel_Conversion(t *testing.T) {
	d := &queue.Delivery{
		ID:         id.NewDeliveryID(),
		Queue:      "flow-jobs",
		Payload:    "e30=",
		Attempt:    3,
		LastError:  "boom",
		EnqueuedAt: now(),
		VisibleAt:  now().Add(time.Minute),
	}
	out, err := fromDeliveryModel(toDeliveryModel(d))
	if err != nil {
		t.Fatalf("fromDeliveryModel: %v", err)
	}
	if out.ID.String() != d.ID.String() || out.Attempt != 3 || out.LastError != "boom" {
		t.Errorf("converted = %+v", out)
	}
}

func TestFromDeliveryModel_RejectsBadID(t *testing.T) {
	if _, err := fromDeliveryModel(&deliveryModel{ID: "nope"}); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestMigrationIndexes_TenantIDUnique(t *testing.T) {
	idx := migrationIndexes()[colTenants]
	if len(idx) != 1 {
		t.Fatalf("tenant indexes = %d, want 1", len(idx))
	}
	if idx[0].Options == nil {
		t.Fatal("tenant_id index must be unique")
	}
}
