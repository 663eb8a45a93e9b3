package redis

import (
	"strconv"
	"testing"
	"time"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/tenant"
)

func TestTenantRecord_PreservesWatermarks(t *testing.T) {
	next := time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC)
	in := &tenant.Tenant{
		ID:       "acme",
		TenantID: "acme",
		ETag:     "etag-1",
		Flows: []tenant.FlowConfig{
			{Name: "heartbeat", Enabled: true, Cron: "0 0 * * * *", NextRunUTC: &next},
			{Name: "probe", Enabled: false, Cron: "0 */5 * * * *"},
		},
	}

	data, err := encodeTenant(in)
	if err != nil {
		t.Fatalf("encodeTenant: %v", err)
	}
	out, err := decodeTenant(data)
	if err != nil {
		t.Fatalf("decodeTenant: %v", err)
	}

	if out.ETag != "etag-1" || len(out.Flows) != 2 {
		t.Fatalf("decoded = %+v", out)
	}
	if out.Flows[0].NextRunUTC == nil || !out.Flows[0].NextRunUTC.Equal(next) {
		t.Errorf("watermark = %v, want %v", out.Flows[0].NextRunUTC, next)
	}
	if out.Flows[1].NextRunUTC != nil {
		t.Errorf("unscheduled flow gained a watermark: %v", out.Flows[1].NextRunUTC)
	}
}

func TestDLQRecord_DecodesIDs(t *testing.T) {
	in := &dlq.Entry{
		ID:         id.NewDLQID(),
		DeliveryID: id.NewDeliveryID(),
		Queue:      "flow-jobs",
		Payload:    "e30=",
		Attempts:   5,
		FailedAt:   time.Now().UTC(),
	}
	data, err := encodeDLQ(in)
	if err != nil {
		t.Fatalf("encodeDLQ: %v", err)
	}
	out, err := decodeDLQ(data)
	if err != nil {
		t.Fatalf("decodeDLQ: %v", err)
	}
	if out.ID.String() != in.ID.String() || out.DeliveryID.String() != in.DeliveryID.String() {
		t.Errorf("ids = %s/%s, want %s/%s", out.ID, out.DeliveryID, in.ID, in.DeliveryID)
	}
	if out.ReplayedAt != nil {
		t.Error("ReplayedAt should stay nil")
	}
}

func TestDeliveryHash_VisibleAtFromScore(t *testing.T) {
	d := &queue.Delivery{
		ID:         id.NewDeliveryID(),
		Queue:      "flow-jobs",
		Payload:    "payload",
		Attempt:    2,
		EnqueuedAt: time.UnixMilli(1_700_000_000_000).UTC(),
	}
	vals := make(map[string]string)
	for k, v := range deliveryToMap(d) {
		switch v := v.(type) {
		case string:
			vals[k] = v
		case int:
			vals[k] = strconv.Itoa(v)
		case int64:
			vals[k] = strconv.FormatInt(v, 10)
		}
	}

	out, err := mapToDelivery(vals, 1_700_000_060_000)
	if err != nil {
		t.Fatalf("mapToDelivery: %v", err)
	}
	if out.Attempt != 2 || out.Payload != "payload" {
		t.Errorf("decoded = %+v", out)
	}
	if want := time.UnixMilli(1_700_000_060_000).UTC(); !out.VisibleAt.Equal(want) {
		t.Errorf("VisibleAt = %v, want %v", out.VisibleAt, want)
	}
	if !out.EnqueuedAt.Equal(d.EnqueuedAt) {
		t.Errorf("EnqueuedAt = %v, want %v", out.EnqueuedAt, d.EnqueuedAt)
	}
}

func TestKeyspace(t *testing.T) {
	k := keyspace("app:")
	if got := k.tenant("acme"); got != "app:tenant:acme" {
		t.Errorf("tenant key = %q", got)
	}
	if got := k.delivery("dlv_1"); got != k.deliveryPrefix()+"dlv_1" {
		t.Errorf("delivery key = %q", got)
	}
}
