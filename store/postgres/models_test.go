package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/tenant"
)

func TestFlowsColumnRoundTrip(t *testing.T) {
	next := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	in := []tenant.FlowConfig{
		{Name: "heartbeat", Enabled: true, Cron: "0 0 * * * *", NextRunUTC: &next},
		{Name: "probe", Enabled: false, Cron: "0 */5 * * * *"},
	}

	raw, err := encodeFlows(in)
	if err != nil {
		t.Fatalf("encodeFlows: %v", err)
	}
	if !strings.Contains(string(raw), `"flowName":"heartbeat"`) {
		t.Errorf("column JSON missing flowName: %s", raw)
	}

	out, err := decodeFlows(raw)
	if err != nil {
		t.Fatalf("decodeFlows: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d flows, want 2", len(out))
	}
	if out[0].NextRunUTC == nil || !out[0].NextRunUTC.Equal(next) {
		t.Errorf("watermark = %v, want %v", out[0].NextRunUTC, next)
	}
	if out[0].NextRunUTC.Location() != time.UTC {
		t.Errorf("watermark location = %v, want UTC", out[0].NextRunUTC.Location())
	}
	if out[1].NextRunUTC != nil {
		t.Errorf("unscheduled flow has watermark %v", out[1].NextRunUTC)
	}
}

func TestFlowsColumn_Empty(t *testing.T) {
	raw, err := encodeFlows(nil)
	if err != nil {
		t.Fatalf("encodeFlows: %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("nil flows encoded as %s, want []", raw)
	}

	out, err := decodeFlows(nil)
	if err != nil {
		t.Fatalf("decodeFlows: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("decodeFlows(nil) = %#v, want empty slice", out)
	}
}

func TestDecodeFlows_Invalid(t *testing.T) {
	if _, err := decodeFlows([]byte(`{"not":"a list"}`)); err == nil {
		t.Fatal("expected error for non-array flows column")
	}
}

func TestDLQRow_Conversion(t *testing.T) {
	replayed := now()
	e := &dlq.Entry{
		ID:         id.NewDLQID(),
		DeliveryID: id.NewDeliveryID(),
		Queue:      "flow-jobs",
		Payload:    "e30=",
		TenantID:   "acme",
		FlowName:   "heartbeat",
		Error:      "boom",
		Attempts:   5,
		FailedAt:   now(),
		ReplayedAt: &replayed,
	}

	out, err := fromDLQEntry(e).toEntry()
	if err != nil {
		t.Fatalf("toEntry: %v", err)
	}
	if out.ID != e.ID || out.DeliveryID != e.DeliveryID {
		t.Errorf("ids = %s/%s, want %s/%s", out.ID, out.DeliveryID, e.ID, e.DeliveryID)
	}
	if out.TenantID != "acme" || out.FlowName != "heartbeat" || out.Attempts != 5 {
		t.Errorf("entry = %+v", out)
	}
	if out.ReplayedAt == nil || !out.ReplayedAt.Equal(replayed) {
		t.Errorf("ReplayedAt = %v, want %v", out.ReplayedAt, replayed)
	}
}

func TestDLQRow_NoDelivery(t *testing.T) {
	e := &dlq.Entry{ID: id.NewDLQID(), Queue: "flow-jobs", FailedAt: now()}

	r := fromDLQEntry(e)
	if r.DeliveryID != "" {
		t.Errorf("DeliveryID = %q, want empty", r.DeliveryID)
	}
	out, err := r.toEntry()
	if err != nil {
		t.Fatalf("toEntry: %v", err)
	}
	if !out.DeliveryID.IsNil() {
		t.Errorf("DeliveryID = %s, want nil", out.DeliveryID)
	}
}

func TestDeliveryRow_BadID(t *testing.T) {
	r := deliveryRow{ID: "not-an-id", Queue: "flow-jobs"}
	if _, err := r.toDelivery(); err == nil {
		t.Fatal("expected parse error")
	}
}
