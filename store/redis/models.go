package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/tenant"
)

// ── Tenant record ──

type flowRecord struct {
	Name       string     `msgpack:"n"`
	Enabled    bool       `msgpack:"e"`
	Cron       string     `msgpack:"c"`
	NextRunUTC *time.Time `msgpack:"r,omitempty"`
}

type tenantRecord struct {
	ID        string       `msgpack:"id"`
	TenantID  string       `msgpack:"tid"`
	Name      string       `msgpack:"name"`
	Timezone  string       `msgpack:"tz"`
	Flows     []flowRecord `msgpack:"flows"`
	ETag      string       `msgpack:"etag"`
	CreatedAt time.Time    `msgpack:"ca"`
	UpdatedAt time.Time    `msgpack:"ua"`
}

func encodeTenant(t *tenant.Tenant) ([]byte, error) {
	r := tenantRecord{
		ID:        t.ID,
		TenantID:  t.TenantID,
		Name:      t.Name,
		Timezone:  t.Timezone,
		Flows:     make([]flowRecord, len(t.Flows)),
		ETag:      t.ETag,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for i, f := range t.Flows {
		r.Flows[i] = flowRecord{Name: f.Name, Enabled: f.Enabled, Cron: f.Cron, NextRunUTC: f.NextRunUTC}
	}
	return msgpack.Marshal(&r)
}

func decodeTenant(data []byte) (*tenant.Tenant, error) {
	var r tenantRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("flowsync/redis: decode tenant: %w", err)
	}
	t := &tenant.Tenant{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Timezone:  r.Timezone,
		Flows:     make([]tenant.FlowConfig, len(r.Flows)),
		ETag:      r.ETag,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	for i, f := range r.Flows {
		fc := tenant.FlowConfig{Name: f.Name, Enabled: f.Enabled, Cron: f.Cron}
		if f.NextRunUTC != nil {
			next := f.NextRunUTC.UTC()
			fc.NextRunUTC = &next
		}
		t.Flows[i] = fc
	}
	return t, nil
}

// ── DLQ record ──

type dlqRecord struct {
	ID         string     `msgpack:"id"`
	DeliveryID string     `msgpack:"did"`
	Queue      string     `msgpack:"q"`
	Payload    string     `msgpack:"p"`
	TenantID   string     `msgpack:"tid,omitempty"`
	FlowName   string     `msgpack:"flow,omitempty"`
	Error      string     `msgpack:"err"`
	Attempts   int        `msgpack:"att"`
	FailedAt   time.Time  `msgpack:"fa"`
	ReplayedAt *time.Time `msgpack:"ra,omitempty"`
}

func encodeDLQ(e *dlq.Entry) ([]byte, error) {
	return msgpack.Marshal(&dlqRecord{
		ID:         e.ID.String(),
		DeliveryID: e.DeliveryID.String(),
		Queue:      e.Queue,
		Payload:    e.Payload,
		TenantID:   e.TenantID,
		FlowName:   e.FlowName,
		Error:      e.Error,
		Attempts:   e.Attempts,
		FailedAt:   e.FailedAt,
		ReplayedAt: e.ReplayedAt,
	})
}

func decodeDLQ(data []byte) (*dlq.Entry, error) {
	var r dlqRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("flowsync/redis: decode dlq entry: %w", err)
	}
	entryID, err := id.ParseDLQID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: decode dlq entry: %w", err)
	}
	e := &dlq.Entry{
		ID:       entryID,
		Queue:    r.Queue,
		Payload:  r.Payload,
		TenantID: r.TenantID,
		FlowName: r.FlowName,
		Error:    r.Error,
		Attempts: r.Attempts,
		FailedAt: r.FailedAt.UTC(),
	}
	if r.DeliveryID != "" {
		if e.DeliveryID, err = id.ParseDeliveryID(r.DeliveryID); err != nil {
			return nil, fmt.Errorf("flowsync/redis: decode dlq entry: %w", err)
		}
	}
	if r.ReplayedAt != nil {
		at := r.ReplayedAt.UTC()
		e.ReplayedAt = &at
	}
	return e, nil
}

// ── Delivery hash ──

// Deliveries are hashes rather than blobs so the claim script can bump
// the attempt counter with HINCRBY.

func deliveryToMap(d *queue.Delivery) map[string]any {
	return map[string]any{
		"id":          d.ID.String(),
		"queue":       d.Queue,
		"payload":     d.Payload,
		"attempt":     d.Attempt,
		"last_error":  d.LastError,
		"enqueued_at": d.EnqueuedAt.UnixMilli(),
	}
}

func mapToDelivery(vals map[string]string, score float64) (*queue.Delivery, error) {
	deliveryID, err := id.ParseDeliveryID(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: decode delivery: %w", err)
	}
	attempt, err := strconv.Atoi(vals["attempt"])
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: decode delivery attempt: %w", err)
	}
	enqueued, err := strconv.ParseInt(vals["enqueued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("flowsync/redis: decode delivery enqueued_at: %w", err)
	}
	return &queue.Delivery{
		ID:         deliveryID,
		Queue:      vals["queue"],
		Payload:    vals["payload"],
		Attempt:    attempt,
		LastError:  vals["last_error"],
		EnqueuedAt: time.UnixMilli(enqueued).UTC(),
		VisibleAt:  time.UnixMilli(int64(score)).UTC(),
	}, nil
}
