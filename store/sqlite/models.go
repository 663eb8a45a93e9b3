package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/tenant"
)

// ── Tenant model ─────────────────────────────────────────────────

type tenantModel struct {
	TenantID  string `db:"tenant_id"`
	ID        string `db:"id"`
	Name      string `db:"name"`
	Timezone  string `db:"timezone"`
	Flows     string `db:"flows"`
	ETag      string `db:"etag"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func toTenantModel(t *tenant.Tenant) (*tenantModel, error) {
	flows := t.Flows
	if flows == nil {
		flows = []tenant.FlowConfig{}
	}
	b, err := json.Marshal(flows)
	if err != nil {
		return nil, fmt.Errorf("encode flows: %w", err)
	}
	return &tenantModel{
		TenantID:  t.TenantID,
		ID:        t.ID,
		Name:      t.Name,
		Timezone:  t.Timezone,
		Flows:     string(b),
		ETag:      t.ETag,
		CreatedAt: toNanos(t.CreatedAt),
		UpdatedAt: toNanos(t.UpdatedAt),
	}, nil
}

func fromTenantModel(m *tenantModel) (*tenant.Tenant, error) {
	t := &tenant.Tenant{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Name:      m.Name,
		Timezone:  m.Timezone,
		Flows:     []tenant.FlowConfig{},
		ETag:      m.ETag,
		CreatedAt: fromNanos(m.CreatedAt),
		UpdatedAt: fromNanos(m.UpdatedAt),
	}
	if m.Flows != "" {
		if err := json.Unmarshal([]byte(m.Flows), &t.Flows); err != nil {
			return nil, fmt.Errorf("decode flows: %w", err)
		}
	}
	for i := range t.Flows {
		if next := t.Flows[i].NextRunUTC; next != nil {
			utc := next.UTC()
			t.Flows[i].NextRunUTC = &utc
		}
	}
	return t, nil
}

// ── Delivery model ───────────────────────────────────────────────

type deliveryModel struct {
	Seq        int64  `db:"seq"`
	ID         string `db:"id"`
	Queue      string `db:"queue"`
	Payload    string `db:"payload"`
	Attempt    int    `db:"attempt"`
	LastError  string `db:"last_error"`
	EnqueuedAt int64  `db:"enqueued_at"`
	VisibleAt  int64  `db:"visible_at"`
}

func toDeliveryModel(d *queue.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:         d.ID.String(),
		Queue:      d.Queue,
		Payload:    d.Payload,
		Attempt:    d.Attempt,
		LastError:  d.LastError,
		EnqueuedAt: toNanos(d.EnqueuedAt),
		VisibleAt:  toNanos(d.VisibleAt),
	}
}

func fromDeliveryModel(m *deliveryModel) (*queue.Delivery, error) {
	deliveryID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery id: %w", err)
	}
	return &queue.Delivery{
		ID:         deliveryID,
		Queue:      m.Queue,
		Payload:    m.Payload,
		Attempt:    m.Attempt,
		LastError:  m.LastError,
		EnqueuedAt: fromNanos(m.EnqueuedAt),
		VisibleAt:  fromNanos(m.VisibleAt),
	}, nil
}

// ── DLQ model ────────────────────────────────────────────────────

type dlqEntryModel struct {
	ID         string        `db:"id"`
	DeliveryID string        `db:"delivery_id"`
	Queue      string        `db:"queue"`
	Payload    string        `db:"payload"`
	TenantID   string        `db:"tenant_id"`
	FlowName   string        `db:"flow_name"`
	Error      string        `db:"error"`
	Attempts   int           `db:"attempts"`
	FailedAt   int64         `db:"failed_at"`
	ReplayedAt sql.NullInt64 `db:"replayed_at"`
}

func toDLQModel(e *dlq.Entry) *dlqEntryModel {
	m := &dlqEntryModel{
		ID:         e.ID.String(),
		DeliveryID: e.DeliveryID.String(),
		Queue:      e.Queue,
		Payload:    e.Payload,
		TenantID:   e.TenantID,
		FlowName:   e.FlowName,
		Error:      e.Error,
		Attempts:   e.Attempts,
		FailedAt:   toNanos(e.FailedAt),
	}
	if e.ReplayedAt != nil {
		m.ReplayedAt = sql.NullInt64{Int64: toNanos(*e.ReplayedAt), Valid: true}
	}
	return m
}

func fromDLQModel(m *dlqEntryModel) (*dlq.Entry, error) {
	entryID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dlq id: %w", err)
	}
	e := &dlq.Entry{
		ID:       entryID,
		Queue:    m.Queue,
		Payload:  m.Payload,
		TenantID: m.TenantID,
		FlowName: m.FlowName,
		Error:    m.Error,
		Attempts: m.Attempts,
		FailedAt: fromNanos(m.FailedAt),
	}
	if m.DeliveryID != "" {
		if e.DeliveryID, err = id.ParseDeliveryID(m.DeliveryID); err != nil {
			return nil, fmt.Errorf("parse delivery id: %w", err)
		}
	}
	if m.ReplayedAt.Valid {
		at := fromNanos(m.ReplayedAt.Int64)
		e.ReplayedAt = &at
	}
	return e, nil
}
