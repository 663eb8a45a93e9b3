package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
	"github.com/xraph/flowsync/tenant"
)

// ── Tenant flows ─────────────────────────────────────────────────

// encodeFlows renders flow configurations for the JSONB flows column.
func encodeFlows(flows []tenant.FlowConfig) ([]byte, error) {
	if flows == nil {
		flows = []tenant.FlowConfig{}
	}
	b, err := json.Marshal(flows)
	if err != nil {
		return nil, fmt.Errorf("flowsync/postgres: encode flows: %w", err)
	}
	return b, nil
}

func decodeFlows(b []byte) ([]tenant.FlowConfig, error) {
	flows := []tenant.FlowConfig{}
	if len(b) == 0 {
		return flows, nil
	}
	if err := json.Unmarshal(b, &flows); err != nil {
		return nil, fmt.Errorf("decode flows: %w", err)
	}
	for i := range flows {
		if flows[i].NextRunUTC != nil {
			next := flows[i].NextRunUTC.UTC()
			flows[i].NextRunUTC = &next
		}
	}
	return flows, nil
}

// ── Delivery row ─────────────────────────────────────────────────

const deliveryColumns = `id, queue, payload, attempt, last_error, enqueued_at, visible_at`

type deliveryRow struct {
	ID         string
	Queue      string
	Payload    string
	Attempt    int
	LastError  string
	EnqueuedAt time.Time
	VisibleAt  time.Time
}

func (r *deliveryRow) dest() []any {
	return []any{&r.ID, &r.Queue, &r.Payload, &r.Attempt, &r.LastError, &r.EnqueuedAt, &r.VisibleAt}
}

func (r *deliveryRow) toDelivery() (*queue.Delivery, error) {
	deliveryID, err := id.ParseDeliveryID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery id: %w", err)
	}
	return &queue.Delivery{
		ID:         deliveryID,
		Queue:      r.Queue,
		Payload:    r.Payload,
		Attempt:    r.Attempt,
		LastError:  r.LastError,
		EnqueuedAt: r.EnqueuedAt.UTC(),
		VisibleAt:  r.VisibleAt.UTC(),
	}, nil
}

// ── DLQ row ──────────────────────────────────────────────────────

const dlqColumns = `id, delivery_id, queue, payload, tenant_id, flow_name, error, attempts, failed_at, replayed_at`

type dlqRow struct {
	ID         string
	DeliveryID string
	Queue      string
	Payload    string
	TenantID   string
	FlowName   string
	Error      string
	Attempts   int
	FailedAt   time.Time
	ReplayedAt *time.Time
}

func fromDLQEntry(e *dlq.Entry) *dlqRow {
	r := &dlqRow{
		ID:         e.ID.String(),
		Queue:      e.Queue,
		Payload:    e.Payload,
		TenantID:   e.TenantID,
		FlowName:   e.FlowName,
		Error:      e.Error,
		Attempts:   e.Attempts,
		FailedAt:   e.FailedAt,
		ReplayedAt: e.ReplayedAt,
	}
	if !e.DeliveryID.IsNil() {
		r.DeliveryID = e.DeliveryID.String()
	}
	return r
}

func (r *dlqRow) args() []any {
	return []any{r.ID, r.DeliveryID, r.Queue, r.Payload, r.TenantID, r.FlowName, r.Error, r.Attempts, r.FailedAt, r.ReplayedAt}
}

func (r *dlqRow) dest() []any {
	return []any{&r.ID, &r.DeliveryID, &r.Queue, &r.Payload, &r.TenantID, &r.FlowName, &r.Error, &r.Attempts, &r.FailedAt, &r.ReplayedAt}
}

func (r *dlqRow) toEntry() (*dlq.Entry, error) {
	entryID, err := id.ParseDLQID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dlq id: %w", err)
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
			return nil, fmt.Errorf("parse delivery id: %w", err)
		}
	}
	if r.ReplayedAt != nil {
		at := r.ReplayedAt.UTC()
		e.ReplayedAt = &at
	}
	return e, nil
}
