package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
)

// Tenants are stored as tenant.Tenant directly; its bson tags define the
// document shape.

// ── Delivery model ────────────────────────────────────────────────

type deliveryModel struct {
	ID         string    `bson:"_id"`
	Queue      string    `bson:"queue"`
	Payload    string    `bson:"payload"`
	Attempt    int       `bson:"attempt"`
	LastError  string    `bson:"last_error,omitempty"`
	EnqueuedAt time.Time `bson:"enqueued_at"`
	VisibleAt  time.Time `bson:"visible_at"`
}

func toDeliveryModel(d *queue.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:         d.ID.String(),
		Queue:      d.Queue,
		Payload:    d.Payload,
		Attempt:    d.Attempt,
		LastError:  d.LastError,
		EnqueuedAt: d.EnqueuedAt,
		VisibleAt:  d.VisibleAt,
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
		EnqueuedAt: m.EnqueuedAt.UTC(),
		VisibleAt:  m.VisibleAt.UTC(),
	}, nil
}

// ── DLQ model ─────────────────────────────────────────────────────

type dlqEntryModel struct {
	ID         string     `bson:"_id"`
	DeliveryID string     `bson:"delivery_id"`
	Queue      string     `bson:"queue"`
	Payload    string     `bson:"payload"`
	TenantID   string     `bson:"tenant_id,omitempty"`
	FlowName   string     `bson:"flow_name,omitempty"`
	Error      string     `bson:"error"`
	Attempts   int        `bson:"attempts"`
	FailedAt   time.Time  `bson:"failed_at"`
	ReplayedAt *time.Time `bson:"replayed_at,omitempty"`
}

func toDLQModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
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
	}
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
		FailedAt: m.FailedAt.UTC(),
	}
	if m.DeliveryID != "" {
		if e.DeliveryID, err = id.ParseDeliveryID(m.DeliveryID); err != nil {
			return nil, fmt.Errorf("parse delivery id: %w", err)
		}
	}
	if m.ReplayedAt != nil {
		at := m.ReplayedAt.UTC()
		e.ReplayedAt = &at
	}
	return e, nil
}

// ── Secret model ──────────────────────────────────────────────────

type secretModel struct {
	Name  string `bson:"_id"`
	Value string `bson:"value"`
}
