package dlq

import (
	"time"

	"github.com/xraph/flowsync/id"
)

// Entry is a job message that was moved off the main queue.
type Entry struct {
	ID         id.DLQID      `json:"id"`
	DeliveryID id.DeliveryID `json:"delivery_id"`
	Queue      string        `json:"queue"`
	Payload    string        `json:"payload"`

	// TenantID and FlowName are empty when the payload did not decode.
	TenantID string `json:"tenant_id,omitempty"`
	FlowName string `json:"flow_name,omitempty"`

	Error      string     `json:"error"`
	Attempts   int        `json:"attempts"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
}
