package job

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xraph/flowsync"
)

// Message identifies one flow run for one tenant.
type Message struct {
	TenantID string `json:"TenantId"`
	FlowName string `json:"FlowName"`
}

// String returns "tenant/flow" for log lines.
func (m Message) String() string {
	return m.TenantID + "/" + m.FlowName
}

// Encode returns the base64 encoded JSON form of m.
func (m Message) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("job: encode message %s: %w", m, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a queued payload produced by Encode. Every failure wraps
// flowsync.ErrMalformedMessage; such payloads never become valid on retry.
func Decode(payload string) (Message, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Message{}, fmt.Errorf("%w: base64: %v", flowsync.ErrMalformedMessage, err)
	}

	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: json: %v", flowsync.ErrMalformedMessage, err)
	}
	if m.TenantID == "" {
		return Message{}, fmt.Errorf("%w: missing TenantId", flowsync.ErrMalformedMessage)
	}
	if m.FlowName == "" {
		return Message{}, fmt.Errorf("%w: missing FlowName", flowsync.ErrMalformedMessage)
	}
	return m, nil
}
