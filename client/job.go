package client

import (
	"context"
	"net/http"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/queue"
)

// Stats is a point-in-time view of queue health.
type Stats struct {
	Queue       string   `json:"queue"`
	QueueDepth  int64    `json:"queue_depth"`
	DeadLetters int64    `json:"dead_letters"`
	Flows       []string `json:"flows"`
}

// Enqueue queues one run of flowName for tenantID outside its schedule.
func (c *Client) Enqueue(ctx context.Context, tenantID, flowName string) (*queue.Delivery, error) {
	var d queue.Delivery
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/jobs",
		body: map[string]string{
			"tenant_id": tenantID,
			"flow_name": flowName,
		},
		notFound: flowsync.ErrTenantNotFound,
	}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// RunPass runs one orchestrator pass on the server.
func (c *Client) RunPass(ctx context.Context) (*cron.PassReport, error) {
	var report cron.PassReport
	if err := c.do(ctx, request{method: http.MethodPost, path: "/v1/passes"}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Flows returns the names of the flows registered on the server.
func (c *Client) Flows(ctx context.Context) ([]string, error) {
	var resp struct {
		Flows []string `json:"flows"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/flows"}, &resp); err != nil {
		return nil, err
	}
	return resp.Flows, nil
}

// Stats returns queue depth and dead-letter counts.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/stats"}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
