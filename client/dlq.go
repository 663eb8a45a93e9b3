package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/dlq"
	"github.com/xraph/flowsync/id"
	"github.com/xraph/flowsync/queue"
)

// DLQFilter narrows ListDLQ.
type DLQFilter struct {
	TenantID string
	Limit    int
	Offset   int
}

// ListDLQ returns dead-lettered entries, newest first.
func (c *Client) ListDLQ(ctx context.Context, f DLQFilter) ([]*dlq.Entry, error) {
	q := url.Values{}
	if f.TenantID != "" {
		q.Set("tenant_id", f.TenantID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	var entries []*dlq.Entry
	if err := c.do(ctx, request{method: http.MethodGet, path: "/v1/dlq", query: q}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetDLQ fetches one entry.
func (c *Client) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	var e dlq.Entry
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/v1/dlq/" + entryID.String(),
		notFound: flowsync.ErrDLQNotFound,
	}, &e)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ReplayDLQ pushes the entry back onto its queue and returns the new
// delivery.
func (c *Client) ReplayDLQ(ctx context.Context, entryID id.DLQID) (*queue.Delivery, error) {
	var d queue.Delivery
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/v1/dlq/" + entryID.String() + "/replay",
		notFound: flowsync.ErrDLQNotFound,
	}, &d)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// PurgeDLQ removes entries that failed before before. A zero time removes
// everything.
func (c *Client) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	q := url.Values{}
	if !before.IsZero() {
		q.Set("before", before.UTC().Format(time.RFC3339))
	}
	var resp struct {
		Purged int64 `json:"purged"`
	}
	if err := c.do(ctx, request{method: http.MethodDelete, path: "/v1/dlq", query: q}, &resp); err != nil {
		return 0, err
	}
	return resp.Purged, nil
}
