// Package client provides a Go client for the flowsync admin HTTP API.
//
// Usage:
//
//	c, err := client.New("http://localhost:8080")
//
//	// Queue one run outside the schedule.
//	d, err := c.Enqueue(ctx, "acme", "heartbeat")
//
//	// Replay everything dead-lettered for a tenant.
//	entries, err := c.ListDLQ(ctx, client.DLQFilter{TenantID: "acme"})
//	for _, e := range entries {
//	    _, _ = c.ReplayDLQ(ctx, e.ID)
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/flowsync"
)

// Client talks to a remote flowsync admin API.
type Client struct {
	base   *url.URL
	http   *http.Client
	header http.Header
	logger *slog.Logger
}

// New returns a Client for the API served at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("flowsync/client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("flowsync/client: base url %q must be http or https", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		header: make(http.Header),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string

	sentinel error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flowsync/client: %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap returns the flowsync sentinel matching the response, so callers
// can use errors.Is against flowsync.ErrTenantNotFound and friends.
func (e *APIError) Unwrap() error { return e.sentinel }

// sentinelFor maps an error code to a flowsync sentinel. notFound is the
// sentinel for the resource the request addressed.
func sentinelFor(code string, notFound error) error {
	switch code {
	case "not_found":
		return notFound
	case "conflict":
		return flowsync.ErrConcurrencyConflict
	case "duplicate":
		return flowsync.ErrDuplicateTenant
	case "unknown_flow":
		return flowsync.ErrUnknownFlow
	case "malformed_schedule":
		return flowsync.ErrMalformedSchedule
	}
	return nil
}

// request describes one API call.
type request struct {
	method   string
	path     string
	query    url.Values
	header   http.Header
	body     any
	notFound error
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := *c.base
	u.Path = c.base.Path + req.path
	if req.query != nil {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		buf, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("flowsync/client: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("flowsync/client: build request: %w", err)
	}
	for k, vs := range c.header {
		httpReq.Header[k] = vs
	}
	for k, vs := range req.header {
		httpReq.Header[k] = vs
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("flowsync/client: %s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Code: "http_error", Message: resp.Status}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err == nil && payload.Code != "" {
			apiErr.Code = payload.Code
			apiErr.Message = payload.Message
		}
		apiErr.sentinel = sentinelFor(apiErr.Code, req.notFound)
		c.logger.Debug("api request failed",
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("flowsync/client: decode response: %w", err)
		}
	}
	return nil
}
