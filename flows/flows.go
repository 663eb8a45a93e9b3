// Package flows holds the builtin flow tasks and the explicit table that
// registers them.
package flows

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/flowsync/flow"
)

// Builtin flow names.
const (
	HeartbeatName = "heartbeat"
	ProbeName     = "probe"
)

type options struct {
	logger *slog.Logger
	client *http.Client
}

// Option configures the builtin flows.
type Option func(*options)

// WithLogger sets the logger flows write to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient sets the client used by the probe flow.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// Definitions returns the registration table for every builtin flow.
func Definitions(opts ...Option) []flow.Definition {
	o := options{
		logger: slog.Default(),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return []flow.Definition{
		{Name: HeartbeatName, New: flow.Static(NewHeartbeat(o.logger))},
		{Name: ProbeName, New: flow.Static(NewProbe(o.client, o.logger))},
	}
}
