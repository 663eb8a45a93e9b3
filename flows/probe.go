package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/xraph/flowsync/secret"
)

// maxProbeBody bounds how much of a probe response is read.
const maxProbeBody = 1 << 20

// Probe checks that an external HTTP endpoint configured for the tenant
// answers with a JSON object. The URL is the tenant's probe/url
// credential; an optional probe/field names a top-level key that must be
// present and non-null.
type Probe struct {
	client *http.Client
	logger *slog.Logger
}

// NewProbe returns a Probe using client.
func NewProbe(client *http.Client, logger *slog.Logger) *Probe {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{client: client, logger: logger}
}

// Run implements flow.Task.
func (p *Probe) Run(ctx context.Context, tenantID string, secrets secret.Accessor) error {
	url, err := secrets.Get(ctx, "probe", "url")
	if err != nil {
		return fmt.Errorf("probe: read url: %w", err)
	}
	field, err := secrets.Get(ctx, "probe", "field")
	if err != nil && !secret.IsNotFound(err) {
		return fmt.Errorf("probe: read field: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("probe: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe: %s returned %d", url, resp.StatusCode)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBody)).Decode(&body); err != nil {
		return fmt.Errorf("probe: decode response: %w", err)
	}
	if field != "" {
		if v, ok := body[field]; !ok || string(v) == "null" {
			return fmt.Errorf("probe: response missing %q", field)
		}
	}

	p.logger.InfoContext(ctx, "probe succeeded",
		slog.String("tenant_id", tenantID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
