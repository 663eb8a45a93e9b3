package tenant

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/xraph/flowsync"
)

// FlowConfig schedules one named flow for one tenant.
type FlowConfig struct {
	Name    string `json:"flowName" bson:"flow_name" validate:"required"`
	Enabled bool   `json:"enabled" bson:"enabled"`
	Cron    string `json:"cron" bson:"cron" validate:"required"`

	// NextRunUTC is the watermark. Nil means the flow has never been
	// scheduled and is due immediately.
	NextRunUTC *time.Time `json:"nextRunUtc,omitempty" bson:"next_run_utc,omitempty"`
}

// Due reports whether the flow should fire at now.
func (f FlowConfig) Due(now time.Time) bool {
	if !f.Enabled {
		return false
	}
	return f.NextRunUTC == nil || !f.NextRunUTC.After(now)
}

// Tenant owns an ordered set of flow configurations.
type Tenant struct {
	// ID is the document identifier. Stores default it to TenantID.
	ID       string       `json:"id" bson:"_id"`
	TenantID string       `json:"tenantId" bson:"tenant_id" validate:"required"`
	Name     string       `json:"name" bson:"name"`
	Timezone string       `json:"timezone,omitempty" bson:"timezone,omitempty"`
	Flows    []FlowConfig `json:"flows" bson:"flows" validate:"dive"`

	// ETag is the concurrency token assigned by the store on every write.
	ETag string `json:"etag" bson:"_etag"`

	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

// Flow returns the configuration for name, compared case-insensitively.
func (t *Tenant) Flow(name string) (*FlowConfig, bool) {
	for i := range t.Flows {
		if strings.EqualFold(t.Flows[i].Name, strings.TrimSpace(name)) {
			return &t.Flows[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so callers never share watermark pointers with
// a store's internal state.
func (t *Tenant) Clone() *Tenant {
	cp := *t
	cp.Flows = make([]FlowConfig, len(t.Flows))
	for i, f := range t.Flows {
		if f.NextRunUTC != nil {
			next := *f.NextRunUTC
			f.NextRunUTC = &next
		}
		cp.Flows[i] = f
	}
	return &cp
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields and rejects duplicate flow names.
// It does not parse cron expressions.
func (t *Tenant) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("tenant: invalid %q: %w", t.TenantID, err)
	}
	seen := make(map[string]struct{}, len(t.Flows))
	for _, f := range t.Flows {
		key := strings.ToLower(strings.TrimSpace(f.Name))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("tenant: invalid %q: flow %q configured twice", t.TenantID, f.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// NewETag returns a fresh concurrency token.
func NewETag() string {
	return uuid.NewString()
}

// ConflictError reports a conditional replace against a stale ETag.
type ConflictError struct {
	TenantID string
	ETag     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("flowsync: concurrency conflict on tenant %q (etag %q)", e.TenantID, e.ETag)
}

func (e *ConflictError) Unwrap() error { return flowsync.ErrConcurrencyConflict }
