package flow

import (
	"context"
	"fmt"

	"github.com/xraph/flowsync"
	"github.com/xraph/flowsync/secret"
)

// Task is one named unit of tenant-scoped work.
//
// Run must honor ctx cancellation and must not keep per-tenant state on the
// receiver; one instance serves every tenant concurrently. Delivery is
// at-least-once, so Run must tolerate being invoked again for the same
// occurrence.
type Task interface {
	Run(ctx context.Context, tenantID string, secrets secret.Accessor) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, tenantID string, secrets secret.Accessor) error

// Run calls f.
func (f TaskFunc) Run(ctx context.Context, tenantID string, secrets secret.Accessor) error {
	return f(ctx, tenantID, secrets)
}

// Factory builds a Task. It is called at most once per successful
// resolution of a name.
type Factory func() (Task, error)

// Definition binds a stable flow name to a Factory.
type Definition struct {
	Name string
	New  Factory
}

// Static returns a Factory that always yields t.
func Static(t Task) Factory {
	return func() (Task, error) { return t, nil }
}

// UnknownFlowError reports a resolution request for an unregistered name.
type UnknownFlowError struct {
	Name string
}

func (e *UnknownFlowError) Error() string {
	return fmt.Sprintf("flowsync: unknown flow %q", e.Name)
}

func (e *UnknownFlowError) Unwrap() error { return flowsync.ErrUnknownFlow }
