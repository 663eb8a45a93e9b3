// Package scope carries the tenant and flow of the running job in a
// context.Context and stamps them onto log records.
package scope

import (
	"context"
	"log/slog"
)

type scopeKey struct{}

type scope struct {
	tenantID string
	flowName string
}

// Capture extracts the tenant and flow identifiers from the context.
// Returns empty strings if no scope is present.
func Capture(ctx context.Context) (tenantID, flowName string) {
	s, ok := ctx.Value(scopeKey{}).(scope)
	if !ok {
		return "", ""
	}
	return s.tenantID, s.flowName
}

// Restore attaches a scope to the context. If both are empty, the context
// is returned unchanged.
func Restore(ctx context.Context, tenantID, flowName string) context.Context {
	if tenantID == "" && flowName == "" {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, scope{tenantID: tenantID, flowName: flowName})
}

// Handler is a slog.Handler that adds scope.tenant_id and scope.flow
// attributes from the record's context. The scope attributes are always
// written at the top level of the record, outside any group opened with
// WithGroup.
type Handler struct {
	root slog.Handler
	ops  []func(slog.Handler) slog.Handler
	next slog.Handler
}

// NewHandler wraps next.
func NewHandler(next slog.Handler) *Handler {
	return &Handler{root: next, next: next}
}

// Enabled implements slog.Handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	tenantID, flowName := Capture(ctx)
	if tenantID == "" && flowName == "" {
		return h.next.Handle(ctx, r)
	}

	attrs := make([]slog.Attr, 0, 2)
	if tenantID != "" {
		attrs = append(attrs, slog.String("scope.tenant_id", tenantID))
	}
	if flowName != "" {
		attrs = append(attrs, slog.String("scope.flow", flowName))
	}

	// Replay the derived attrs and groups on top of the scoped root.
	scoped := h.root.WithAttrs(attrs)
	for _, op := range h.ops {
		scoped = op(scoped)
	}
	return scoped.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

// WithGroup implements slog.Handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *Handler) derive(op func(slog.Handler) slog.Handler) *Handler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &Handler{root: h.root, ops: append(ops, op), next: op(h.next)}
}
