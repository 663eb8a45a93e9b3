// Package api provides the admin HTTP API for a flowsync engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/flowsync/cron"
	"github.com/xraph/flowsync/engine"
)

// defaultListLimit caps list endpoints when no limit is given.
const defaultListLimit = 50

// maxListLimit is the largest accepted limit query parameter.
const maxListLimit = 500

// API wires the admin HTTP handlers to an Engine.
type API struct {
	eng       *engine.Engine
	logger    *slog.Logger
	schedules *cron.Evaluator
}

// New creates an API from a flowsync Engine.
func New(eng *engine.Engine) *API {
	return &API{
		eng:       eng,
		logger:    eng.Logger().With(slog.String("component", "api")),
		schedules: cron.NewEvaluator(),
	}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all flowsync API routes under /v1 on r.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		a.registerTenantRoutes(r)
		a.registerJobRoutes(r)
		a.registerDLQRoutes(r)
		r.Get("/stats", a.stats)
	})
}

func (a *API) registerTenantRoutes(r chi.Router) {
	r.Get("/tenants", a.listTenants)
	r.Get("/tenants/{tenantID}", a.getTenant)
	r.Put("/tenants/{tenantID}", a.putTenant)
}

func (a *API) registerJobRoutes(r chi.Router) {
	r.Get("/flows", a.listFlows)
	r.Post("/jobs", a.enqueueJob)
	r.Post("/passes", a.runPass)
}

func (a *API) registerDLQRoutes(r chi.Router) {
	r.Get("/dlq", a.listDLQ)
	r.Delete("/dlq", a.purgeDLQ)
	r.Get("/dlq/{entryID}", a.getDLQ)
	r.Post("/dlq/{entryID}/replay", a.replayDLQ)
}
