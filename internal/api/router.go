// Package api wires the HTTP surface: routing, middleware, and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanzhu/tablab/internal/api/middleware"
	"github.com/hanzhu/tablab/internal/api/response"
)

// Dependencies carries the handlers the router mounts. Nil handlers get a
// 501 so a partially wired server still starts.
type Dependencies struct {
	Admin     *middleware.AdminAuth
	RateLimit *middleware.RateLimit // nil disables rate limiting

	Health   http.HandlerFunc
	Analyze  http.HandlerFunc
	Status   http.HandlerFunc
	Download http.HandlerFunc
	Metrics  http.Handler

	AdminCleanup     http.HandlerFunc
	AdminModelReload http.HandlerFunc
}

// NewRouter builds the chi router with logging and panic recovery applied to
// every route, and admin auth applied to the admin group only.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}
		r.Post("/api/v1/analyze", orNotImplemented(deps.Analyze))
		r.Get("/api/v1/analyze/{requestID}", orNotImplemented(deps.Status))
		r.Get("/api/v1/results/{requestID}/{filename}", orNotImplemented(deps.Download))
	})

	r.Group(func(r chi.Router) {
		if deps.Admin != nil {
			r.Use(deps.Admin.Require)
		}
		r.Post("/api/v1/admin/cleanup", orNotImplemented(deps.AdminCleanup))
		r.Post("/api/v1/admin/model/reload", orNotImplemented(deps.AdminModelReload))
	})

	return r
}

func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED",
			"Endpoint not available", nil)
	}
}
