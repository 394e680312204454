package handler

import (
	"net/http"

	"github.com/hanzhu/tablab/internal/api/response"
	"github.com/hanzhu/tablab/internal/cache"
	"github.com/hanzhu/tablab/internal/job"
)

// NewHealthHandler reports store (and, when configured, cache) connectivity.
func NewHealthHandler(store job.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"store": "ok"}

		if err := store.Ping(r.Context()); err != nil {
			checks["store"] = "degraded"
		}
		if c != nil {
			checks["cache"] = "ok"
			if err := c.Ping(r.Context()); err != nil {
				checks["cache"] = "degraded"
			}
		}

		for _, v := range checks {
			if v != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}
		response.JSON(w, map[string]any{"status": "ok", "services": checks})
	}
}
