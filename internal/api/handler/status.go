package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanzhu/tablab/internal/api/response"
	"github.com/hanzhu/tablab/internal/cache"
	"github.com/hanzhu/tablab/internal/job"
)

// terminalCacheTTL bounds how long a finished record may be served from
// Redis. Terminal records are immutable, but their directories age out, so
// the cache entry must not outlive the retention sweep by much.
const terminalCacheTTL = 5 * time.Minute

// NewStatusHandler returns GET /api/v1/analyze/{requestID}. c may be nil;
// when present, terminal records are served from the cache on the poll hot
// path.
func NewStatusHandler(store job.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")

		if c != nil {
			if b, found, err := c.Get(r.Context(), cache.StatusKey(requestID)); err == nil && found {
				var rec job.Record
				if json.Unmarshal(b, &rec) == nil {
					response.JSON(w, &rec)
					return
				}
			}
		}

		rec, err := store.Get(r.Context(), requestID)
		if errors.Is(err, job.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND",
				"Unknown request id", nil)
			return
		}
		if err != nil {
			slog.Error("status read failed", "request_id", requestID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		if c != nil && job.Terminal(rec.Status) {
			if b, err := json.Marshal(rec); err == nil {
				c.Set(r.Context(), cache.StatusKey(requestID), b, terminalCacheTTL)
			}
		}
		response.JSON(w, rec)
	}
}
