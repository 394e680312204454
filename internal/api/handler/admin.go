package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hanzhu/tablab/internal/api/response"
	"github.com/hanzhu/tablab/internal/model"
	"github.com/hanzhu/tablab/internal/retention"
)

// NewCleanupHandler returns POST /api/v1/admin/cleanup: an immediate
// retention sweep, independent of the periodic one.
func NewCleanupHandler(outDir string, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := retention.Sweep(outDir, ttl)
		response.JSON(w, map[string]int{"removed": removed})
	}
}

// NewModelReloadHandler returns POST /api/v1/admin/model/reload. Reload
// failures are logged in full but reported generically; after a failure the
// cache slot is empty until a later reload succeeds.
func NewModelReloadHandler(models *model.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := models.Reload()
		if err != nil {
			slog.Error("model reload failed", "path", models.Path(), "error", err)
			response.Error(w, http.StatusInternalServerError, "MODEL_RELOAD_FAILED",
				"Model could not be reloaded", nil)
			return
		}
		response.JSON(w, map[string]any{
			"model_path":      models.Path(),
			"feature_columns": b.FeatureColumns,
		})
	}
}
