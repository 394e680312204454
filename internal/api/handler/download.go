package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanzhu/tablab/internal/api/response"
	"github.com/hanzhu/tablab/internal/signing"
)

// allowedArtifacts maps the downloadable filenames to their content types.
// Anything else 404s regardless of what exists on disk.
var allowedArtifacts = map[string]string{
	"summary.json": "application/json",
	"hist.png":     "image/png",
}

// NewDownloadHandler returns GET /api/v1/results/{requestID}/{filename}.
// The forbidden response is deliberately generic: it never says whether the
// link was expired or forged.
func NewDownloadHandler(signer *signing.Service, outDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")
		filename := chi.URLParam(r, "filename")

		contentType, ok := allowedArtifacts[filename]
		if !ok || !validRequestID(requestID) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Artifact not found", nil)
			return
		}

		if signer.Enabled() {
			exp, err := strconv.ParseInt(r.URL.Query().Get("exp"), 10, 64)
			if err != nil {
				forbidden(w)
				return
			}
			if err := signer.CheckURL(requestID, filename, exp, r.URL.Query().Get("sig")); err != nil {
				forbidden(w)
				return
			}
		}

		f, err := os.Open(filepath.Join(outDir, requestID, filename))
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Artifact not found", nil)
			return
		}
		defer f.Close()

		w.Header().Set("Content-Type", contentType)
		io.Copy(w, f)
	}
}

func forbidden(w http.ResponseWriter) {
	response.Error(w, http.StatusForbidden, "FORBIDDEN", "Invalid or expired link", nil)
}

// validRequestID rejects anything that could escape the output directory.
func validRequestID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/\\") && id != "." && id != ".."
}
