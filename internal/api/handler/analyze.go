// Package handler implements the HTTP endpoints on top of the job,
// signing, model, and retention packages.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/hanzhu/tablab/internal/api/response"
	"github.com/hanzhu/tablab/internal/job"
	"github.com/hanzhu/tablab/internal/upload"
)

// SubmitFunc is the orchestrator seam the analyze endpoint depends on.
type SubmitFunc func(ctx context.Context, src io.Reader, filename, contentType string, opts job.Options) (string, error)

// NewAnalyzeHandler returns the POST /api/v1/analyze handler. The upload is
// streamed straight from the multipart reader into the ingestor; analysis
// parameters arrive as query parameters (hist, top_k).
func NewAnalyzeHandler(svc SubmitFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, ok := parseOptions(w, r)
		if !ok {
			return
		}

		part, err := filePart(r)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart/form-data with a \"file\" field", nil)
			return
		}
		defer part.Close()

		requestID, err := svc(r.Context(), part, part.FileName(),
			part.Header.Get("Content-Type"), opts)
		if err != nil {
			writeSubmitError(w, err)
			return
		}

		response.Accepted(w, map[string]string{
			"request_id": requestID,
			"status_url": "/api/v1/analyze/" + requestID,
		})
	}
}

// filePart advances the multipart stream to the "file" field without
// buffering the payload.
func filePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}

func parseOptions(w http.ResponseWriter, r *http.Request) (job.Options, bool) {
	opts := job.Options{HistColumn: r.URL.Query().Get("hist")}

	if raw := r.URL.Query().Get("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 || k > job.MaxTopK {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"top_k must be an integer between 1 and 50", nil)
			return opts, false
		}
		opts.TopK = k
	}
	return opts, true
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upload.ErrMissingExtension),
		errors.Is(err, upload.ErrDisallowedExtension):
		response.Error(w, http.StatusBadRequest, "NOT_SUPPORTED",
			"File type is not supported", nil)
	case errors.Is(err, upload.ErrMissingMimeType),
		errors.Is(err, upload.ErrDisallowedMimeType):
		response.Error(w, http.StatusUnsupportedMediaType, "NOT_SUPPORTED",
			"Content type is not supported", nil)
	case errors.Is(err, upload.ErrPayloadTooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Payload exceeds the maximum allowed size", nil)
	default:
		slog.Error("submit failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
