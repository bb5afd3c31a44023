package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rshrestha/imagetools/internal/api"
	"github.com/rshrestha/imagetools/internal/imaging"
)

// Download handles GET /v1/download/{batch_id}/{file_name} -- serves a
// processed output blob.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")
	fileName := chi.URLParam(r, "file_name")

	rc, err := h.Store.Retrieve(batchID, fileName)
	if err != nil {
		api.NotFound(w, "output not found")
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		api.Internal(w, "failed to read output: "+err.Error())
		return
	}

	contentType := "application/octet-stream"
	if format := imaging.DetectFormat(data); format != "" {
		contentType = imaging.MIMEType(format)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		// Client went away mid-download; nothing to clean up.
		return
	}
}
