package handler

import (
	"net/http"

	"github.com/rshrestha/imagetools/internal/api"
	"github.com/rshrestha/imagetools/internal/model"
)

// ListTools handles GET /v1/tools -- the tool catalog with per-file
// credit costs.
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(model.Tools))
}
