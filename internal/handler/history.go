package handler

import (
	"net/http"
	"strconv"

	"github.com/rshrestha/imagetools/internal/api"
	"github.com/rshrestha/imagetools/internal/model"
)

// GetHistory handles GET /v1/history. Anonymous callers see only
// anonymous records.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if user := api.UserFrom(r.Context()); user != nil {
		userID = user.ID
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.History.List(userID, limit)
	if err != nil {
		api.Internal(w, "failed to list history: "+err.Error())
		return
	}

	// Ensure non-nil slice for JSON serialisation.
	if records == nil {
		records = []*model.ProcessingRecord{}
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(records))
}
