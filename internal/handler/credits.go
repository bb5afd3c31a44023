package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rshrestha/imagetools/internal/api"
	"github.com/rshrestha/imagetools/internal/model"
)

// GetCredits handles GET /v1/credits.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	user := api.UserFrom(r.Context())

	acct, err := h.Ledger.Balance(user.ID)
	if err != nil {
		api.Internal(w, "failed to load credits: "+err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(acct))
}

// ListTransactions handles GET /v1/credits/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user := api.UserFrom(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	txs, err := h.Ledger.Transactions(user.ID, limit)
	if err != nil {
		api.Internal(w, "failed to list transactions: "+err.Error())
		return
	}

	// Ensure non-nil slice for JSON serialisation.
	if txs == nil {
		txs = []*model.CreditTransaction{}
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(txs))
}

// GrantCredits handles POST /v1/admin/credits/grant -- the external
// top-up path (subscription purchase or admin override).
func (h *Handler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"user_id"`
		Amount      int    `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if body.UserID == "" {
		api.BadRequest(w, "user_id is required")
		return
	}
	if body.Amount <= 0 {
		api.BadRequest(w, "amount must be positive")
		return
	}

	if err := h.Ledger.Grant(body.UserID, body.Amount, model.TxTypeGrant, body.Description); err != nil {
		api.Internal(w, "failed to grant credits: "+err.Error())
		return
	}

	acct, err := h.Ledger.Balance(body.UserID)
	if err != nil {
		api.Internal(w, "failed to load credits: "+err.Error())
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(acct))
}
