package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dvloznov/statement-import/internal/api/middleware"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/shopspring/decimal"
)

// AccountStore lists and creates ledger accounts.
type AccountStore interface {
	FindAccountsByOwner(ctx context.Context, ownerID string) ([]*ledger.Account, error)
	CreateAccount(ctx context.Context, a *ledger.Account) (string, error)
}

// AccountsHandler handles account endpoints.
type AccountsHandler struct {
	store AccountStore
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(store AccountStore) *AccountsHandler {
	return &AccountsHandler{store: store}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accounts, err := h.store.FindAccountsByOwner(ctx, middleware.OwnerFromContext(ctx))
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []*ledger.Account{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name    string          `json:"name"`
		Type    string          `json:"type"`
		Balance decimal.Decimal `json:"balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Type == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name and type are required")
		return
	}

	acc := &ledger.Account{
		OwnerID: middleware.OwnerFromContext(ctx),
		Name:    req.Name,
		Type:    strings.ToLower(req.Type),
		Balance: req.Balance,
	}
	id, err := h.store.CreateAccount(ctx, acc)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to create account")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}
	acc.AccountID = id

	middleware.WriteJSON(w, http.StatusCreated, acc)
}
