// internal/api/handler/wallet.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"marketbill/internal/api/types"
	"marketbill/internal/domain"
	"marketbill/internal/service"
	"marketbill/internal/util"
)

// WalletHandler handles HTTP requests for wallet ledger operations.
// Wallets are addressed by the owning user id.
type WalletHandler struct {
	service service.WalletService
	logger  *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc service.WalletService, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		service: svc,
		logger:  logger,
	}
}

// LedgerEntryRequest is the request body for credit and debit operations.
type LedgerEntryRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Reference   string          `json:"reference" validate:"required"`
	Description string          `json:"description,omitempty"`
	InvoiceID   *int64          `json:"invoice_id,omitempty"`
}

func (r LedgerEntryRequest) toDomain() domain.LedgerEntry {
	return domain.LedgerEntry{
		Amount:      r.Amount,
		Currency:    r.Currency,
		Reference:   r.Reference,
		Description: r.Description,
		InvoiceID:   r.InvoiceID,
	}
}

// Credit handles the credit wallet request.
// POST /wallets/{userID}/credit
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req LedgerEntryRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	wallet, transaction, err := h.service.Credit(r.Context(), userID, req.toDomain())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"message":        "Credit recorded",
		"wallet_id":      wallet.ID,
		"new_balance":    wallet.Balance,
		"transaction_id": transaction.ID,
	})
}

// Debit handles the debit wallet request.
// POST /wallets/{userID}/debit
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req LedgerEntryRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	wallet, transaction, err := h.service.Debit(r.Context(), userID, req.toDomain())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"message":        "Debit recorded",
		"wallet_id":      wallet.ID,
		"new_balance":    wallet.Balance,
		"transaction_id": transaction.ID,
	})
}

// EnsureWalletRequest is the request body for wallet provisioning.
type EnsureWalletRequest struct {
	Currency string `json:"currency" validate:"required,len=3"`
}

// Ensure handles the provision wallet request. Idempotent: an existing
// wallet is returned as-is.
// POST /wallets/{userID}
func (h *WalletHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req EnsureWalletRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	wallet, err := h.service.EnsureWallet(r.Context(), userID, req.Currency)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, wallet)
}

// GetBalance handles the get wallet balance request.
// GET /wallets/{userID}/balance
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"user_id":   wallet.UserID,
		"balance":   wallet.Balance,
		"currency":  wallet.Currency,
		"is_locked": wallet.IsLocked,
	})
}

// GetStatement handles the wallet statement request.
// GET /wallets/{userID}/transactions
func (h *WalletHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	limit, offset := paginationParams(r)
	transactions, total, err := h.service.GetStatement(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, types.PaginatedResponse[domain.WalletTransaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

func (h *WalletHandler) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrValidation)
		return 0, false
	}
	return userID, true
}

func paginationParams(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
