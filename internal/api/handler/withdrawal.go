// internal/api/handler/withdrawal.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"marketbill/internal/domain"
	"marketbill/internal/service"
	"marketbill/internal/util"
)

// WithdrawalHandler handles HTTP requests for the withdrawal workflow.
// Create and Get are user-facing; Approve, Reject and Process are admin
// endpoints.
type WithdrawalHandler struct {
	service service.WithdrawalService
	logger  *slog.Logger
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(svc service.WithdrawalService, logger *slog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateWithdrawalRequest is the request body for a new withdrawal.
type CreateWithdrawalRequest struct {
	Type          string          `json:"type" validate:"required,oneof=SELLER_REVENUE WALLET"`
	SellerID      *int64          `json:"seller_id,omitempty"`
	UserID        *int64          `json:"user_id,omitempty"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	PayoutDetails string          `json:"payout_details" validate:"required"`
	Description   string          `json:"description,omitempty"`
}

// Create handles the new withdrawal request.
// POST /withdrawals
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWithdrawalRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	request, err := h.service.Create(r.Context(), domain.NewWithdrawalParams{
		Type:          domain.WithdrawalType(req.Type),
		SellerID:      req.SellerID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PayoutDetails: req.PayoutDetails,
		Description:   req.Description,
	})
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusCreated, request)
}

// Get handles the get withdrawal request.
// GET /withdrawals/{withdrawalID}
func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	request, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, request)
}

// ReviewRequest carries optional reviewer notes on approve and reject.
type ReviewRequest struct {
	Notes string `json:"notes,omitempty"`
}

// Approve handles the approve withdrawal request.
// POST /withdrawals/{withdrawalID}/approve
func (h *WithdrawalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

// Reject handles the reject withdrawal request.
// POST /withdrawals/{withdrawalID}/reject
func (h *WithdrawalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

// ProcessRequest is the request body for finalizing a payout.
type ProcessRequest struct {
	ProcessedByUserID   int64  `json:"processed_by_user_id" validate:"required"`
	WalletTransactionID *int64 `json:"wallet_transaction_id,omitempty"`
}

// Process handles the finalize payout request.
// POST /withdrawals/{withdrawalID}/process
func (h *WithdrawalHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ProcessRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	request, err := h.service.Process(r.Context(), id, req.ProcessedByUserID, req.WalletTransactionID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, request)
}

// Cancel handles the cancel withdrawal request.
// POST /withdrawals/{withdrawalID}/cancel
func (h *WithdrawalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	request, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, request)
}

func (h *WithdrawalHandler) review(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, notes string) (*domain.WithdrawalRequest, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ReviewRequest
	if r.ContentLength > 0 && !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	request, err := op(r.Context(), id, req.Notes)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, request)
}

func (h *WithdrawalHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "withdrawalID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrValidation)
		return 0, false
	}
	return id, true
}
