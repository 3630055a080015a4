// internal/api/handler/cancellation.go
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"marketbill/internal/service"
	"marketbill/internal/util"
)

// CancellationHandler handles the order-cancellation endpoint.
type CancellationHandler struct {
	service service.CancellationService
	logger  *slog.Logger
}

// NewCancellationHandler creates a new CancellationHandler.
func NewCancellationHandler(svc service.CancellationService, logger *slog.Logger) *CancellationHandler {
	return &CancellationHandler{
		service: svc,
		logger:  logger,
	}
}

// CancelOrderRequest is the request body for an order cancellation.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelOrder handles the cancel order request.
// POST /orders/{invoiceID}/cancel
func (h *CancellationHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrValidation)
		return
	}

	var req CancelOrderRequest
	if r.ContentLength > 0 && !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	result, err := h.service.CancelOrder(r.Context(), invoiceID, req.Reason)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	resp := map[string]interface{}{
		"message":         "Order cancelled",
		"invoice_id":      result.Invoice.ID,
		"invoice_status":  result.Invoice.Status,
		"refunded_amount": result.RefundedAmount,
	}
	if result.CancellationInvoice != nil {
		resp["cancellation_invoice_id"] = result.CancellationInvoice.ID
		resp["cancellation_invoice_number"] = result.CancellationInvoice.Number
		resp["seller_debits"] = result.SellerDebits
		resp["platform_fee"] = result.PlatformFee
	}
	respondWithJSON(h.logger, w, http.StatusOK, resp)
}
