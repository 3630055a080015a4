// internal/api/handler/invoice.go
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"marketbill/internal/api/types"
	"marketbill/internal/domain"
	"marketbill/internal/service"
	"marketbill/internal/util"
)

// InvoiceHandler handles HTTP requests for the invoice aggregate.
type InvoiceHandler struct {
	service service.InvoiceService
	logger  *slog.Logger
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(svc service.InvoiceService, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: svc,
		logger:  logger,
	}
}

// InvoiceItemRequest is one line item in a create or add-item request.
type InvoiceItemRequest struct {
	Name           string            `json:"name" validate:"required"`
	Kind           string            `json:"kind" validate:"required,oneof=PRODUCT SERVICE"`
	ReferenceID    *int64            `json:"reference_id,omitempty"`
	Quantity       int64             `json:"quantity" validate:"required,gt=0"`
	UnitPrice      decimal.Decimal   `json:"unit_price" validate:"required"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

func (r InvoiceItemRequest) toDomain() domain.InvoiceItem {
	return domain.InvoiceItem{
		Name:           r.Name,
		Kind:           domain.ItemKind(r.Kind),
		ReferenceID:    r.ReferenceID,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		DiscountAmount: r.DiscountAmount,
		Attributes:     domain.Metadata(r.Attributes),
	}
}

// CreateInvoiceRequest is the request body for invoice creation.
type CreateInvoiceRequest struct {
	Number            string               `json:"number,omitempty"`
	Title             string               `json:"title" validate:"required"`
	Description       string               `json:"description,omitempty"`
	UserID            *int64               `json:"user_id,omitempty"`
	Currency          string               `json:"currency" validate:"required,len=3"`
	IssueDate         time.Time            `json:"issue_date" validate:"required"`
	DueDate           *time.Time           `json:"due_date,omitempty"`
	TaxAmount         decimal.Decimal      `json:"tax_amount"`
	AdjustmentAmount  decimal.Decimal      `json:"adjustment_amount"`
	ExternalReference string               `json:"external_reference,omitempty"`
	Items             []InvoiceItemRequest `json:"items" validate:"dive"`
}

// Create handles the create invoice request.
// POST /invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	items := make([]domain.InvoiceItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.toDomain())
	}

	inv, err := h.service.Create(r.Context(), domain.NewInvoiceParams{
		Number:            req.Number,
		Title:             req.Title,
		Description:       req.Description,
		UserID:            req.UserID,
		Currency:          req.Currency,
		IssueDate:         req.IssueDate,
		DueDate:           req.DueDate,
		TaxAmount:         req.TaxAmount,
		AdjustmentAmount:  req.AdjustmentAmount,
		ExternalReference: req.ExternalReference,
	}, items)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusCreated, inv)
}

// Get handles the get invoice request.
// GET /invoices/{invoiceID}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}

	withDetails := r.URL.Query().Get("details") != "false"
	inv, err := h.service.Get(r.Context(), invoiceID, withDetails)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, inv)
}

// List handles the list invoices request for one user.
// GET /invoices?user_id=34
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, fmt.Errorf("%w: user_id query parameter is required", util.ErrValidation))
		return
	}

	limit, offset := paginationParams(r)
	invoices, total, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, types.PaginatedResponse[domain.Invoice]{
		Data:       invoices,
		Limit:      limit,
		Offset:     offset,
		TotalCount: total,
	})
}

// AddItem handles the add line item request.
// POST /invoices/{invoiceID}/items
func (h *InvoiceHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}

	var req InvoiceItemRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	inv, err := h.service.AddItem(r.Context(), invoiceID, req.toDomain())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, inv)
}

// RemoveItem handles the remove line item request.
// DELETE /invoices/{invoiceID}/items/{itemID}
func (h *InvoiceHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	itemID, ok := h.pathID(w, r, "itemID")
	if !ok {
		return
	}

	inv, err := h.service.RemoveItem(r.Context(), invoiceID, itemID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, inv)
}

// PaymentTransactionRequest is the request body for recording a payment.
type PaymentTransactionRequest struct {
	Amount      decimal.Decimal   `json:"amount" validate:"required"`
	Method      string            `json:"method" validate:"required"`
	Status      string            `json:"status" validate:"omitempty,oneof=PENDING SUCCEEDED FAILED"`
	Reference   string            `json:"reference" validate:"required"`
	Gateway     string            `json:"gateway,omitempty"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at,omitempty"`
}

func (r PaymentTransactionRequest) toDomain() domain.PaymentTransaction {
	status := domain.TransactionStatus(r.Status)
	if r.Status == "" {
		status = domain.TransactionStatusSucceeded
	}
	return domain.PaymentTransaction{
		Amount:      r.Amount,
		Method:      r.Method,
		Status:      status,
		Reference:   r.Reference,
		Gateway:     r.Gateway,
		Description: r.Description,
		Metadata:    domain.Metadata(r.Metadata),
		OccurredAt:  r.OccurredAt,
	}
}

// AddTransaction handles the record payment request.
// POST /invoices/{invoiceID}/transactions
func (h *InvoiceHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}

	var req PaymentTransactionRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	inv, err := h.service.AddTransaction(r.Context(), invoiceID, req.toDomain())
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, inv)
}

// UpdateTransaction handles the replace payment transaction request,
// typically a gateway webhook settling or failing a pending charge. The
// body carries the full replacement transaction.
// PUT /invoices/{invoiceID}/transactions/{transactionID}
func (h *InvoiceHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}
	transactionID, ok := h.pathID(w, r, "transactionID")
	if !ok {
		return
	}

	var req PaymentTransactionRequest
	if !decodeAndValidate(h.logger, w, r, &req) {
		return
	}

	tx := req.toDomain()
	tx.ID = transactionID
	inv, err := h.service.UpdateTransaction(r.Context(), invoiceID, tx)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, inv)
}

// Reopen handles the reopen cancelled invoice request.
// POST /invoices/{invoiceID}/reopen
func (h *InvoiceHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	invoiceID, ok := h.pathID(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.service.Reopen(r.Context(), invoiceID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, inv)
}

func (h *InvoiceHandler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrValidation)
		return 0, false
	}
	return id, true
}
