package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketbill/internal/util"
)

// InvoiceStatus is derived from totals and payments; it is never set
// directly except for the sticky Cancelled state.
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// ItemKind classifies an invoice line item.
type ItemKind string

const (
	ItemKindProduct ItemKind = "PRODUCT"
	ItemKindService ItemKind = "SERVICE"
)

// InvoiceItem is a line item owned by an Invoice.
type InvoiceItem struct {
	ID             int64           `db:"id" json:"id"`
	InvoiceID      int64           `db:"invoice_id" json:"invoice_id"`
	Name           string          `db:"name" json:"name"`
	Kind           ItemKind        `db:"kind" json:"kind"`
	ReferenceID    *int64          `db:"reference_id" json:"reference_id,omitempty"` // product id for PRODUCT items
	Quantity       int64           `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Attributes     Metadata        `db:"attributes" json:"attributes,omitempty"`
}

// Subtotal is quantity x unit price, rounded.
func (it InvoiceItem) Subtotal() decimal.Decimal {
	return Round2(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
}

// NetAmount is the item subtotal minus its discount, clamped at zero.
func (it InvoiceItem) NetAmount() decimal.Decimal {
	return MaxZero(Round2(it.Subtotal().Sub(it.DiscountAmount)))
}

// PaymentTransaction is a payment attempt recorded against an Invoice.
// Only succeeded transactions count toward PaidAmount.
type PaymentTransaction struct {
	ID          int64             `db:"id" json:"id"`
	InvoiceID   int64             `db:"invoice_id" json:"invoice_id"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"`
	Method      string            `db:"method" json:"method"`
	Status      TransactionStatus `db:"status" json:"status"`
	Reference   string            `db:"reference" json:"reference"` // unique per method
	Gateway     string            `db:"gateway" json:"gateway"`
	Description string            `db:"description" json:"description"`
	Metadata    Metadata          `db:"metadata" json:"metadata,omitempty"`
	OccurredAt  time.Time         `db:"occurred_at" json:"occurred_at"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Invoice is the billing aggregate root. Items and transactions are owned by
// the invoice and mutated only through its methods, each of which re-derives
// the status.
type Invoice struct {
	ID                int64           `db:"id" json:"id"`
	Number            string          `db:"number" json:"number"`
	Title             string          `db:"title" json:"title"`
	Description       string          `db:"description" json:"description"`
	UserID            *int64          `db:"user_id" json:"user_id,omitempty"`
	Currency          string          `db:"currency" json:"currency"`
	Status            InvoiceStatus   `db:"status" json:"status"`
	IssueDate         time.Time       `db:"issue_date" json:"issue_date"`
	DueDate           *time.Time      `db:"due_date" json:"due_date,omitempty"`
	TaxAmount         decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	AdjustmentAmount  decimal.Decimal `db:"adjustment_amount" json:"adjustment_amount"`
	ExternalReference string          `db:"external_reference" json:"external_reference"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`

	Items        []InvoiceItem        `json:"items"`
	Transactions []PaymentTransaction `json:"transactions"`
}

// NewInvoiceParams carries the creation-time fields of an Invoice.
type NewInvoiceParams struct {
	Number            string
	Title             string
	Description       string
	UserID            *int64
	Currency          string
	IssueDate         time.Time
	DueDate           *time.Time
	TaxAmount         decimal.Decimal
	AdjustmentAmount  decimal.Decimal
	ExternalReference string
}

// NewInvoice validates the parameters and returns a Pending invoice.
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: invoice title is required", util.ErrValidation)
	}
	currency := NormalizeCurrency(p.Currency)
	if currency == "" {
		return nil, fmt.Errorf("%w: invoice currency is required", util.ErrValidation)
	}
	if p.IssueDate.IsZero() {
		return nil, fmt.Errorf("%w: invoice issue date is required", util.ErrValidation)
	}
	if p.DueDate != nil && p.DueDate.Before(p.IssueDate) {
		return nil, fmt.Errorf("%w: due date must not precede issue date", util.ErrValidation)
	}
	tax := Round2(p.TaxAmount)
	adjustment := Round2(p.AdjustmentAmount)
	if tax.IsNegative() {
		return nil, fmt.Errorf("%w: tax amount must not be negative", util.ErrValidation)
	}
	if adjustment.IsNegative() {
		return nil, fmt.Errorf("%w: adjustment amount must not be negative", util.ErrValidation)
	}

	now := time.Now().UTC()
	return &Invoice{
		Number:            p.Number,
		Title:             p.Title,
		Description:       p.Description,
		UserID:            p.UserID,
		Currency:          currency,
		Status:            InvoiceStatusPending,
		IssueDate:         p.IssueDate,
		DueDate:           p.DueDate,
		TaxAmount:         tax,
		AdjustmentAmount:  adjustment,
		ExternalReference: p.ExternalReference,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Subtotal sums the line item subtotals.
func (inv *Invoice) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// DiscountTotal sums the line item discounts.
func (inv *Invoice) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.DiscountAmount)
	}
	return total
}

// GrandTotal = max(0, round(Subtotal - DiscountTotal) + Tax + Adjustment).
func (inv *Invoice) GrandTotal() decimal.Decimal {
	net := Round2(inv.Subtotal().Sub(inv.DiscountTotal()))
	return MaxZero(net.Add(inv.TaxAmount).Add(inv.AdjustmentAmount))
}

// PaidAmount sums succeeded payment transactions.
func (inv *Invoice) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range inv.Transactions {
		if tx.Status == TransactionStatusSucceeded {
			total = total.Add(tx.Amount)
		}
	}
	return Round2(total)
}

// OutstandingAmount = max(0, GrandTotal - PaidAmount).
func (inv *Invoice) OutstandingAmount() decimal.Decimal {
	return MaxZero(inv.GrandTotal().Sub(inv.PaidAmount()))
}

// AddItem appends a line item and re-derives the status.
func (inv *Invoice) AddItem(item InvoiceItem) error {
	if item.Name == "" {
		return fmt.Errorf("%w: item name is required", util.ErrValidation)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: item quantity must be positive", util.ErrValidation)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item unit price must not be negative", util.ErrValidation)
	}
	if item.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: item discount must not be negative", util.ErrValidation)
	}
	if item.Kind == "" {
		item.Kind = ItemKindProduct
	}
	item.InvoiceID = inv.ID
	item.UnitPrice = Round2(item.UnitPrice)
	item.DiscountAmount = Round2(item.DiscountAmount)
	inv.Items = append(inv.Items, item)
	inv.touch()
	return nil
}

// RemoveItem deletes a line item by id and re-derives the status.
func (inv *Invoice) RemoveItem(itemID int64) error {
	for i, it := range inv.Items {
		if it.ID == itemID {
			inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
			inv.touch()
			return nil
		}
	}
	return fmt.Errorf("invoice item %d: %w", itemID, util.ErrNotFound)
}

// ResetItems replaces all line items at once.
func (inv *Invoice) ResetItems(items []InvoiceItem) error {
	inv.Items = nil
	for _, it := range items {
		if err := inv.AddItem(it); err != nil {
			return err
		}
	}
	inv.touch()
	return nil
}

// AddTransaction records a payment attempt and re-derives the status.
func (inv *Invoice) AddTransaction(tx PaymentTransaction) error {
	if tx.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: transaction amount must be positive", util.ErrValidation)
	}
	if tx.Reference == "" {
		return fmt.Errorf("%w: transaction reference is required", util.ErrValidation)
	}
	for _, existing := range inv.Transactions {
		if existing.Method == tx.Method && existing.Reference == tx.Reference {
			return fmt.Errorf("%w: transaction reference %q already recorded for method %q",
				util.ErrDuplicateEntry, tx.Reference, tx.Method)
		}
	}
	if tx.Status == "" {
		tx.Status = TransactionStatusPending
	}
	if tx.OccurredAt.IsZero() {
		tx.OccurredAt = time.Now().UTC()
	}
	tx.InvoiceID = inv.ID
	tx.Amount = Round2(tx.Amount)
	tx.CreatedAt = time.Now().UTC()
	inv.Transactions = append(inv.Transactions, tx)
	inv.touch()
	return nil
}

// UpdateTransaction replaces an existing payment transaction by id and
// re-derives the status. Fails if the id is unknown.
func (inv *Invoice) UpdateTransaction(tx PaymentTransaction) error {
	if tx.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: transaction amount must be positive", util.ErrValidation)
	}
	for i, existing := range inv.Transactions {
		if existing.ID == tx.ID {
			tx.InvoiceID = inv.ID
			tx.Amount = Round2(tx.Amount)
			tx.CreatedAt = existing.CreatedAt
			inv.Transactions[i] = tx
			inv.touch()
			return nil
		}
	}
	return fmt.Errorf("payment transaction %d: %w", tx.ID, util.ErrNotFound)
}

// EvaluateStatus re-derives the invoice status at the given reference time.
// Cancelled is sticky: once cancelled, only Reopen leaves the state.
func (inv *Invoice) EvaluateStatus(now time.Time) {
	if inv.Status == InvoiceStatusCancelled {
		return
	}
	switch {
	case inv.OutstandingAmount().Sign() <= 0:
		inv.Status = InvoiceStatusPaid
	case inv.PaidAmount().Sign() > 0:
		inv.Status = InvoiceStatusPartiallyPaid
	default:
		inv.Status = InvoiceStatusPending
	}
	if (inv.Status == InvoiceStatusPending || inv.Status == InvoiceStatusPartiallyPaid) &&
		inv.DueDate != nil && inv.DueDate.Before(now) {
		inv.Status = InvoiceStatusOverdue
	}
}

// Cancel forces the sticky Cancelled state. Idempotent.
func (inv *Invoice) Cancel() {
	if inv.Status == InvoiceStatusCancelled {
		return
	}
	inv.Status = InvoiceStatusCancelled
	inv.UpdatedAt = time.Now().UTC()
}

// Reopen leaves the Cancelled state and re-derives the status. Fails when
// the invoice is not cancelled.
func (inv *Invoice) Reopen() error {
	if inv.Status != InvoiceStatusCancelled {
		return fmt.Errorf("%w: invoice %d is not cancelled", util.ErrInvalidTransition, inv.ID)
	}
	inv.Status = InvoiceStatusPending
	inv.touch()
	return nil
}

// touch bumps UpdatedAt and re-derives the status.
func (inv *Invoice) touch() {
	now := time.Now().UTC()
	inv.UpdatedAt = now
	inv.EvaluateStatus(now)
}
