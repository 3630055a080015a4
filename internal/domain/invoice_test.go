package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbill/internal/util"
)

func testInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice(NewInvoiceParams{
		Title:     "Order #1042",
		Currency:  "irt ",
		IssueDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	inv.ID = 1
	return inv
}

func TestNewInvoiceValidation(t *testing.T) {
	issue := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	early := issue.Add(-24 * time.Hour)

	t.Run("MissingTitle", func(t *testing.T) {
		_, err := NewInvoice(NewInvoiceParams{Currency: "IRT", IssueDate: issue})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("MissingCurrency", func(t *testing.T) {
		_, err := NewInvoice(NewInvoiceParams{Title: "x", IssueDate: issue})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("DueBeforeIssue", func(t *testing.T) {
		_, err := NewInvoice(NewInvoiceParams{Title: "x", Currency: "IRT", IssueDate: issue, DueDate: &early})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("NegativeTax", func(t *testing.T) {
		_, err := NewInvoice(NewInvoiceParams{
			Title: "x", Currency: "IRT", IssueDate: issue,
			TaxAmount: decimal.NewFromInt(-1),
		})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("CurrencyNormalized", func(t *testing.T) {
		inv, err := NewInvoice(NewInvoiceParams{Title: "x", Currency: " irt", IssueDate: issue})
		require.NoError(t, err)
		assert.Equal(t, "IRT", inv.Currency)
		assert.Equal(t, InvoiceStatusPending, inv.Status)
	})
}

func TestInvoiceTotals(t *testing.T) {
	inv := testInvoice(t)
	require.NoError(t, inv.AddItem(InvoiceItem{
		Name: "Widget", Kind: ItemKindProduct,
		Quantity: 3, UnitPrice: decimal.NewFromFloat(100.555),
	}))
	require.NoError(t, inv.AddItem(InvoiceItem{
		Name: "Shipping", Kind: ItemKindService,
		Quantity: 1, UnitPrice: decimal.NewFromInt(50),
		DiscountAmount: decimal.NewFromInt(10),
	}))

	// The unit price is rounded half away from zero on entry: 100.555
	// becomes 100.56, so 3 x 100.56 = 301.68.
	assert.True(t, inv.Subtotal().Equal(decimal.NewFromFloat(351.68)), inv.Subtotal().String())
	assert.True(t, inv.DiscountTotal().Equal(decimal.NewFromInt(10)))
	assert.True(t, inv.GrandTotal().Equal(decimal.NewFromFloat(341.68)), inv.GrandTotal().String())
	assert.True(t, inv.OutstandingAmount().Equal(inv.GrandTotal()))
	assert.True(t, inv.GrandTotal().Sub(inv.PaidAmount()).Equal(inv.OutstandingAmount()))
}

func TestInvoiceStatusDerivation(t *testing.T) {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	newPaidableInvoice := func(t *testing.T) *Invoice {
		inv := testInvoice(t)
		require.NoError(t, inv.AddItem(InvoiceItem{
			Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(500000),
		}))
		return inv
	}

	t.Run("PendingWhenUnpaid", func(t *testing.T) {
		inv := newPaidableInvoice(t)
		inv.EvaluateStatus(now)
		assert.Equal(t, InvoiceStatusPending, inv.Status)
	})

	t.Run("PartiallyPaid", func(t *testing.T) {
		inv := newPaidableInvoice(t)
		require.NoError(t, inv.AddTransaction(PaymentTransaction{
			Amount: decimal.NewFromInt(200000), Method: "gateway", Reference: "pay-1",
			Status: TransactionStatusSucceeded,
		}))
		assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	})

	t.Run("PendingTransactionsDoNotPay", func(t *testing.T) {
		inv := newPaidableInvoice(t)
		require.NoError(t, inv.AddTransaction(PaymentTransaction{
			Amount: decimal.NewFromInt(500000), Method: "gateway", Reference: "pay-1",
			Status: TransactionStatusPending,
		}))
		assert.True(t, inv.PaidAmount().IsZero())
		assert.Equal(t, InvoiceStatusPending, inv.Status)
	})

	t.Run("Paid", func(t *testing.T) {
		inv := newPaidableInvoice(t)
		require.NoError(t, inv.AddTransaction(PaymentTransaction{
			Amount: decimal.NewFromInt(500000), Method: "gateway", Reference: "pay-1",
			Status: TransactionStatusSucceeded,
		}))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.OutstandingAmount().IsZero())
	})

	t.Run("OverdueOverridesPending", func(t *testing.T) {
		inv := newPaidableInvoice(t)
		due := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
		inv.DueDate = &due
		inv.EvaluateStatus(now)
		assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	})

	t.Run("PaidNeverOverdue", func(t *testing.T) {
		inv := newPaidableInvoice(t)
		due := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
		inv.DueDate = &due
		require.NoError(t, inv.AddTransaction(PaymentTransaction{
			Amount: decimal.NewFromInt(500000), Method: "gateway", Reference: "pay-1",
			Status: TransactionStatusSucceeded,
		}))
		inv.EvaluateStatus(now)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
	})
}

func TestInvoiceCancelSticky(t *testing.T) {
	inv := testInvoice(t)
	require.NoError(t, inv.AddItem(InvoiceItem{
		Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(100),
	}))

	inv.Cancel()
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)

	// Sticky: re-evaluation and payments do not leave Cancelled.
	inv.EvaluateStatus(time.Now().UTC())
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
	require.NoError(t, inv.AddTransaction(PaymentTransaction{
		Amount: decimal.NewFromInt(100), Method: "gateway", Reference: "pay-1",
		Status: TransactionStatusSucceeded,
	}))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)

	// Idempotent.
	inv.Cancel()
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)

	// Reopen re-derives: the payment above covers the total.
	require.NoError(t, inv.Reopen())
	assert.Equal(t, InvoiceStatusPaid, inv.Status)

	// Reopen on a non-cancelled invoice fails.
	assert.ErrorIs(t, inv.Reopen(), util.ErrInvalidTransition)
}

func TestInvoiceTransactionMutation(t *testing.T) {
	inv := testInvoice(t)
	require.NoError(t, inv.AddItem(InvoiceItem{
		Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(300),
	}))
	require.NoError(t, inv.AddTransaction(PaymentTransaction{
		Amount: decimal.NewFromInt(300), Method: "gateway", Reference: "pay-1",
		Status: TransactionStatusPending,
	}))

	t.Run("DuplicateReferenceRejected", func(t *testing.T) {
		err := inv.AddTransaction(PaymentTransaction{
			Amount: decimal.NewFromInt(300), Method: "gateway", Reference: "pay-1",
		})
		assert.ErrorIs(t, err, util.ErrDuplicateEntry)
	})

	t.Run("UpdateUnknownIDFails", func(t *testing.T) {
		err := inv.UpdateTransaction(PaymentTransaction{
			ID: 999, Amount: decimal.NewFromInt(300),
		})
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("UpdateMarksPaid", func(t *testing.T) {
		tx := inv.Transactions[0]
		tx.Status = TransactionStatusSucceeded
		require.NoError(t, inv.UpdateTransaction(tx))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
	})
}

func TestInvoiceRemoveItem(t *testing.T) {
	inv := testInvoice(t)
	require.NoError(t, inv.AddItem(InvoiceItem{
		ID: 7, Name: "Widget", Quantity: 1, UnitPrice: decimal.NewFromInt(100),
	}))

	assert.ErrorIs(t, inv.RemoveItem(8), util.ErrNotFound)
	require.NoError(t, inv.RemoveItem(7))
	assert.Empty(t, inv.Items)
	assert.True(t, inv.GrandTotal().IsZero())
}
