package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketbill/internal/util"
)

// WalletTransaction is one entry in a wallet's append-only ledger. Amount is
// signed: credits are positive, debits negative. InvoiceID and
// PaymentTransactionID link the entry back to the billing aggregate for
// audit traceability.
type WalletTransaction struct {
	ID                   int64             `db:"id" json:"id"`
	WalletID             int64             `db:"wallet_id" json:"wallet_id"`
	Amount               decimal.Decimal   `db:"amount" json:"amount"`
	Reference            string            `db:"reference" json:"reference"`
	Description          string            `db:"description" json:"description"`
	Metadata             Metadata          `db:"metadata" json:"metadata,omitempty"`
	InvoiceID            *int64            `db:"invoice_id" json:"invoice_id,omitempty"`
	PaymentTransactionID *int64            `db:"payment_transaction_id" json:"payment_transaction_id,omitempty"`
	Status               TransactionStatus `db:"status" json:"status"`
	OccurredAt           time.Time         `db:"occurred_at" json:"occurred_at"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
}

// LedgerEntry carries the caller-supplied fields of a wallet credit or
// debit. Amount is always positive; Debit negates it internally.
type LedgerEntry struct {
	Amount               decimal.Decimal
	Currency             string
	Reference            string
	Description          string
	Metadata             Metadata
	InvoiceID            *int64
	PaymentTransactionID *int64
	Status               TransactionStatus
	OccurredAt           time.Time
}

// WalletAccount is the per-user ledger aggregate. Balance never goes
// negative; a locked wallet rejects debits and withdrawal requests but still
// accepts credits.
type WalletAccount struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Currency  string          `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	IsLocked  bool            `db:"is_locked" json:"is_locked"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`

	Transactions []WalletTransaction `json:"transactions,omitempty"`
}

// NewWalletAccount creates an unlocked wallet with a zero balance.
func NewWalletAccount(userID int64, currency string) *WalletAccount {
	now := time.Now().UTC()
	return &WalletAccount{
		UserID:    userID,
		Currency:  NormalizeCurrency(currency),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Credit appends a credit entry. The entry is recorded regardless of status
// (for audit), but only a succeeded entry increases the balance. Credits are
// accepted even on a locked wallet.
func (w *WalletAccount) Credit(e LedgerEntry) (*WalletTransaction, error) {
	tx, err := w.prepareEntry(e)
	if err != nil {
		return nil, err
	}
	if tx.Status == TransactionStatusSucceeded {
		w.Balance = Round2(w.Balance.Add(tx.Amount))
	}
	w.Transactions = append(w.Transactions, *tx)
	w.UpdatedAt = time.Now().UTC()
	return tx, nil
}

// Debit appends a debit entry. A succeeded debit requires an unlocked wallet
// with sufficient balance. The lock and balance guards apply only to
// succeeded debits: pending and failed entries move no money and are
// accepted even on a locked wallet, as audit records of the attempt.
func (w *WalletAccount) Debit(e LedgerEntry) (*WalletTransaction, error) {
	tx, err := w.prepareEntry(e)
	if err != nil {
		return nil, err
	}
	if tx.Status == TransactionStatusSucceeded {
		if w.IsLocked {
			return nil, fmt.Errorf("%w: wallet %d is locked", util.ErrInsufficientBalance, w.ID)
		}
		if w.Balance.LessThan(tx.Amount) {
			return nil, fmt.Errorf("%w: wallet %d holds %s, debit of %s requested",
				util.ErrInsufficientBalance, w.ID, w.Balance, tx.Amount)
		}
		w.Balance = Round2(w.Balance.Sub(tx.Amount))
	}
	tx.Amount = tx.Amount.Neg()
	w.Transactions = append(w.Transactions, *tx)
	w.UpdatedAt = time.Now().UTC()
	return tx, nil
}

// DerivedBalance recomputes the balance from succeeded ledger entries. Used
// to verify the stored running balance against the ledger.
func (w *WalletAccount) DerivedBalance() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range w.Transactions {
		if tx.Status == TransactionStatusSucceeded {
			total = total.Add(tx.Amount)
		}
	}
	return Round2(total)
}

func (w *WalletAccount) prepareEntry(e LedgerEntry) (*WalletTransaction, error) {
	if e.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: ledger amount must be positive", util.ErrValidation)
	}
	if e.Reference == "" {
		return nil, fmt.Errorf("%w: ledger reference is required", util.ErrValidation)
	}
	if NormalizeCurrency(e.Currency) != w.Currency {
		return nil, fmt.Errorf("%w: wallet %d holds %s, got %s",
			util.ErrCurrencyMismatch, w.ID, w.Currency, NormalizeCurrency(e.Currency))
	}
	status := e.Status
	if status == "" {
		status = TransactionStatusSucceeded
	}
	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return &WalletTransaction{
		WalletID:             w.ID,
		Amount:               Round2(e.Amount),
		Reference:            e.Reference,
		Description:          e.Description,
		Metadata:             e.Metadata,
		InvoiceID:            e.InvoiceID,
		PaymentTransactionID: e.PaymentTransactionID,
		Status:               status,
		OccurredAt:           occurredAt,
		CreatedAt:            time.Now().UTC(),
	}, nil
}
