package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketbill/internal/util"
)

// WithdrawalType selects the funding source of a payout request.
type WithdrawalType string

const (
	WithdrawalTypeSellerRevenue WithdrawalType = "SELLER_REVENUE"
	WithdrawalTypeWallet        WithdrawalType = "WALLET"
)

// WithdrawalStatus follows a small state machine:
// Pending -> {Approved, Rejected, Cancelled};
// Approved -> {Processed, Rejected, Cancelled};
// Processed, Rejected and Cancelled are terminal.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved  WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected  WithdrawalStatus = "REJECTED"
	WithdrawalStatusProcessed WithdrawalStatus = "PROCESSED"
	WithdrawalStatusCancelled WithdrawalStatus = "CANCELLED"
)

// WithdrawalRequest is a payout request gated by the approval workflow.
type WithdrawalRequest struct {
	ID                  int64            `db:"id" json:"id"`
	Type                WithdrawalType   `db:"type" json:"type"`
	SellerID            *int64           `db:"seller_id" json:"seller_id,omitempty"`
	UserID              *int64           `db:"user_id" json:"user_id,omitempty"`
	Amount              decimal.Decimal  `db:"amount" json:"amount"`
	Currency            string           `db:"currency" json:"currency"`
	PayoutDetails       string           `db:"payout_details" json:"payout_details"` // bank account / IBAN / card
	Description         string           `db:"description" json:"description"`
	AdminNotes          string           `db:"admin_notes" json:"admin_notes"`
	Status              WithdrawalStatus `db:"status" json:"status"`
	ProcessedByUserID   *int64           `db:"processed_by_user_id" json:"processed_by_user_id,omitempty"`
	ProcessedAt         *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
	WalletTransactionID *int64           `db:"wallet_transaction_id" json:"wallet_transaction_id,omitempty"`
	CreatedAt           time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// NewWithdrawalParams carries the creation-time fields of a request.
type NewWithdrawalParams struct {
	Type          WithdrawalType
	SellerID      *int64
	UserID        *int64
	Amount        decimal.Decimal
	Currency      string
	PayoutDetails string
	Description   string
}

// NewWithdrawalRequest validates the parameters and returns a Pending
// request. Balance availability is checked by the service, not here.
func NewWithdrawalRequest(p NewWithdrawalParams) (*WithdrawalRequest, error) {
	switch p.Type {
	case WithdrawalTypeSellerRevenue:
		if p.SellerID == nil {
			return nil, fmt.Errorf("%w: seller id is required for seller-revenue withdrawals", util.ErrValidation)
		}
		if p.UserID != nil {
			return nil, fmt.Errorf("%w: user id must not be set for seller-revenue withdrawals", util.ErrValidation)
		}
	case WithdrawalTypeWallet:
		if p.UserID == nil {
			return nil, fmt.Errorf("%w: user id is required for wallet withdrawals", util.ErrValidation)
		}
		if p.SellerID != nil {
			return nil, fmt.Errorf("%w: seller id must not be set for wallet withdrawals", util.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown withdrawal type %q", util.ErrValidation, p.Type)
	}
	if p.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: withdrawal amount must be positive", util.ErrValidation)
	}
	currency := NormalizeCurrency(p.Currency)
	if currency == "" {
		return nil, fmt.Errorf("%w: withdrawal currency is required", util.ErrValidation)
	}
	if p.PayoutDetails == "" {
		return nil, fmt.Errorf("%w: payout details are required", util.ErrValidation)
	}

	now := time.Now().UTC()
	return &WithdrawalRequest{
		Type:          p.Type,
		SellerID:      p.SellerID,
		UserID:        p.UserID,
		Amount:        Round2(p.Amount),
		Currency:      currency,
		PayoutDetails: p.PayoutDetails,
		Description:   p.Description,
		Status:        WithdrawalStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Approve moves a pending request to Approved.
func (r *WithdrawalRequest) Approve(notes string) error {
	if r.Status != WithdrawalStatusPending {
		return fmt.Errorf("%w: cannot approve a %s withdrawal request", util.ErrInvalidTransition, r.Status)
	}
	r.Status = WithdrawalStatusApproved
	r.appendNotes(notes)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Reject moves a pending or approved request to Rejected.
func (r *WithdrawalRequest) Reject(notes string) error {
	if r.Status != WithdrawalStatusPending && r.Status != WithdrawalStatusApproved {
		return fmt.Errorf("%w: cannot reject a %s withdrawal request", util.ErrInvalidTransition, r.Status)
	}
	r.Status = WithdrawalStatusRejected
	r.appendNotes(notes)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Process finalizes an approved request, recording who processed it and
// when. Wallet-type requests require the payout to already exist as a wallet
// debit, referenced by walletTransactionID.
func (r *WithdrawalRequest) Process(processedByUserID int64, walletTransactionID *int64) error {
	if r.Status != WithdrawalStatusApproved {
		return fmt.Errorf("%w: cannot process a %s withdrawal request", util.ErrInvalidTransition, r.Status)
	}
	if r.Type == WithdrawalTypeWallet && walletTransactionID == nil {
		return fmt.Errorf("%w: wallet withdrawals require the wallet debit transaction id", util.ErrValidation)
	}
	now := time.Now().UTC()
	r.Status = WithdrawalStatusProcessed
	r.ProcessedByUserID = &processedByUserID
	r.ProcessedAt = &now
	r.WalletTransactionID = walletTransactionID
	r.UpdatedAt = now
	return nil
}

// Cancel is allowed from any state except Processed and is idempotent on an
// already cancelled request.
func (r *WithdrawalRequest) Cancel() error {
	if r.Status == WithdrawalStatusProcessed {
		return fmt.Errorf("%w: a processed withdrawal request cannot be cancelled", util.ErrInvalidTransition)
	}
	if r.Status == WithdrawalStatusCancelled {
		return nil
	}
	r.Status = WithdrawalStatusCancelled
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *WithdrawalRequest) appendNotes(notes string) {
	if notes == "" {
		return
	}
	if r.AdminNotes != "" {
		r.AdminNotes += "\n"
	}
	r.AdminNotes += notes
}
