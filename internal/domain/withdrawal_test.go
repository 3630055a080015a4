package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketbill/internal/util"
)

func int64Ptr(v int64) *int64 { return &v }

func testWithdrawal(t *testing.T, typ WithdrawalType) *WithdrawalRequest {
	t.Helper()
	p := NewWithdrawalParams{
		Type:          typ,
		Amount:        decimal.NewFromInt(50000),
		Currency:      "IRT",
		PayoutDetails: "IR820540102680020817909002",
	}
	if typ == WithdrawalTypeSellerRevenue {
		p.SellerID = int64Ptr(7)
	} else {
		p.UserID = int64Ptr(42)
	}
	r, err := NewWithdrawalRequest(p)
	require.NoError(t, err)
	return r
}

func TestNewWithdrawalRequestValidation(t *testing.T) {
	t.Run("SellerRevenueRequiresSellerID", func(t *testing.T) {
		_, err := NewWithdrawalRequest(NewWithdrawalParams{
			Type: WithdrawalTypeSellerRevenue, UserID: int64Ptr(1),
			Amount: decimal.NewFromInt(10), Currency: "IRT", PayoutDetails: "x",
		})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("WalletRequiresUserID", func(t *testing.T) {
		_, err := NewWithdrawalRequest(NewWithdrawalParams{
			Type: WithdrawalTypeWallet, SellerID: int64Ptr(1),
			Amount: decimal.NewFromInt(10), Currency: "IRT", PayoutDetails: "x",
		})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("NonPositiveAmount", func(t *testing.T) {
		_, err := NewWithdrawalRequest(NewWithdrawalParams{
			Type: WithdrawalTypeWallet, UserID: int64Ptr(1),
			Amount: decimal.Zero, Currency: "IRT", PayoutDetails: "x",
		})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := NewWithdrawalRequest(NewWithdrawalParams{
			Type:   WithdrawalType("PAYPAL"),
			Amount: decimal.NewFromInt(10), Currency: "IRT", PayoutDetails: "x",
		})
		assert.ErrorIs(t, err, util.ErrValidation)
	})

	t.Run("CreatedPending", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeWallet)
		assert.Equal(t, WithdrawalStatusPending, r.Status)
	})
}

func TestWithdrawalTransitions(t *testing.T) {
	t.Run("ApproveOnlyFromPending", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeSellerRevenue)
		require.NoError(t, r.Approve("looks good"))
		assert.Equal(t, WithdrawalStatusApproved, r.Status)
		assert.Equal(t, "looks good", r.AdminNotes)

		// Second approval must fail.
		assert.ErrorIs(t, r.Approve("again"), util.ErrInvalidTransition)
	})

	t.Run("RejectFromPendingOrApproved", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeSellerRevenue)
		require.NoError(t, r.Reject("bad bank details"))
		assert.Equal(t, WithdrawalStatusRejected, r.Status)
		assert.ErrorIs(t, r.Reject("again"), util.ErrInvalidTransition)

		r2 := testWithdrawal(t, WithdrawalTypeSellerRevenue)
		require.NoError(t, r2.Approve(""))
		require.NoError(t, r2.Reject("changed our mind"))
		assert.Equal(t, WithdrawalStatusRejected, r2.Status)
	})

	t.Run("ProcessOnlyFromApproved", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeSellerRevenue)
		assert.ErrorIs(t, r.Process(9, nil), util.ErrInvalidTransition)

		require.NoError(t, r.Approve(""))
		require.NoError(t, r.Process(9, nil))
		assert.Equal(t, WithdrawalStatusProcessed, r.Status)
		require.NotNil(t, r.ProcessedByUserID)
		assert.Equal(t, int64(9), *r.ProcessedByUserID)
		assert.NotNil(t, r.ProcessedAt)
	})

	t.Run("WalletProcessRequiresLedgerLink", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeWallet)
		require.NoError(t, r.Approve(""))
		assert.ErrorIs(t, r.Process(9, nil), util.ErrValidation)

		require.NoError(t, r.Process(9, int64Ptr(314)))
		require.NotNil(t, r.WalletTransactionID)
		assert.Equal(t, int64(314), *r.WalletTransactionID)
	})

	t.Run("CancelRules", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeWallet)
		require.NoError(t, r.Cancel())
		assert.Equal(t, WithdrawalStatusCancelled, r.Status)
		// Idempotent.
		require.NoError(t, r.Cancel())

		processed := testWithdrawal(t, WithdrawalTypeSellerRevenue)
		require.NoError(t, processed.Approve(""))
		require.NoError(t, processed.Process(9, nil))
		assert.ErrorIs(t, processed.Cancel(), util.ErrInvalidTransition)
	})

	t.Run("NotesAccumulate", func(t *testing.T) {
		r := testWithdrawal(t, WithdrawalTypeSellerRevenue)
		require.NoError(t, r.Approve("first"))
		require.NoError(t, r.Reject("second"))
		assert.Equal(t, "first\nsecond", r.AdminNotes)
	})
}
