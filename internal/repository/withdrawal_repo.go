package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
)

// WithdrawalRepository defines the persistence contract for withdrawal
// requests, including the live aggregation queries backing the
// seller-revenue availability rule. Availability is recomputed from history
// on every request instead of being kept as a running balance, so there is
// no second source of truth to drift.
type WithdrawalRepository interface {
	Create(ctx context.Context, q DBExecutor, r *domain.WithdrawalRequest, meta audit.Metadata) error
	GetByID(ctx context.Context, q DBExecutor, id int64) (*domain.WithdrawalRequest, error)
	// GetForUpdate loads the request under SELECT ... FOR UPDATE. Must be
	// called inside a transaction.
	GetForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, q DBExecutor, r *domain.WithdrawalRequest, meta audit.Metadata) error
	// SellerLifetimeRevenue sums the seller's settled product revenue across
	// all paid invoices.
	SellerLifetimeRevenue(ctx context.Context, q DBExecutor, sellerID int64) (decimal.Decimal, error)
	// SellerWithdrawnTotal sums the seller's withdrawal requests that are
	// still consuming availability (everything except rejected/cancelled).
	SellerWithdrawnTotal(ctx context.Context, q DBExecutor, sellerID int64) (decimal.Decimal, error)
}
