package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
)

// WithdrawalRepository implements repository.WithdrawalRepository for
// PostgreSQL.
type WithdrawalRepository struct{}

// NewWithdrawalRepository creates a new WithdrawalRepository.
func NewWithdrawalRepository() repository.WithdrawalRepository {
	return &WithdrawalRepository{}
}

const withdrawalColumns = `id, type, seller_id, user_id, amount, currency, payout_details, description,
	admin_notes, status, processed_by_user_id, processed_at, wallet_transaction_id,
	created_at, updated_at`

// Create inserts a new withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, q repository.DBExecutor, req *domain.WithdrawalRequest, meta audit.Metadata) error {
	query := `INSERT INTO withdrawal_requests (type, seller_id, user_id, amount, currency, payout_details,
                                               description, admin_notes, status, created_at, updated_at,
                                               updated_by, source_addr)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
              RETURNING id`
	err := q.QueryRowContext(ctx, query,
		req.Type, req.SellerID, req.UserID, req.Amount, req.Currency, req.PayoutDetails,
		req.Description, req.AdminNotes, req.Status, req.CreatedAt, req.UpdatedAt,
		meta.ActorUserID, meta.SourceAddr,
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}
	return nil
}

// GetByID loads a withdrawal request.
func (r *WithdrawalRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1`
	if err := q.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("withdrawal request %d: %w", id, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get withdrawal request %d: %w", id, err)
	}
	return &req, nil
}

// GetForUpdate loads a withdrawal request under a row-level exclusive lock.
func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("withdrawal request %d: %w", id, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock withdrawal request %d: %w", id, err)
	}
	return &req, nil
}

// Update persists the mutable fields of a withdrawal request.
func (r *WithdrawalRepository) Update(ctx context.Context, q repository.DBExecutor, req *domain.WithdrawalRequest, meta audit.Metadata) error {
	query := `UPDATE withdrawal_requests
              SET amount = $1, currency = $2, payout_details = $3, description = $4, admin_notes = $5,
                  status = $6, processed_by_user_id = $7, processed_at = $8, wallet_transaction_id = $9,
                  updated_at = $10, updated_by = $11, source_addr = $12
              WHERE id = $13`
	res, err := q.ExecContext(ctx, query,
		req.Amount, req.Currency, req.PayoutDetails, req.Description, req.AdminNotes,
		req.Status, req.ProcessedByUserID, req.ProcessedAt, req.WalletTransactionID,
		req.UpdatedAt, meta.ActorUserID, meta.SourceAddr, req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request %d: %w", req.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for withdrawal request %d: %w", req.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("withdrawal request %d: %w", req.ID, util.ErrNotFound)
	}
	return nil
}

// SellerLifetimeRevenue sums the seller's settled product revenue across all
// paid invoices, net of per-item discounts and clamped at zero per item, the
// same way the aggregate computes a line item's net amount.
func (r *WithdrawalRepository) SellerLifetimeRevenue(ctx context.Context, q repository.DBExecutor, sellerID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(GREATEST(ROUND(ii.quantity * ii.unit_price, 2) - ii.discount_amount, 0)), 0)
              FROM invoice_items ii
              JOIN products p ON p.id = ii.reference_id
              JOIN invoices i ON i.id = ii.invoice_id
              WHERE ii.kind = 'PRODUCT'
                AND p.seller_id = $1
                AND i.status = 'PAID'
                AND i.deleted_at IS NULL`
	if err := q.GetContext(ctx, &total, query, sellerID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate revenue of seller %d: %w", sellerID, err)
	}
	return total, nil
}

// SellerWithdrawnTotal sums the seller's withdrawal requests that still
// consume availability; rejected and cancelled requests release theirs.
func (r *WithdrawalRepository) SellerWithdrawnTotal(ctx context.Context, q repository.DBExecutor, sellerID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0)
              FROM withdrawal_requests
              WHERE seller_id = $1
                AND type = 'SELLER_REVENUE'
                AND status NOT IN ('REJECTED', 'CANCELLED')`
	if err := q.GetContext(ctx, &total, query, sellerID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate withdrawals of seller %d: %w", sellerID, err)
	}
	return total, nil
}
