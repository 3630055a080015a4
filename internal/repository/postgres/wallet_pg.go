package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
)

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

const walletColumns = `id, user_id, currency, balance, is_locked, created_at, updated_at`

// Create inserts a new wallet account. The unique index on user_id turns a
// concurrent double-provision into ErrDuplicateEntry for the loser.
func (r *WalletRepository) Create(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount) error {
	query := `INSERT INTO wallets (user_id, currency, balance, is_locked, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		w.UserID, w.Currency, w.Balance, w.IsLocked, w.CreatedAt, w.UpdatedAt,
	).Scan(&w.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("wallet of user %d: %w", w.UserID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create wallet for user %d: %w", w.UserID, err)
	}
	return nil
}

// GetByUserID loads the wallet header without its ledger.
func (r *WalletRepository) GetByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.WalletAccount, error) {
	var w domain.WalletAccount
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	if err := q.GetContext(ctx, &w, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("wallet of user %d: %w", userID, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get wallet of user %d: %w", userID, err)
	}
	return &w, nil
}

// GetForUpdate loads the wallet header under a row-level exclusive lock.
func (r *WalletRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.WalletAccount, error) {
	var w domain.WalletAccount
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	if err := q.GetContext(ctx, &w, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("wallet of user %d: %w", userID, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock wallet of user %d: %w", userID, err)
	}
	return &w, nil
}

// Update persists the wallet header and appends new ledger entries. Entries
// already holding an id are left untouched: the ledger is append-only.
func (r *WalletRepository) Update(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount, meta audit.Metadata) error {
	query := `UPDATE wallets
              SET currency = $1, balance = $2, is_locked = $3, updated_at = $4,
                  updated_by = $5, source_addr = $6
              WHERE id = $7`
	res, err := q.ExecContext(ctx, query,
		w.Currency, w.Balance, w.IsLocked, w.UpdatedAt, meta.ActorUserID, meta.SourceAddr, w.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet %d: %w", w.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for wallet %d: %w", w.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("wallet %d: %w", w.ID, util.ErrNotFound)
	}

	for i := range w.Transactions {
		tx := &w.Transactions[i]
		if tx.ID != 0 {
			continue
		}
		tx.WalletID = w.ID
		insert := `INSERT INTO wallet_transactions (wallet_id, amount, reference, description, metadata,
                                                    invoice_id, payment_transaction_id, status,
                                                    occurred_at, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
		err := q.QueryRowContext(ctx, insert,
			tx.WalletID, tx.Amount, tx.Reference, tx.Description, tx.Metadata,
			tx.InvoiceID, tx.PaymentTransactionID, tx.Status, tx.OccurredAt, tx.CreatedAt,
		).Scan(&tx.ID)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry %q: %w", tx.Reference, err)
		}
	}
	return nil
}

// ListTransactions returns a page of the wallet's ledger, newest first,
// along with the total entry count.
func (r *WalletRepository) ListTransactions(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	transactions := []domain.WalletTransaction{}
	query := `SELECT id, wallet_id, amount, reference, description, metadata, invoice_id,
                     payment_transaction_id, status, occurred_at, created_at
              FROM wallet_transactions
              WHERE wallet_id = $1
              ORDER BY occurred_at DESC, id DESC
              LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &transactions, query, walletID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger of wallet %d: %w", walletID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, walletID); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger of wallet %d: %w", walletID, err)
	}
	return transactions, totalCount, nil
}
