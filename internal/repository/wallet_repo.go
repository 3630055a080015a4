package repository

import (
	"context"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
)

// WalletRepository defines the persistence contract for the wallet ledger.
// Wallets are keyed by owning user: one wallet per user.
type WalletRepository interface {
	// Create inserts a new wallet account.
	Create(ctx context.Context, q DBExecutor, w *domain.WalletAccount) error
	// GetByUserID loads the wallet header without its ledger.
	GetByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.WalletAccount, error)
	// GetForUpdate loads the wallet header under SELECT ... FOR UPDATE. Must
	// be called inside a transaction.
	GetForUpdate(ctx context.Context, q DBExecutor, userID int64) (*domain.WalletAccount, error)
	// Update persists the wallet header and appends any ledger entries with
	// a zero id. Existing ledger entries are immutable.
	Update(ctx context.Context, q DBExecutor, w *domain.WalletAccount, meta audit.Metadata) error
	// ListTransactions returns a page of the wallet's ledger, newest first,
	// along with the total entry count.
	ListTransactions(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, int64, error)
}
