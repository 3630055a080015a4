package service

import (
	"context"
	"fmt"
	"log/slog"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
	"marketbill/pkg/db"
)

// WalletService defines the ledger-level business operations. Wallets are
// addressed by owning user id: one wallet per user.
type WalletService interface {
	Credit(ctx context.Context, userID int64, entry domain.LedgerEntry) (*domain.WalletAccount, *domain.WalletTransaction, error)
	Debit(ctx context.Context, userID int64, entry domain.LedgerEntry) (*domain.WalletAccount, *domain.WalletTransaction, error)
	EnsureWallet(ctx context.Context, userID int64, currency string) (*domain.WalletAccount, error)
	GetBalance(ctx context.Context, userID int64) (*domain.WalletAccount, error)
	GetStatement(ctx context.Context, userID int64, limit, offset int) ([]domain.WalletTransaction, int64, error)
}

type walletService struct {
	txRunner
	dbExecutor repository.DBExecutor
	walletRepo repository.WalletRepository
	logger     *slog.Logger
}

// NewWalletService creates a new WalletService.
func NewWalletService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) WalletService {
	return &walletService{
		txRunner:   newTxRunner(dbBeginner, beginTx, commitTx, rollbackTx),
		dbExecutor: dbExecutor,
		walletRepo: walletRepo,
		logger:     logger,
	}
}

// Credit appends a credit entry to the user's wallet ledger.
func (s *walletService) Credit(ctx context.Context, userID int64, entry domain.LedgerEntry) (*domain.WalletAccount, *domain.WalletTransaction, error) {
	return s.applyEntry(ctx, userID, entry, func(w *domain.WalletAccount) error {
		_, err := w.Credit(entry)
		return err
	})
}

// Debit appends a debit entry to the user's wallet ledger. Fails with
// insufficient-balance when the wallet is locked or cannot cover the amount.
func (s *walletService) Debit(ctx context.Context, userID int64, entry domain.LedgerEntry) (*domain.WalletAccount, *domain.WalletTransaction, error) {
	return s.applyEntry(ctx, userID, entry, func(w *domain.WalletAccount) error {
		_, err := w.Debit(entry)
		return err
	})
}

func (s *walletService) applyEntry(ctx context.Context, userID int64, entry domain.LedgerEntry, apply func(*domain.WalletAccount) error) (*domain.WalletAccount, *domain.WalletTransaction, error) {
	meta := audit.FromContext(ctx)
	wallet, err := mutateAggregate(ctx, s.txRunner, userID,
		s.walletRepo.GetForUpdate,
		func(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount) error {
			return s.walletRepo.Update(ctx, q, w, meta)
		},
		fmt.Sprintf("wallet of user %d", userID),
		apply,
	)
	if err != nil {
		return nil, nil, err
	}
	created := wallet.Transactions[len(wallet.Transactions)-1]
	return wallet, &created, nil
}

// EnsureWallet returns the user's wallet, creating an empty one in the
// given currency when none exists yet.
func (s *walletService) EnsureWallet(ctx context.Context, userID int64, currency string) (*domain.WalletAccount, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, s.dbExecutor, userID)
	if err == nil {
		return wallet, nil
	}
	if !util.IsError(err, util.ErrNotFound) {
		return nil, err
	}

	wallet = domain.NewWalletAccount(userID, currency)
	if err := runInTx(ctx, s.txRunner, func(q repository.DBExecutor) error {
		return s.walletRepo.Create(ctx, q, wallet)
	}); err != nil {
		if util.IsError(err, util.ErrDuplicateEntry) {
			// Lost a provision race; the winner's row is the wallet.
			return s.walletRepo.GetByUserID(ctx, s.dbExecutor, userID)
		}
		return nil, fmt.Errorf("failed to provision wallet for user %d: %w", userID, err)
	}
	s.logger.InfoContext(ctx, "wallet provisioned", "user_id", userID, "currency", wallet.Currency)
	return wallet, nil
}

// GetBalance loads the wallet header of a user.
func (s *walletService) GetBalance(ctx context.Context, userID int64) (*domain.WalletAccount, error) {
	return s.walletRepo.GetByUserID(ctx, s.dbExecutor, userID)
}

// GetStatement returns a page of the user's ledger, newest first.
func (s *walletService) GetStatement(ctx context.Context, userID int64, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, 0, err
	}
	return s.walletRepo.ListTransactions(ctx, s.dbExecutor, wallet.ID, limit, offset)
}
