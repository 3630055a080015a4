package service

import (
	"context"
	"fmt"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
	"marketbill/pkg/db"
)

// WithdrawalService gates payout requests with the approval workflow.
// Availability is checked at creation time: from that point the requested
// amount is treated as reserved, so approval does not re-check.
type WithdrawalService interface {
	Create(ctx context.Context, params domain.NewWithdrawalParams) (*domain.WithdrawalRequest, error)
	Get(ctx context.Context, id int64) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, id int64, notes string) (*domain.WithdrawalRequest, error)
	Reject(ctx context.Context, id int64, notes string) (*domain.WithdrawalRequest, error)
	Process(ctx context.Context, id, processedByUserID int64, walletTransactionID *int64) (*domain.WithdrawalRequest, error)
	Cancel(ctx context.Context, id int64) (*domain.WithdrawalRequest, error)
}

type withdrawalService struct {
	txRunner
	dbExecutor     repository.DBExecutor
	withdrawalRepo repository.WithdrawalRepository
	walletRepo     repository.WalletRepository
}

// NewWithdrawalService creates a new WithdrawalService.
func NewWithdrawalService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	withdrawalRepo repository.WithdrawalRepository,
	walletRepo repository.WalletRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) WithdrawalService {
	return &withdrawalService{
		txRunner:       newTxRunner(dbBeginner, beginTx, commitTx, rollbackTx),
		dbExecutor:     dbExecutor,
		withdrawalRepo: withdrawalRepo,
		walletRepo:     walletRepo,
	}
}

// Create validates the request and its funding-source availability, then
// persists it in the Pending state.
func (s *withdrawalService) Create(ctx context.Context, params domain.NewWithdrawalParams) (*domain.WithdrawalRequest, error) {
	req, err := domain.NewWithdrawalRequest(params)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case domain.WithdrawalTypeSellerRevenue:
		if err := s.checkSellerAvailability(ctx, req); err != nil {
			return nil, err
		}
	case domain.WithdrawalTypeWallet:
		if err := s.checkWalletAvailability(ctx, req); err != nil {
			return nil, err
		}
	}

	meta := audit.FromContext(ctx)
	if err := runInTx(ctx, s.txRunner, func(q repository.DBExecutor) error {
		return s.withdrawalRepo.Create(ctx, q, req, meta)
	}); err != nil {
		return nil, err
	}
	return req, nil
}

// checkSellerAvailability recomputes the seller's available amount from
// history: lifetime settled revenue minus everything already requested that
// is not rejected or cancelled.
func (s *withdrawalService) checkSellerAvailability(ctx context.Context, req *domain.WithdrawalRequest) error {
	revenue, err := s.withdrawalRepo.SellerLifetimeRevenue(ctx, s.dbExecutor, *req.SellerID)
	if err != nil {
		return err
	}
	withdrawn, err := s.withdrawalRepo.SellerWithdrawnTotal(ctx, s.dbExecutor, *req.SellerID)
	if err != nil {
		return err
	}
	available := revenue.Sub(withdrawn)
	if available.LessThan(req.Amount) {
		return fmt.Errorf("%w: seller %d has %s available, %s requested",
			util.ErrInsufficientBalance, *req.SellerID, available, req.Amount)
	}
	return nil
}

// checkWalletAvailability requires an existing, unlocked wallet in the
// requested currency covering the amount.
func (s *withdrawalService) checkWalletAvailability(ctx context.Context, req *domain.WithdrawalRequest) error {
	wallet, err := s.walletRepo.GetByUserID(ctx, s.dbExecutor, *req.UserID)
	if err != nil {
		return err
	}
	if wallet.IsLocked {
		return fmt.Errorf("%w: wallet of user %d is locked", util.ErrValidation, *req.UserID)
	}
	if wallet.Currency != req.Currency {
		return fmt.Errorf("%w: wallet holds %s, withdrawal requested in %s",
			util.ErrCurrencyMismatch, wallet.Currency, req.Currency)
	}
	if wallet.Balance.LessThan(req.Amount) {
		return fmt.Errorf("%w: wallet of user %d holds %s, %s requested",
			util.ErrInsufficientBalance, *req.UserID, wallet.Balance, req.Amount)
	}
	return nil
}

// Get loads a withdrawal request.
func (s *withdrawalService) Get(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	return s.withdrawalRepo.GetByID(ctx, s.dbExecutor, id)
}

// Approve moves a pending request to Approved.
func (s *withdrawalService) Approve(ctx context.Context, id int64, notes string) (*domain.WithdrawalRequest, error) {
	return s.mutateRequest(ctx, id, func(r *domain.WithdrawalRequest) error {
		return r.Approve(notes)
	})
}

// Reject moves a pending or approved request to Rejected, releasing its
// reserved availability.
func (s *withdrawalService) Reject(ctx context.Context, id int64, notes string) (*domain.WithdrawalRequest, error) {
	return s.mutateRequest(ctx, id, func(r *domain.WithdrawalRequest) error {
		return r.Reject(notes)
	})
}

// Process finalizes an approved request.
func (s *withdrawalService) Process(ctx context.Context, id, processedByUserID int64, walletTransactionID *int64) (*domain.WithdrawalRequest, error) {
	return s.mutateRequest(ctx, id, func(r *domain.WithdrawalRequest) error {
		return r.Process(processedByUserID, walletTransactionID)
	})
}

// Cancel cancels a request unless it is already processed.
func (s *withdrawalService) Cancel(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	return s.mutateRequest(ctx, id, func(r *domain.WithdrawalRequest) error {
		return r.Cancel()
	})
}

func (s *withdrawalService) mutateRequest(ctx context.Context, id int64, mutate func(*domain.WithdrawalRequest) error) (*domain.WithdrawalRequest, error) {
	meta := audit.FromContext(ctx)
	return mutateAggregate(ctx, s.txRunner, id,
		s.withdrawalRepo.GetForUpdate,
		func(ctx context.Context, q repository.DBExecutor, r *domain.WithdrawalRequest) error {
			return s.withdrawalRepo.Update(ctx, q, r, meta)
		},
		fmt.Sprintf("withdrawal request %d", id),
		mutate,
	)
}
