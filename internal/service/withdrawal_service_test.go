package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"marketbill/internal/domain"
	"marketbill/internal/util"
)

func TestWithdrawalServiceCreate(t *testing.T) {
	sellerID := int64(21)
	userID := int64(34)

	t.Run("SellerRevenueWithinAvailability", func(t *testing.T) {
		ctx := context.Background()
		mockWithdrawalRepo := new(MockWithdrawalRepository)
		mockWalletRepo := new(MockWalletRepository)
		mockDBBeginner := new(MockDBBeginner)
		mockDBExecutor := new(MockDBExecutor)
		mockTxController := new(MockTxController)
		begin, commit, rollback := testTxFuncs(mockTxController)

		service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

		mockWithdrawalRepo.On("SellerLifetimeRevenue", ctx, mockDBExecutor, sellerID).
			Return(decimal.RequireFromString("900.00"), nil).Once()
		mockWithdrawalRepo.On("SellerWithdrawnTotal", ctx, mockDBExecutor, sellerID).
			Return(decimal.RequireFromString("300.00"), nil).Once()
		mockWithdrawalRepo.On("Create", ctx, mock.Anything, mock.AnythingOfType("*domain.WithdrawalRequest"), mock.Anything).
			Return(nil).Once()
		mockTxController.On("Commit").Return(nil).Once()
		mockTxController.On("Rollback").Return(nil).Maybe()

		req, err := service.Create(ctx, domain.NewWithdrawalParams{
			Type:          domain.WithdrawalTypeSellerRevenue,
			SellerID:      &sellerID,
			Amount:        decimal.RequireFromString("500.00"),
			Currency:      "USD",
			PayoutDetails: "IBAN DE00 1234",
		})

		assert.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusPending, req.Status)

		mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockWalletRepo, mockTxController)
	})

	t.Run("SellerRevenueExceedsAvailability", func(t *testing.T) {
		ctx := context.Background()
		mockWithdrawalRepo := new(MockWithdrawalRepository)
		mockWalletRepo := new(MockWalletRepository)
		mockDBBeginner := new(MockDBBeginner)
		mockDBExecutor := new(MockDBExecutor)
		mockTxController := new(MockTxController)
		begin, commit, rollback := testTxFuncs(mockTxController)

		service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

		mockWithdrawalRepo.On("SellerLifetimeRevenue", ctx, mockDBExecutor, sellerID).
			Return(decimal.RequireFromString("900.00"), nil).Once()
		mockWithdrawalRepo.On("SellerWithdrawnTotal", ctx, mockDBExecutor, sellerID).
			Return(decimal.RequireFromString("650.00"), nil).Once()

		req, err := service.Create(ctx, domain.NewWithdrawalParams{
			Type:          domain.WithdrawalTypeSellerRevenue,
			SellerID:      &sellerID,
			Amount:        decimal.RequireFromString("500.00"),
			Currency:      "USD",
			PayoutDetails: "IBAN DE00 1234",
		})

		assert.ErrorIs(t, err, util.ErrInsufficientBalance)
		assert.Nil(t, req)
		mockWithdrawalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockWalletRepo, mockTxController)
	})

	t.Run("WalletTypeChecksBalanceLockAndCurrency", func(t *testing.T) {
		ctx := context.Background()

		cases := []struct {
			name    string
			wallet  func() *domain.WalletAccount
			wantErr error
		}{
			{
				name: "locked wallet",
				wallet: func() *domain.WalletAccount {
					w := domain.NewWalletAccount(userID, "USD")
					w.Balance = decimal.RequireFromString("1000.00")
					w.IsLocked = true
					return w
				},
				wantErr: util.ErrValidation,
			},
			{
				name: "currency mismatch",
				wallet: func() *domain.WalletAccount {
					w := domain.NewWalletAccount(userID, "EUR")
					w.Balance = decimal.RequireFromString("1000.00")
					return w
				},
				wantErr: util.ErrCurrencyMismatch,
			},
			{
				name: "insufficient balance",
				wallet: func() *domain.WalletAccount {
					w := domain.NewWalletAccount(userID, "USD")
					w.Balance = decimal.RequireFromString("99.99")
					return w
				},
				wantErr: util.ErrInsufficientBalance,
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				mockWithdrawalRepo := new(MockWithdrawalRepository)
				mockWalletRepo := new(MockWalletRepository)
				mockDBBeginner := new(MockDBBeginner)
				mockDBExecutor := new(MockDBExecutor)
				mockTxController := new(MockTxController)
				begin, commit, rollback := testTxFuncs(mockTxController)

				service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

				mockWalletRepo.On("GetByUserID", ctx, mockDBExecutor, userID).Return(tc.wallet(), nil).Once()

				req, err := service.Create(ctx, domain.NewWithdrawalParams{
					Type:          domain.WithdrawalTypeWallet,
					UserID:        &userID,
					Amount:        decimal.RequireFromString("100.00"),
					Currency:      "USD",
					PayoutDetails: "paypal:buyer@example.com",
				})

				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, req)
				mockWithdrawalRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

				mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockWalletRepo, mockTxController)
			})
		}
	})

	t.Run("ValidationFailureSkipsAvailabilityChecks", func(t *testing.T) {
		ctx := context.Background()
		mockWithdrawalRepo := new(MockWithdrawalRepository)
		mockWalletRepo := new(MockWalletRepository)
		mockDBBeginner := new(MockDBBeginner)
		mockDBExecutor := new(MockDBExecutor)
		mockTxController := new(MockTxController)
		begin, commit, rollback := testTxFuncs(mockTxController)

		service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

		req, err := service.Create(ctx, domain.NewWithdrawalParams{
			Type:          domain.WithdrawalTypeWallet,
			Amount:        decimal.RequireFromString("100.00"),
			Currency:      "USD",
			PayoutDetails: "paypal:buyer@example.com",
		})

		assert.ErrorIs(t, err, util.ErrValidation)
		assert.Nil(t, req)
		mockWalletRepo.AssertNotCalled(t, "GetByUserID", mock.Anything, mock.Anything, mock.Anything)

		mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockWalletRepo, mockTxController)
	})
}

func TestWithdrawalServiceLifecycle(t *testing.T) {
	requestID := int64(88)
	sellerID := int64(21)

	pendingRequest := func(t *testing.T) *domain.WithdrawalRequest {
		req, err := domain.NewWithdrawalRequest(domain.NewWithdrawalParams{
			Type:          domain.WithdrawalTypeSellerRevenue,
			SellerID:      &sellerID,
			Amount:        decimal.RequireFromString("200.00"),
			Currency:      "USD",
			PayoutDetails: "IBAN DE00 1234",
		})
		if err != nil {
			t.Fatalf("building fixture: %v", err)
		}
		req.ID = requestID
		return req
	}

	t.Run("ApprovePending", func(t *testing.T) {
		ctx := context.Background()
		mockWithdrawalRepo := new(MockWithdrawalRepository)
		mockWalletRepo := new(MockWalletRepository)
		mockDBBeginner := new(MockDBBeginner)
		mockDBExecutor := new(MockDBExecutor)
		mockTxController := new(MockTxController)
		begin, commit, rollback := testTxFuncs(mockTxController)

		service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

		req := pendingRequest(t)
		mockWithdrawalRepo.On("GetForUpdate", ctx, mock.Anything, requestID).Return(req, nil).Once()
		mockWithdrawalRepo.On("Update", ctx, mock.Anything, req, mock.Anything).Return(nil).Once()
		mockTxController.On("Commit").Return(nil).Once()
		mockTxController.On("Rollback").Return(nil).Maybe()

		res, err := service.Approve(ctx, requestID, "looks good")

		assert.NoError(t, err)
		assert.Equal(t, domain.WithdrawalStatusApproved, res.Status)
		assert.Contains(t, res.AdminNotes, "looks good")

		mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockTxController)
	})

	t.Run("ProcessWalletTypeWithoutLedgerLinkFails", func(t *testing.T) {
		ctx := context.Background()
		mockWithdrawalRepo := new(MockWithdrawalRepository)
		mockWalletRepo := new(MockWalletRepository)
		mockDBBeginner := new(MockDBBeginner)
		mockDBExecutor := new(MockDBExecutor)
		mockTxController := new(MockTxController)
		begin, commit, rollback := testTxFuncs(mockTxController)

		service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

		userID := int64(34)
		req, err := domain.NewWithdrawalRequest(domain.NewWithdrawalParams{
			Type:          domain.WithdrawalTypeWallet,
			UserID:        &userID,
			Amount:        decimal.RequireFromString("50.00"),
			Currency:      "USD",
			PayoutDetails: "paypal:buyer@example.com",
		})
		assert.NoError(t, err)
		req.ID = requestID
		assert.NoError(t, req.Approve(""))

		mockWithdrawalRepo.On("GetForUpdate", ctx, mock.Anything, requestID).Return(req, nil).Once()
		mockTxController.On("Rollback").Return(nil).Once()

		res, err := service.Process(ctx, requestID, 1, nil)

		assert.ErrorIs(t, err, util.ErrValidation)
		assert.Nil(t, res)
		mockWithdrawalRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockTxController.AssertNotCalled(t, "Commit")

		mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockTxController)
	})

	t.Run("CancelProcessedFails", func(t *testing.T) {
		ctx := context.Background()
		mockWithdrawalRepo := new(MockWithdrawalRepository)
		mockWalletRepo := new(MockWalletRepository)
		mockDBBeginner := new(MockDBBeginner)
		mockDBExecutor := new(MockDBExecutor)
		mockTxController := new(MockTxController)
		begin, commit, rollback := testTxFuncs(mockTxController)

		service := NewWithdrawalService(mockDBBeginner, mockDBExecutor, mockWithdrawalRepo, mockWalletRepo, begin, commit, rollback)

		req := pendingRequest(t)
		assert.NoError(t, req.Approve(""))
		assert.NoError(t, req.Process(1, nil))

		mockWithdrawalRepo.On("GetForUpdate", ctx, mock.Anything, requestID).Return(req, nil).Once()
		mockTxController.On("Rollback").Return(nil).Once()

		res, err := service.Cancel(ctx, requestID)

		assert.ErrorIs(t, err, util.ErrInvalidTransition)
		assert.Nil(t, res)
		mockTxController.AssertNotCalled(t, "Commit")

		mock.AssertExpectationsForObjects(t, mockWithdrawalRepo, mockTxController)
	})
}
