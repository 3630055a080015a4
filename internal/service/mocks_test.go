package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/pkg/db"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockInvoiceRepository is a mock implementation of repository.InvoiceRepository.
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice, meta audit.Metadata) error {
	args := m.Called(ctx, q, inv, meta)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64, withDetails bool) (*domain.Invoice, error) {
	args := m.Called(ctx, q, id, withDetails)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Invoice, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice, meta audit.Metadata) error {
	args := m.Called(ctx, q, inv, meta)
	return args.Error(0)
}

func (m *MockInvoiceRepository) ExistsByNumber(ctx context.Context, q repository.DBExecutor, number string) (bool, error) {
	args := m.Called(ctx, q, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockInvoiceRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID int64, limit, offset int) ([]domain.Invoice, int64, error) {
	args := m.Called(ctx, q, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.Invoice), args.Get(1).(int64), args.Error(2)
}

// MockWalletRepository is a mock implementation of repository.WalletRepository.
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) Create(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount) error {
	args := m.Called(ctx, q, w)
	return args.Error(0)
}

func (m *MockWalletRepository) GetByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.WalletAccount, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletAccount), args.Error(1)
}

func (m *MockWalletRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.WalletAccount, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletAccount), args.Error(1)
}

func (m *MockWalletRepository) Update(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount, meta audit.Metadata) error {
	args := m.Called(ctx, q, w, meta)
	return args.Error(0)
}

func (m *MockWalletRepository) ListTransactions(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.WalletTransaction, int64, error) {
	args := m.Called(ctx, q, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int64), args.Error(2)
}

// MockWithdrawalRepository is a mock implementation of repository.WithdrawalRepository.
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, q repository.DBExecutor, r *domain.WithdrawalRequest, meta audit.Metadata) error {
	args := m.Called(ctx, q, r, meta)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WithdrawalRequest, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.WithdrawalRequest, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WithdrawalRequest), args.Error(1)
}

func (m *MockWithdrawalRepository) Update(ctx context.Context, q repository.DBExecutor, r *domain.WithdrawalRequest, meta audit.Metadata) error {
	args := m.Called(ctx, q, r, meta)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) SellerLifetimeRevenue(ctx context.Context, q repository.DBExecutor, sellerID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, q, sellerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockWithdrawalRepository) SellerWithdrawnTotal(ctx context.Context, q repository.DBExecutor, sellerID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, q, sellerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockCatalogRepository is a mock implementation of repository.CatalogRepository.
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetProductSeller(ctx context.Context, q repository.DBExecutor, productID int64) (int64, error) {
	args := m.Called(ctx, q, productID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCatalogRepository) GetCommissionSetting(ctx context.Context, q repository.DBExecutor, sellerID int64) (*domain.CommissionSetting, error) {
	args := m.Called(ctx, q, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommissionSetting), args.Error(1)
}

// MockShipmentRepository is a mock implementation of repository.ShipmentRepository.
type MockShipmentRepository struct {
	mock.Mock
}

func (m *MockShipmentRepository) HasDeliveredShipment(ctx context.Context, q repository.DBExecutor, invoiceID int64) (bool, error) {
	args := m.Called(ctx, q, invoiceID)
	return args.Bool(0), args.Error(1)
}

// MockDispatcher is a mock implementation of notify.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Notify(ctx context.Context, title, message string, userIDs []int64) error {
	args := m.Called(ctx, title, message, userIDs)
	return args.Error(0)
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController. Embedding
// MockDBExecutor also satisfies repository.DBExecutor, which the services
// assert on the controller after beginTx.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// testTxFuncs returns begin/commit/rollback hooks routed to the given mock
// controller, so tests can assert transaction lifecycle per case.
func testTxFuncs(txController *MockTxController) (db.BeginTxFunc, db.CommitTxFunc, db.RollbackTxFunc) {
	begin := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return txController, nil
	}
	commit := func(tx db.TxController) error {
		return txController.Commit()
	}
	rollback := func(tx db.TxController) {
		_ = txController.Rollback()
	}
	return begin, commit, rollback
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var _ repository.DBExecutor = (*MockDBExecutor)(nil)
var _ repository.InvoiceRepository = (*MockInvoiceRepository)(nil)
var _ repository.WalletRepository = (*MockWalletRepository)(nil)
var _ repository.WithdrawalRepository = (*MockWithdrawalRepository)(nil)
var _ repository.CatalogRepository = (*MockCatalogRepository)(nil)
var _ repository.ShipmentRepository = (*MockShipmentRepository)(nil)
