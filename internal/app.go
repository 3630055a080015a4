// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "marketbill/internal/api"
	"marketbill/internal/api/handler"
	"marketbill/internal/config"
	"marketbill/internal/notify"
	"marketbill/internal/repository"
	"marketbill/internal/repository/postgres"
	"marketbill/internal/service"
	"marketbill/internal/util"
	"marketbill/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	InvoiceRepository    repository.InvoiceRepository
	WalletRepository     repository.WalletRepository
	WithdrawalRepository repository.WithdrawalRepository
	CatalogRepository    repository.CatalogRepository
	ShipmentRepository   repository.ShipmentRepository

	// Services
	InvoiceService      service.InvoiceService
	WalletService       service.WalletService
	WithdrawalService   service.WithdrawalService
	CancellationService service.CancellationService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Initialize Logger first so configuration failures are reported
	// through it
	util.InitLogger()
	app.Logger = util.GetLogger()

	// 2. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Initialize Repositories
	app.InvoiceRepository = postgres.NewInvoiceRepository()
	app.WalletRepository = postgres.NewWalletRepository()
	app.WithdrawalRepository = postgres.NewWithdrawalRepository()
	app.CatalogRepository = postgres.NewCatalogRepository()
	app.ShipmentRepository = postgres.NewShipmentRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	dispatcher := notify.NewLogDispatcher(app.Logger)

	app.InvoiceService = service.NewInvoiceService(
		app.DB, // DBTxBeginner
		app.DB, // DBExecutor for plain reads
		app.InvoiceRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.WalletService = service.NewWalletService(
		app.DB,
		app.DB,
		app.WalletRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.WithdrawalService = service.NewWithdrawalService(
		app.DB,
		app.DB,
		app.WithdrawalRepository,
		app.WalletRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.CancellationService = service.NewCancellationService(
		app.DB,
		app.DB,
		app.InvoiceRepository,
		app.WalletRepository,
		app.CatalogRepository,
		app.ShipmentRepository,
		dispatcher,
		app.Config.Billing,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 6. Initialize HTTP Handlers and Router
	invoiceHandler := handler.NewInvoiceHandler(app.InvoiceService, app.Logger)
	walletHandler := handler.NewWalletHandler(app.WalletService, app.Logger)
	withdrawalHandler := handler.NewWithdrawalHandler(app.WithdrawalService, app.Logger)
	cancellationHandler := handler.NewCancellationHandler(app.CancellationService, app.Logger)
	app.HTTPHandler = router.NewRouter(invoiceHandler, walletHandler, withdrawalHandler, cancellationHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
