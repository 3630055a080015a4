// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"marketbill/internal/api/handler"
	"marketbill/internal/audit"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(
	invoiceHandler *handler.InvoiceHandler,
	walletHandler *handler.WalletHandler,
	withdrawalHandler *handler.WithdrawalHandler,
	cancellationHandler *handler.CancellationHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))
	r.Use(audit.Middleware) // stamps actor and source address for mutation audit columns

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Invoice API routes
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", invoiceHandler.Create)
		r.Get("/", invoiceHandler.List)
		r.Get("/{invoiceID}", invoiceHandler.Get)
		r.Post("/{invoiceID}/items", invoiceHandler.AddItem)
		r.Delete("/{invoiceID}/items/{itemID}", invoiceHandler.RemoveItem)
		r.Post("/{invoiceID}/transactions", invoiceHandler.AddTransaction)
		r.Put("/{invoiceID}/transactions/{transactionID}", invoiceHandler.UpdateTransaction)
		r.Post("/{invoiceID}/reopen", invoiceHandler.Reopen)
	})

	// Wallet API routes, keyed by owning user
	r.Route("/wallets", func(r chi.Router) {
		r.Post("/{userID}", walletHandler.Ensure)
		r.Post("/{userID}/credit", walletHandler.Credit)
		r.Post("/{userID}/debit", walletHandler.Debit)
		r.Get("/{userID}/balance", walletHandler.GetBalance)
		r.Get("/{userID}/transactions", walletHandler.GetStatement)
	})

	// Withdrawal workflow routes
	r.Route("/withdrawals", func(r chi.Router) {
		r.Post("/", withdrawalHandler.Create)
		r.Get("/{withdrawalID}", withdrawalHandler.Get)
		r.Post("/{withdrawalID}/approve", withdrawalHandler.Approve)
		r.Post("/{withdrawalID}/reject", withdrawalHandler.Reject)
		r.Post("/{withdrawalID}/process", withdrawalHandler.Process)
		r.Post("/{withdrawalID}/cancel", withdrawalHandler.Cancel)
	})

	// Order cancellation is a separate top-level endpoint as it spans
	// invoices and multiple wallets
	r.Post("/orders/{invoiceID}/cancel", cancellationHandler.CancelOrder)

	return r
}
