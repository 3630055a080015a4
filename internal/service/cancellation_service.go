package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"marketbill/internal/audit"
	"marketbill/internal/config"
	"marketbill/internal/domain"
	"marketbill/internal/notify"
	"marketbill/internal/repository"
	"marketbill/internal/util"
	"marketbill/pkg/db"
)

// CancellationService orchestrates order cancellation: the delivered guard,
// per-seller commission settlement, the buyer refund, and the audit
// invoice. Aggregates are mutated strictly one at a time; the up-front
// balance validation is what keeps the sequential debits all-or-nothing in
// practice.
type CancellationService interface {
	CancelOrder(ctx context.Context, invoiceID int64, reason string) (*CancellationResult, error)
}

// CancellationResult reports what the cancellation did. CancellationInvoice
// and the monetary fields are zero for unpaid orders, where no money moves.
type CancellationResult struct {
	Invoice             *domain.Invoice
	CancellationInvoice *domain.Invoice
	RefundedAmount      decimal.Decimal
	SellerDebits        map[int64]decimal.Decimal
	PlatformFee         decimal.Decimal
}

type cancellationService struct {
	txRunner
	dbExecutor   repository.DBExecutor
	invoiceRepo  repository.InvoiceRepository
	walletRepo   repository.WalletRepository
	catalogRepo  repository.CatalogRepository
	shipmentRepo repository.ShipmentRepository
	dispatcher   notify.Dispatcher
	billing      config.BillingConfig
	logger       *slog.Logger
}

// NewCancellationService creates a new CancellationService.
func NewCancellationService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	invoiceRepo repository.InvoiceRepository,
	walletRepo repository.WalletRepository,
	catalogRepo repository.CatalogRepository,
	shipmentRepo repository.ShipmentRepository,
	dispatcher notify.Dispatcher,
	billing config.BillingConfig,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) CancellationService {
	return &cancellationService{
		txRunner:     newTxRunner(dbBeginner, beginTx, commitTx, rollbackTx),
		dbExecutor:   dbExecutor,
		invoiceRepo:  invoiceRepo,
		walletRepo:   walletRepo,
		catalogRepo:  catalogRepo,
		shipmentRepo: shipmentRepo,
		dispatcher:   dispatcher,
		billing:      billing,
		logger:       logger,
	}
}

// errAlreadyCancelled aborts the saga when the row lock reveals the invoice
// was cancelled by a concurrent caller after our snapshot read. The loser
// must not settle: the winner owns the debits and the refund.
var errAlreadyCancelled = errors.New("invoice already cancelled")

// settlementPlan is the per-seller debit schedule of a cancellation,
// computed per line item with rounding applied before summation. Seller
// order is first-seen item order, kept for deterministic execution.
type settlementPlan struct {
	sellerOrder  []int64
	sellerDebits map[int64]decimal.Decimal
	platformFee  decimal.Decimal
}

// CancelOrder cancels the order behind the given invoice. Unpaid orders are
// simply marked cancelled; paid orders additionally settle seller and
// platform commissions and refund the buyer in full. Every failure before
// the first wallet debit leaves the system untouched.
func (s *cancellationService) CancelOrder(ctx context.Context, invoiceID int64, reason string) (*CancellationResult, error) {
	meta := audit.FromContext(ctx)

	inv, err := s.invoiceRepo.GetByID(ctx, s.dbExecutor, invoiceID, true)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, fmt.Errorf("order invoice %d: %w", invoiceID, util.ErrNotFound)
		}
		return nil, err
	}

	delivered, err := s.shipmentRepo.HasDeliveredShipment(ctx, s.dbExecutor, invoiceID)
	if err != nil {
		return nil, err
	}
	if delivered {
		return nil, fmt.Errorf("invoice %d: %w", invoiceID, util.ErrCannotCancelDelivered)
	}

	if inv.Status == domain.InvoiceStatusCancelled {
		return &CancellationResult{Invoice: inv}, nil
	}

	plan, err := s.buildSettlementPlan(ctx, inv)
	if err != nil {
		return nil, err
	}

	paid := inv.PaidAmount()
	if paid.IsZero() {
		cancelled, err := s.markCancelled(ctx, invoiceID, meta)
		if err != nil {
			if errors.Is(err, errAlreadyCancelled) {
				return s.concurrentlyCancelledResult(ctx, invoiceID)
			}
			return nil, err
		}
		s.notifyBuyer(ctx, inv, reason, false)
		return &CancellationResult{Invoice: cancelled, SellerDebits: map[int64]decimal.Decimal{}}, nil
	}

	if inv.UserID == nil {
		return nil, fmt.Errorf("%w: paid invoice %d has no owning user to refund", util.ErrValidation, invoiceID)
	}

	// All-or-nothing pre-validation: no wallet is touched unless every
	// debit is covered.
	if err := s.validateBalances(ctx, plan); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cancellationInv, err := s.buildCancellationInvoice(inv, plan, reason, now)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.markCancelled(ctx, invoiceID, meta)
	if err != nil {
		if errors.Is(err, errAlreadyCancelled) {
			return s.concurrentlyCancelledResult(ctx, invoiceID)
		}
		return nil, err
	}

	if err := runInTx(ctx, s.txRunner, func(q repository.DBExecutor) error {
		return s.invoiceRepo.Create(ctx, q, cancellationInv, meta)
	}); err != nil {
		return nil, err
	}

	for _, sellerID := range plan.sellerOrder {
		amount := plan.sellerDebits[sellerID]
		reference := fmt.Sprintf("cancellation-%d-seller-%d", cancellationInv.ID, sellerID)
		tx, err := s.debitWallet(ctx, sellerID, amount, inv.Currency, reference,
			fmt.Sprintf("settlement for cancelled invoice %s", inv.Number), cancellationInv.ID, meta)
		if err != nil {
			return nil, err
		}
		if err := recordSettlement(cancellationInv, amount, reference, tx); err != nil {
			return nil, err
		}
	}

	if plan.platformFee.Sign() > 0 {
		reference := fmt.Sprintf("cancellation-%d-platform", cancellationInv.ID)
		tx, err := s.debitWallet(ctx, s.billing.PlatformUserID, plan.platformFee, inv.Currency, reference,
			fmt.Sprintf("commission reversal for cancelled invoice %s", inv.Number), cancellationInv.ID, meta)
		if err != nil {
			return nil, err
		}
		if err := recordSettlement(cancellationInv, plan.platformFee, reference, tx); err != nil {
			return nil, err
		}
	}

	if err := s.refundBuyer(ctx, *inv.UserID, paid, inv.Currency, cancellationInv.ID, inv.Number, meta); err != nil {
		return nil, err
	}

	cancellationInv.EvaluateStatus(now)
	if err := runInTx(ctx, s.txRunner, func(q repository.DBExecutor) error {
		return s.invoiceRepo.Update(ctx, q, cancellationInv, meta)
	}); err != nil {
		return nil, err
	}

	s.notifyBuyer(ctx, inv, reason, true)
	for _, sellerID := range plan.sellerOrder {
		notify.BestEffort(ctx, s.dispatcher, s.logger,
			"Order cancelled",
			fmt.Sprintf("Invoice %s was cancelled; %s %s was debited from your wallet as settlement.",
				inv.Number, plan.sellerDebits[sellerID], inv.Currency),
			[]int64{sellerID})
	}

	return &CancellationResult{
		Invoice:             cancelled,
		CancellationInvoice: cancellationInv,
		RefundedAmount:      paid,
		SellerDebits:        plan.sellerDebits,
		PlatformFee:         plan.platformFee,
	}, nil
}

// buildSettlementPlan partitions product items by seller and applies the
// seller's commission policy per line item.
func (s *cancellationService) buildSettlementPlan(ctx context.Context, inv *domain.Invoice) (*settlementPlan, error) {
	plan := &settlementPlan{
		sellerDebits: map[int64]decimal.Decimal{},
		platformFee:  decimal.Zero,
	}
	settings := map[int64]*domain.CommissionSetting{}

	for _, item := range inv.Items {
		if item.Kind != domain.ItemKindProduct || item.ReferenceID == nil {
			continue
		}
		sellerID, err := s.catalogRepo.GetProductSeller(ctx, s.dbExecutor, *item.ReferenceID)
		if err != nil {
			return nil, err
		}
		setting, ok := settings[sellerID]
		if !ok {
			setting, err = s.catalogRepo.GetCommissionSetting(ctx, s.dbExecutor, sellerID)
			if err != nil {
				return nil, err
			}
			settings[sellerID] = setting
		}

		split := domain.SplitCommission(item.NetAmount(), *setting)
		if _, seen := plan.sellerDebits[sellerID]; !seen {
			plan.sellerOrder = append(plan.sellerOrder, sellerID)
			plan.sellerDebits[sellerID] = decimal.Zero
		}
		plan.sellerDebits[sellerID] = plan.sellerDebits[sellerID].Add(split.SellerShare)
		plan.platformFee = plan.platformFee.Add(split.PlatformFee)
	}
	return plan, nil
}

// validateBalances checks every seller wallet and the platform wallet
// against the plan before anything is mutated.
func (s *cancellationService) validateBalances(ctx context.Context, plan *settlementPlan) error {
	for _, sellerID := range plan.sellerOrder {
		wallet, err := s.walletRepo.GetByUserID(ctx, s.dbExecutor, sellerID)
		if err != nil {
			if util.IsError(err, util.ErrNotFound) {
				return fmt.Errorf("%w: seller %d has no wallet to settle from", util.ErrInsufficientBalance, sellerID)
			}
			return err
		}
		if wallet.Balance.LessThan(plan.sellerDebits[sellerID]) {
			return fmt.Errorf("%w: seller %d holds %s, settlement of %s required",
				util.ErrInsufficientBalance, sellerID, wallet.Balance, plan.sellerDebits[sellerID])
		}
	}

	if plan.platformFee.Sign() > 0 {
		wallet, err := s.walletRepo.GetByUserID(ctx, s.dbExecutor, s.billing.PlatformUserID)
		if err != nil {
			if util.IsError(err, util.ErrNotFound) {
				return fmt.Errorf("%w: platform wallet does not exist", util.ErrInsufficientBalance)
			}
			return err
		}
		if wallet.Balance.LessThan(plan.platformFee) {
			return fmt.Errorf("%w: platform wallet holds %s, commission reversal of %s required",
				util.ErrInsufficientBalance, wallet.Balance, plan.platformFee)
		}
	}
	return nil
}

// buildCancellationInvoice assembles the audit invoice recording each
// settlement debit as a line item.
func (s *cancellationService) buildCancellationInvoice(inv *domain.Invoice, plan *settlementPlan, reason string, now time.Time) (*domain.Invoice, error) {
	cinv, err := domain.NewInvoice(domain.NewInvoiceParams{
		Number:            generateInvoiceNumber("CNL", now),
		Title:             fmt.Sprintf("Cancellation of invoice %s", inv.Number),
		Description:       reason,
		UserID:            inv.UserID,
		Currency:          inv.Currency,
		IssueDate:         now,
		ExternalReference: inv.Number,
	})
	if err != nil {
		return nil, err
	}

	for _, sellerID := range plan.sellerOrder {
		if err := cinv.AddItem(domain.InvoiceItem{
			Name:      fmt.Sprintf("Seller %d settlement", sellerID),
			Kind:      domain.ItemKindService,
			Quantity:  1,
			UnitPrice: plan.sellerDebits[sellerID],
			Attributes: domain.Metadata{
				"seller_id": fmt.Sprintf("%d", sellerID),
			},
		}); err != nil {
			return nil, err
		}
	}
	if plan.platformFee.Sign() > 0 {
		if err := cinv.AddItem(domain.InvoiceItem{
			Name:      "Platform commission reversal",
			Kind:      domain.ItemKindService,
			Quantity:  1,
			UnitPrice: plan.platformFee,
		}); err != nil {
			return nil, err
		}
	}
	return cinv, nil
}

// markCancelled flips the invoice to cancelled under its row lock. A row
// already cancelled when the lock is acquired means a concurrent caller won
// the race; errAlreadyCancelled is returned so the caller exits without
// settling a second time.
func (s *cancellationService) markCancelled(ctx context.Context, invoiceID int64, meta audit.Metadata) (*domain.Invoice, error) {
	return mutateAggregate(ctx, s.txRunner, invoiceID,
		s.invoiceRepo.GetForUpdate,
		func(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice) error {
			return s.invoiceRepo.Update(ctx, q, inv, meta)
		},
		fmt.Sprintf("invoice %d", invoiceID),
		func(inv *domain.Invoice) error {
			if inv.Status == domain.InvoiceStatusCancelled {
				return fmt.Errorf("invoice %d: %w", invoiceID, errAlreadyCancelled)
			}
			inv.Cancel()
			return nil
		},
	)
}

// concurrentlyCancelledResult re-reads the invoice after losing the
// cancellation race and reports the idempotent outcome, mirroring the
// early exit on an already-cancelled snapshot.
func (s *cancellationService) concurrentlyCancelledResult(ctx context.Context, invoiceID int64) (*CancellationResult, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, s.dbExecutor, invoiceID, true)
	if err != nil {
		return nil, err
	}
	return &CancellationResult{Invoice: inv}, nil
}

// debitWallet performs one locked ledger debit. The wallet's domain Debit
// re-checks the balance under the row lock, so a plan that went stale since
// pre-validation fails here instead of driving the balance negative.
func (s *cancellationService) debitWallet(ctx context.Context, userID int64, amount decimal.Decimal, currency, reference, description string, cancellationInvoiceID int64, meta audit.Metadata) (*domain.WalletTransaction, error) {
	wallet, err := mutateAggregate(ctx, s.txRunner, userID,
		s.walletRepo.GetForUpdate,
		func(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount) error {
			return s.walletRepo.Update(ctx, q, w, meta)
		},
		fmt.Sprintf("wallet of user %d", userID),
		func(w *domain.WalletAccount) error {
			_, err := w.Debit(domain.LedgerEntry{
				Amount:      amount,
				Currency:    currency,
				Reference:   reference,
				Description: description,
				InvoiceID:   &cancellationInvoiceID,
			})
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	created := wallet.Transactions[len(wallet.Transactions)-1]
	return &created, nil
}

// recordSettlement mirrors a wallet debit as a succeeded payment
// transaction on the cancellation invoice.
func recordSettlement(cinv *domain.Invoice, amount decimal.Decimal, reference string, walletTx *domain.WalletTransaction) error {
	return cinv.AddTransaction(domain.PaymentTransaction{
		Amount:      amount,
		Method:      "wallet",
		Gateway:     "wallet",
		Status:      domain.TransactionStatusSucceeded,
		Reference:   reference,
		Description: fmt.Sprintf("wallet debit %d", walletTx.ID),
		Metadata: domain.Metadata{
			"wallet_transaction_id": fmt.Sprintf("%d", walletTx.ID),
		},
		OccurredAt: walletTx.OccurredAt,
	})
}

// refundBuyer credits the full paid amount back, provisioning the buyer's
// wallet when it does not exist yet.
func (s *cancellationService) refundBuyer(ctx context.Context, buyerID int64, amount decimal.Decimal, currency string, cancellationInvoiceID int64, invoiceNumber string, meta audit.Metadata) error {
	_, err := s.walletRepo.GetByUserID(ctx, s.dbExecutor, buyerID)
	if err != nil {
		if !util.IsError(err, util.ErrNotFound) {
			return err
		}
		wallet := domain.NewWalletAccount(buyerID, currency)
		if err := runInTx(ctx, s.txRunner, func(q repository.DBExecutor) error {
			return s.walletRepo.Create(ctx, q, wallet)
		}); err != nil && !util.IsError(err, util.ErrDuplicateEntry) {
			return fmt.Errorf("failed to provision refund wallet for user %d: %w", buyerID, err)
		}
		// A duplicate means a concurrent writer provisioned the wallet
		// first; the locked credit below proceeds against that row.
	}

	reference := fmt.Sprintf("cancellation-%d-refund", cancellationInvoiceID)
	_, err = mutateAggregate(ctx, s.txRunner, buyerID,
		s.walletRepo.GetForUpdate,
		func(ctx context.Context, q repository.DBExecutor, w *domain.WalletAccount) error {
			return s.walletRepo.Update(ctx, q, w, meta)
		},
		fmt.Sprintf("wallet of user %d", buyerID),
		func(w *domain.WalletAccount) error {
			_, err := w.Credit(domain.LedgerEntry{
				Amount:      amount,
				Currency:    currency,
				Reference:   reference,
				Description: fmt.Sprintf("refund for cancelled invoice %s", invoiceNumber),
				InvoiceID:   &cancellationInvoiceID,
			})
			return err
		},
	)
	return err
}

func (s *cancellationService) notifyBuyer(ctx context.Context, inv *domain.Invoice, reason string, refunded bool) {
	if inv.UserID == nil {
		return
	}
	message := fmt.Sprintf("Your order (invoice %s) has been cancelled.", inv.Number)
	if reason != "" {
		message += " Reason: " + reason
	}
	if refunded {
		message += fmt.Sprintf(" The paid amount of %s %s has been refunded to your wallet.",
			inv.PaidAmount(), inv.Currency)
	}
	notify.BestEffort(ctx, s.dispatcher, s.logger, "Order cancelled", message, []int64{*inv.UserID})
}
