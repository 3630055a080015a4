package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
	"marketbill/pkg/db"
)

// InvoiceService defines the invoice-aggregate business operations. Every
// mutation goes through the locked load-mutate-persist path.
type InvoiceService interface {
	Create(ctx context.Context, params domain.NewInvoiceParams, items []domain.InvoiceItem) (*domain.Invoice, error)
	Get(ctx context.Context, id int64, withDetails bool) (*domain.Invoice, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Invoice, int64, error)
	AddItem(ctx context.Context, invoiceID int64, item domain.InvoiceItem) (*domain.Invoice, error)
	RemoveItem(ctx context.Context, invoiceID, itemID int64) (*domain.Invoice, error)
	AddTransaction(ctx context.Context, invoiceID int64, tx domain.PaymentTransaction) (*domain.Invoice, error)
	UpdateTransaction(ctx context.Context, invoiceID int64, tx domain.PaymentTransaction) (*domain.Invoice, error)
	Reopen(ctx context.Context, invoiceID int64) (*domain.Invoice, error)
}

type invoiceService struct {
	txRunner
	dbExecutor  repository.DBExecutor
	invoiceRepo repository.InvoiceRepository
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	invoiceRepo repository.InvoiceRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) InvoiceService {
	return &invoiceService{
		txRunner:    newTxRunner(dbBeginner, beginTx, commitTx, rollbackTx),
		dbExecutor:  dbExecutor,
		invoiceRepo: invoiceRepo,
	}
}

// generateInvoiceNumber builds a human-readable unique number such as
// "INV-20260110-4F2A91C3".
func generateInvoiceNumber(prefix string, issueDate time.Time) string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, issueDate.Format("20060102"), fragment)
}

// Create validates and persists a new invoice with its initial items. A
// missing number is generated; an explicit number must be unused.
func (s *invoiceService) Create(ctx context.Context, params domain.NewInvoiceParams, items []domain.InvoiceItem) (*domain.Invoice, error) {
	if params.Number == "" {
		params.Number = generateInvoiceNumber("INV", params.IssueDate)
	}

	inv, err := domain.NewInvoice(params)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := inv.AddItem(item); err != nil {
			return nil, err
		}
	}

	meta := audit.FromContext(ctx)
	err = runInTx(ctx, s.txRunner, func(q repository.DBExecutor) error {
		exists, err := s.invoiceRepo.ExistsByNumber(ctx, q, inv.Number)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: invoice number %q is already taken", util.ErrDuplicateEntry, inv.Number)
		}
		return s.invoiceRepo.Create(ctx, q, inv, meta)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Get loads an invoice, with items and transactions when withDetails is set.
func (s *invoiceService) Get(ctx context.Context, id int64, withDetails bool) (*domain.Invoice, error) {
	return s.invoiceRepo.GetByID(ctx, s.dbExecutor, id, withDetails)
}

// ListByUser returns a page of the user's invoice headers, newest first.
func (s *invoiceService) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Invoice, int64, error) {
	return s.invoiceRepo.ListByUser(ctx, s.dbExecutor, userID, limit, offset)
}

// AddItem appends a line item to the invoice.
func (s *invoiceService) AddItem(ctx context.Context, invoiceID int64, item domain.InvoiceItem) (*domain.Invoice, error) {
	return s.mutateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.AddItem(item)
	})
}

// RemoveItem deletes a line item from the invoice.
func (s *invoiceService) RemoveItem(ctx context.Context, invoiceID, itemID int64) (*domain.Invoice, error) {
	return s.mutateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.RemoveItem(itemID)
	})
}

// AddTransaction records a payment attempt against the invoice.
func (s *invoiceService) AddTransaction(ctx context.Context, invoiceID int64, tx domain.PaymentTransaction) (*domain.Invoice, error) {
	return s.mutateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.AddTransaction(tx)
	})
}

// UpdateTransaction replaces an existing payment transaction.
func (s *invoiceService) UpdateTransaction(ctx context.Context, invoiceID int64, tx domain.PaymentTransaction) (*domain.Invoice, error) {
	return s.mutateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.UpdateTransaction(tx)
	})
}

// Reopen leaves the cancelled state and re-derives the invoice status.
func (s *invoiceService) Reopen(ctx context.Context, invoiceID int64) (*domain.Invoice, error) {
	return s.mutateInvoice(ctx, invoiceID, func(inv *domain.Invoice) error {
		return inv.Reopen()
	})
}

func (s *invoiceService) mutateInvoice(ctx context.Context, invoiceID int64, mutate func(*domain.Invoice) error) (*domain.Invoice, error) {
	meta := audit.FromContext(ctx)
	return mutateAggregate(ctx, s.txRunner, invoiceID,
		s.invoiceRepo.GetForUpdate,
		func(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice) error {
			return s.invoiceRepo.Update(ctx, q, inv, meta)
		},
		fmt.Sprintf("invoice %d", invoiceID),
		mutate,
	)
}
