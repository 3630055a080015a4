package repository

import (
	"context"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
)

// InvoiceRepository defines the persistence contract for the invoice
// aggregate.
type InvoiceRepository interface {
	// Create inserts the invoice header plus any items and transactions it
	// already carries.
	Create(ctx context.Context, q DBExecutor, inv *domain.Invoice, meta audit.Metadata) error
	// GetByID loads the invoice; withDetails controls whether items and
	// transactions are fetched.
	GetByID(ctx context.Context, q DBExecutor, id int64, withDetails bool) (*domain.Invoice, error)
	// GetForUpdate loads the full aggregate under SELECT ... FOR UPDATE,
	// blocking concurrent mutators of the same invoice until the enclosing
	// transaction completes. Must be called inside a transaction.
	GetForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Invoice, error)
	// Update syncs the aggregate: header update, item delete-and-reinsert,
	// transaction insert (id 0) or update (id set). Payment transactions are
	// never deleted.
	Update(ctx context.Context, q DBExecutor, inv *domain.Invoice, meta audit.Metadata) error
	// ExistsByNumber reports whether an invoice with this number exists.
	ExistsByNumber(ctx context.Context, q DBExecutor, number string) (bool, error)
	// ListByUser returns a page of the user's invoice headers, newest
	// first, along with the total invoice count.
	ListByUser(ctx context.Context, q DBExecutor, userID int64, limit, offset int) ([]domain.Invoice, int64, error)
}
