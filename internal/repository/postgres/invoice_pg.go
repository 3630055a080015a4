package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"marketbill/internal/audit"
	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
)

// InvoiceRepository implements repository.InvoiceRepository for PostgreSQL.
type InvoiceRepository struct{}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository() repository.InvoiceRepository {
	return &InvoiceRepository{}
}

const invoiceColumns = `id, number, title, description, user_id, currency, status, issue_date,
	due_date, tax_amount, adjustment_amount, external_reference, created_at, updated_at`

// Create inserts the invoice header plus any items and transactions it
// already carries.
func (r *InvoiceRepository) Create(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice, meta audit.Metadata) error {
	query := `INSERT INTO invoices (number, title, description, user_id, currency, status, issue_date,
                                    due_date, tax_amount, adjustment_amount, external_reference,
                                    created_at, updated_at, updated_by, source_addr)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
              RETURNING id`
	err := q.QueryRowContext(ctx, query,
		inv.Number, inv.Title, inv.Description, inv.UserID, inv.Currency, inv.Status,
		inv.IssueDate, inv.DueDate, inv.TaxAmount, inv.AdjustmentAmount, inv.ExternalReference,
		inv.CreatedAt, inv.UpdatedAt, meta.ActorUserID, meta.SourceAddr,
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
		if err := r.insertItem(ctx, q, &inv.Items[i]); err != nil {
			return err
		}
	}
	for i := range inv.Transactions {
		inv.Transactions[i].InvoiceID = inv.ID
		if err := r.insertTransaction(ctx, q, &inv.Transactions[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads the invoice header, and its children when withDetails is set.
func (r *InvoiceRepository) GetByID(ctx context.Context, q repository.DBExecutor, id int64, withDetails bool) (*domain.Invoice, error) {
	var inv domain.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL`
	if err := q.GetContext(ctx, &inv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invoice %d: %w", id, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get invoice %d: %w", id, err)
	}
	if withDetails {
		if err := r.loadDetails(ctx, q, &inv); err != nil {
			return nil, err
		}
	}
	return &inv, nil
}

// GetForUpdate loads the full aggregate under a row-level exclusive lock.
func (r *InvoiceRepository) GetForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Invoice, error) {
	var inv domain.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err := q.GetContext(ctx, &inv, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invoice %d: %w", id, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", id, err)
	}
	if err := r.loadDetails(ctx, q, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update syncs the aggregate state back to the database. Items are replaced
// wholesale; transactions are inserted or updated, never deleted.
func (r *InvoiceRepository) Update(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice, meta audit.Metadata) error {
	query := `UPDATE invoices
              SET number = $1, title = $2, description = $3, user_id = $4, currency = $5,
                  status = $6, issue_date = $7, due_date = $8, tax_amount = $9,
                  adjustment_amount = $10, external_reference = $11, updated_at = $12,
                  updated_by = $13, source_addr = $14
              WHERE id = $15 AND deleted_at IS NULL`
	res, err := q.ExecContext(ctx, query,
		inv.Number, inv.Title, inv.Description, inv.UserID, inv.Currency, inv.Status,
		inv.IssueDate, inv.DueDate, inv.TaxAmount, inv.AdjustmentAmount, inv.ExternalReference,
		inv.UpdatedAt, meta.ActorUserID, meta.SourceAddr, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for invoice %d: %w", inv.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %d: %w", inv.ID, util.ErrNotFound)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear items of invoice %d: %w", inv.ID, err)
	}
	for i := range inv.Items {
		inv.Items[i].ID = 0
		inv.Items[i].InvoiceID = inv.ID
		if err := r.insertItem(ctx, q, &inv.Items[i]); err != nil {
			return err
		}
	}

	for i := range inv.Transactions {
		tx := &inv.Transactions[i]
		tx.InvoiceID = inv.ID
		if tx.ID == 0 {
			if err := r.insertTransaction(ctx, q, tx); err != nil {
				return err
			}
			continue
		}
		if err := r.updateTransaction(ctx, q, tx); err != nil {
			return err
		}
	}
	return nil
}

// ExistsByNumber reports whether an invoice with this number exists.
func (r *InvoiceRepository) ExistsByNumber(ctx context.Context, q repository.DBExecutor, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM invoices WHERE number = $1 AND deleted_at IS NULL)`
	if err := q.GetContext(ctx, &exists, query, number); err != nil {
		return false, fmt.Errorf("failed to check invoice number %q: %w", number, err)
	}
	return exists, nil
}

// ListByUser returns a page of the user's invoice headers, newest first.
func (r *InvoiceRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID int64, limit, offset int) ([]domain.Invoice, int64, error) {
	invoices := []domain.Invoice{}
	query := `SELECT ` + invoiceColumns + `
              FROM invoices
              WHERE user_id = $1 AND deleted_at IS NULL
              ORDER BY issue_date DESC, id DESC
              LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &invoices, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices of user %d: %w", userID, err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM invoices WHERE user_id = $1 AND deleted_at IS NULL`
	if err := q.GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices of user %d: %w", userID, err)
	}
	return invoices, total, nil
}

func (r *InvoiceRepository) loadDetails(ctx context.Context, q repository.DBExecutor, inv *domain.Invoice) error {
	items := []domain.InvoiceItem{}
	itemQuery := `SELECT id, invoice_id, name, kind, reference_id, quantity, unit_price, discount_amount, attributes
                  FROM invoice_items WHERE invoice_id = $1 ORDER BY id`
	if err := q.SelectContext(ctx, &items, itemQuery, inv.ID); err != nil {
		return fmt.Errorf("failed to load items of invoice %d: %w", inv.ID, err)
	}
	inv.Items = items

	txns := []domain.PaymentTransaction{}
	txnQuery := `SELECT id, invoice_id, amount, method, status, reference, gateway, description,
                        metadata, occurred_at, created_at
                 FROM payment_transactions WHERE invoice_id = $1 ORDER BY id`
	if err := q.SelectContext(ctx, &txns, txnQuery, inv.ID); err != nil {
		return fmt.Errorf("failed to load transactions of invoice %d: %w", inv.ID, err)
	}
	inv.Transactions = txns
	return nil
}

func (r *InvoiceRepository) insertItem(ctx context.Context, q repository.DBExecutor, it *domain.InvoiceItem) error {
	query := `INSERT INTO invoice_items (invoice_id, name, kind, reference_id, quantity, unit_price,
                                         discount_amount, attributes)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		it.InvoiceID, it.Name, it.Kind, it.ReferenceID, it.Quantity, it.UnitPrice,
		it.DiscountAmount, it.Attributes,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("failed to insert invoice item: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) insertTransaction(ctx context.Context, q repository.DBExecutor, tx *domain.PaymentTransaction) error {
	query := `INSERT INTO payment_transactions (invoice_id, amount, method, status, reference, gateway,
                                                description, metadata, occurred_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		tx.InvoiceID, tx.Amount, tx.Method, tx.Status, tx.Reference, tx.Gateway,
		tx.Description, tx.Metadata, tx.OccurredAt, tx.CreatedAt,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("failed to insert payment transaction: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) updateTransaction(ctx context.Context, q repository.DBExecutor, tx *domain.PaymentTransaction) error {
	query := `UPDATE payment_transactions
              SET amount = $1, method = $2, status = $3, reference = $4, gateway = $5,
                  description = $6, metadata = $7, occurred_at = $8
              WHERE id = $9 AND invoice_id = $10`
	if _, err := q.ExecContext(ctx, query,
		tx.Amount, tx.Method, tx.Status, tx.Reference, tx.Gateway,
		tx.Description, tx.Metadata, tx.OccurredAt, tx.ID, tx.InvoiceID,
	); err != nil {
		return fmt.Errorf("failed to update payment transaction %d: %w", tx.ID, err)
	}
	return nil
}
