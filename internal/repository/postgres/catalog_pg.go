package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"marketbill/internal/domain"
	"marketbill/internal/repository"
	"marketbill/internal/util"
)

// CatalogRepository implements repository.CatalogRepository for PostgreSQL.
type CatalogRepository struct{}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository() repository.CatalogRepository {
	return &CatalogRepository{}
}

// GetProductSeller resolves a product id to its owning seller id.
func (r *CatalogRepository) GetProductSeller(ctx context.Context, q repository.DBExecutor, productID int64) (int64, error) {
	var sellerID int64
	query := `SELECT seller_id FROM products WHERE id = $1`
	if err := q.GetContext(ctx, &sellerID, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("product %d: %w", productID, util.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to resolve seller of product %d: %w", productID, err)
	}
	return sellerID, nil
}

// GetCommissionSetting returns the seller's commission split settings. A
// missing row is a configuration fault, not a recoverable business failure,
// so it is returned as a plain error rather than a typed one.
func (r *CatalogRepository) GetCommissionSetting(ctx context.Context, q repository.DBExecutor, sellerID int64) (*domain.CommissionSetting, error) {
	var s domain.CommissionSetting
	query := `SELECT seller_id, policy, seller_pct, platform_pct
              FROM commission_settings WHERE seller_id = $1`
	if err := q.GetContext(ctx, &s, query, sellerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("commission settings missing for seller %d", sellerID)
		}
		return nil, fmt.Errorf("failed to get commission settings of seller %d: %w", sellerID, err)
	}
	return &s, nil
}

// ShipmentRepository implements repository.ShipmentRepository for
// PostgreSQL.
type ShipmentRepository struct{}

// NewShipmentRepository creates a new ShipmentRepository.
func NewShipmentRepository() repository.ShipmentRepository {
	return &ShipmentRepository{}
}

// HasDeliveredShipment reports whether any shipment tracking linked to the
// invoice has reached a delivered state.
func (r *ShipmentRepository) HasDeliveredShipment(ctx context.Context, q repository.DBExecutor, invoiceID int64) (bool, error) {
	var delivered bool
	query := `SELECT EXISTS(
                  SELECT 1 FROM shipment_trackings
                  WHERE invoice_id = $1 AND status = 'DELIVERED')`
	if err := q.GetContext(ctx, &delivered, query, invoiceID); err != nil {
		return false, fmt.Errorf("failed to check shipments of invoice %d: %w", invoiceID, err)
	}
	return delivered, nil
}
