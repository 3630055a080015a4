package repository

import (
	"context"

	"marketbill/internal/domain"
)

// CatalogRepository is the read-only slice of the marketplace catalog the
// billing core needs: which seller owns a product, and that seller's
// commission configuration.
type CatalogRepository interface {
	// GetProductSeller resolves a product id to its owning seller id.
	GetProductSeller(ctx context.Context, q DBExecutor, productID int64) (int64, error)
	// GetCommissionSetting returns the seller's commission split settings.
	GetCommissionSetting(ctx context.Context, q DBExecutor, sellerID int64) (*domain.CommissionSetting, error)
}

// ShipmentRepository exposes the delivered-state guard used by order
// cancellation.
type ShipmentRepository interface {
	// HasDeliveredShipment reports whether any shipment tracking linked to
	// the invoice has reached a delivered state.
	HasDeliveredShipment(ctx context.Context, q DBExecutor, invoiceID int64) (bool, error)
}
