package domain

import (
	"github.com/shopspring/decimal"
)

// CommissionPolicy selects how the platform's cut relates to the seller's
// configured percentage.
type CommissionPolicy string

const (
	// CommissionDeductFromSeller subtracts the platform percentage from the
	// seller's share.
	CommissionDeductFromSeller CommissionPolicy = "DEDUCT_FROM_SELLER"
	// CommissionAddOnTop gives the seller their percentage and the platform
	// everything that remains.
	CommissionAddOnTop CommissionPolicy = "ADD_ON_TOP"
)

// CommissionSetting is the per-seller split configuration.
type CommissionSetting struct {
	SellerID    int64            `db:"seller_id" json:"seller_id"`
	Policy      CommissionPolicy `db:"policy" json:"policy"`
	SellerPct   decimal.Decimal  `db:"seller_pct" json:"seller_pct"`
	PlatformPct decimal.Decimal  `db:"platform_pct" json:"platform_pct"`
}

// CommissionSplit is the division of a single line item amount.
type CommissionSplit struct {
	SellerShare decimal.Decimal
	PlatformFee decimal.Decimal
}

// SplitCommission divides amount between seller and platform. Rounding is
// applied per call, before any summation across line items, so the split of
// an order is the sum of its per-item splits regardless of item order.
func SplitCommission(amount decimal.Decimal, s CommissionSetting) CommissionSplit {
	switch s.Policy {
	case CommissionDeductFromSeller:
		gross := Percentage(amount, s.SellerPct)
		fee := Percentage(amount, s.PlatformPct)
		return CommissionSplit{
			SellerShare: gross.Sub(fee),
			PlatformFee: fee,
		}
	default: // CommissionAddOnTop
		share := Percentage(amount, s.SellerPct)
		return CommissionSplit{
			SellerShare: share,
			PlatformFee: amount.Sub(share),
		}
	}
}
