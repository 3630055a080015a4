package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds a monetary amount to 2 fractional digits, half away from
// zero. Every amount the domain produces goes through this before it is
// compared, summed across aggregates, or persisted.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percentage returns pct percent of amount, rounded to 2 fractional digits.
func Percentage(amount, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}

// NormalizeCurrency trims and upper-cases a currency code ("irt " -> "IRT").
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// MaxZero clamps a negative amount to zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
