package money

import "github.com/shopspring/decimal"

// Precision is the minor-unit precision used for every currency handled by
// the engine. All currencies here carry two decimal places.
const Precision = 2

var (
	Zero    = decimal.Zero
	Hundred = decimal.NewFromInt(100)
)

// Round rounds a monetary or unit amount to the minor-unit precision using
// round-half-up. Per-line rounding happens before aggregation so recomputed
// runs reproduce identical totals.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Precision)
}

// Prorate scales a monthly figure to a period: amount * periodDays / baseDays.
// Returns zero when baseDays is not positive.
func Prorate(amount decimal.Decimal, periodDays, baseDays int64) decimal.Decimal {
	if baseDays <= 0 {
		return decimal.Zero
	}
	return Round(amount.Mul(decimal.NewFromInt(periodDays)).Div(decimal.NewFromInt(baseDays)))
}

// Percent computes base * percent / 100, rounded.
func Percent(base, percent decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(percent).Div(Hundred))
}

// IsZero reports whether the amount rounds to zero at minor-unit precision.
func IsZero(d decimal.Decimal) bool {
	return Round(d).IsZero()
}
