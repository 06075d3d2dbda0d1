package domain

import (
	"github.com/andeanpay/nomina/pkg/money"
	"github.com/shopspring/decimal"
)

// Accrual is the computed-but-uncommitted result of one period's accrual.
// The engine computes it during calculation and stores it on the run
// employee record; ledger effects wait for an explicit apply.
type Accrual struct {
	Units     decimal.Decimal
	Liability decimal.Decimal
}

// ComputeAccrual derives the period's accrued units and, for paid policies,
// the monetary liability. ConvertedMonthly MUST already be in the run's
// functional currency; valuing the liability against the raw source-currency
// salary is the exact bug this signature exists to prevent.
func ComputeAccrual(policy VacationPolicy, periodDays int, convertedMonthly decimal.Decimal, serviceDays int) Accrual {
	if policy.FrequencyDays <= 0 || periodDays <= 0 {
		return Accrual{Units: decimal.Zero, Liability: decimal.Zero}
	}
	if serviceDays < policy.MinServiceDays {
		return Accrual{Units: decimal.Zero, Liability: decimal.Zero}
	}

	units := money.Round(policy.AccrualRate.
		Mul(decimal.NewFromInt(int64(periodDays))).
		Div(decimal.NewFromInt(int64(policy.FrequencyDays))))

	liability := decimal.Zero
	if policy.Paid && policy.BaseDaysDivisor > 0 {
		daily := convertedMonthly.Div(decimal.NewFromInt(int64(policy.BaseDaysDivisor)))
		liability = money.Round(units.Mul(daily))
	}

	return Accrual{Units: units, Liability: liability}
}
