package domain

import (
	"errors"

	"github.com/andeanpay/nomina/pkg/money"
	"github.com/shopspring/decimal"
)

var (
	ErrConceptNotApproved = errors.New("concept_not_approved")
	ErrUnknownFormulaType = errors.New("unknown_formula_type")
)

// Event is one matching novedad for the concept/employee/period, reduced to
// the figures the evaluator needs.
type Event struct {
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	Amount   decimal.Decimal
}

// Inputs are the per-employee figures a concept evaluates against. Base is
// the period-prorated base salary, already converted into the run currency.
type Inputs struct {
	Base         decimal.Decimal
	PeriodDays   int64
	StandardDays int64
	Events       []Event
}

// Evaluate computes the monetary amount for one concept instance. The
// second return reports whether a detail line should be written at all:
// event-driven concepts with no matching novedad are omitted, not zeroed.
// Amounts are rounded per employee before any aggregation.
func Evaluate(c Snapshot, in Inputs) (decimal.Decimal, bool, error) {
	if c.Status != StatusApproved {
		return decimal.Zero, false, ErrConceptNotApproved
	}

	switch c.FormulaType {
	case FormulaFixed:
		amount := c.Amount
		if c.Prorated {
			amount = money.Prorate(amount, in.PeriodDays, in.StandardDays)
		} else {
			amount = money.Round(amount)
		}
		return amount, !amount.IsZero(), nil

	case FormulaPercentage:
		amount := money.Percent(in.Base, c.Percent)
		return amount, !amount.IsZero(), nil

	case FormulaEvent:
		if len(in.Events) == 0 {
			return decimal.Zero, false, nil
		}
		total := decimal.Zero
		for _, ev := range in.Events {
			if !ev.Amount.IsZero() {
				total = total.Add(money.Round(ev.Amount))
				continue
			}
			total = total.Add(money.Round(ev.Quantity.Mul(ev.Rate)))
		}
		return total, !total.IsZero(), nil

	default:
		return decimal.Zero, false, ErrUnknownFormulaType
	}
}
