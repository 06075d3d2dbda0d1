package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	// Resolve returns the rate converting source into target as of the given
	// date. Identity pairs resolve to 1 without a lookup. Lookups go through
	// the caller's handle so run transactions read their own connection.
	Resolve(ctx context.Context, tx *gorm.DB, source, target string, asOf time.Time) (decimal.Decimal, error)
	Upsert(ctx context.Context, rate *ExchangeRate) error
}

var (
	ErrMissingRate     = errors.New("missing_exchange_rate")
	ErrInvalidCurrency = errors.New("invalid_currency")
	ErrInvalidRate     = errors.New("invalid_rate")
)

// MissingRateError names the unresolved pair and date. It is a configuration
// error: fatal for the affected employee, never for the whole run.
type MissingRateError struct {
	Source string
	Target string
	AsOf   time.Time
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("no exchange rate for %s/%s effective on or before %s", e.Source, e.Target, e.AsOf.Format("2006-01-02"))
}

func (e *MissingRateError) Unwrap() error { return ErrMissingRate }
