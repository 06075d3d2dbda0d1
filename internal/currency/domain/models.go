package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Currency is a catalog entry. ISO 4217 codes, two minor-unit decimals.
type Currency struct {
	ID     snowflake.ID `gorm:"primaryKey"`
	Code   string       `gorm:"type:text;not null;uniqueIndex"`
	Name   string       `gorm:"type:text;not null"`
	Symbol string       `gorm:"type:text"`
}

// TableName sets the database table name.
func (Currency) TableName() string { return "currencies" }

// ExchangeRate is one point-in-time conversion factor. The most recent rate
// effective on or before the as-of date applies.
type ExchangeRate struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	Source      string          `gorm:"type:text;not null;index:ix_exchange_rates_pair"`
	Target      string          `gorm:"type:text;not null;index:ix_exchange_rates_pair"`
	Rate        decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	EffectiveAt time.Time       `gorm:"not null;index"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ExchangeRate) TableName() string { return "exchange_rates" }
