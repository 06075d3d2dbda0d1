package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Adelanto is a loan or salary advance owed by an employee. ControlAccount
// is the liability account credited when installments are withheld; loan
// postings bypass the deduction concept's own accounts.
type Adelanto struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	EmployeeID     snowflake.ID    `gorm:"not null;index"`
	Description    string          `gorm:"type:text"`
	Principal      decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Balance        decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Installment    decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	ControlAccount string          `gorm:"type:text;not null"`
	Active         bool            `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Adelanto) TableName() string { return "adelantos" }

// AdelantoAbono is one installment withheld by a payroll run. Rows are
// owned by the run and removed when it is superseded by recalculation.
type AdelantoAbono struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	AdelantoID snowflake.ID    `gorm:"not null;index"`
	NominaID   snowflake.ID    `gorm:"not null;index"`
	EmployeeID snowflake.ID    `gorm:"not null;index"`
	Amount     decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	PaidAt     time.Time       `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AdelantoAbono) TableName() string { return "adelanto_abonos" }
