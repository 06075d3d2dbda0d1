package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AccrualMethod selects how a policy accrues. Only periodic accrual is
// supported: a fixed rate per frequency unit of service.
type AccrualMethod string

const (
	AccrualPeriodic AccrualMethod = "periodic"
)

// LedgerSource tags where a ledger entry originated.
type LedgerSource string

const (
	SourcePayroll    LedgerSource = "payroll"
	SourceConsume    LedgerSource = "consumption"
	SourceAdjustment LedgerSource = "adjustment"
)

// VacationPolicy defines periodic accrual: AccrualRate units per
// FrequencyDays of service. Paid policies carry a monetary liability for
// accrued-but-unpaid units, always valued against the currency-converted
// monthly salary divided by BaseDaysDivisor.
type VacationPolicy struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	Name            string          `gorm:"type:text;not null"`
	Method          AccrualMethod   `gorm:"type:text;not null;default:'periodic'"`
	AccrualRate     decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	FrequencyDays   int             `gorm:"not null;default:30"`
	MinServiceDays  int             `gorm:"not null;default:0"`
	PayoutPercent   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:100"`
	Paid            bool            `gorm:"not null"`
	BaseDaysDivisor int             `gorm:"not null;default:30"`
	DebitAccount    string          `gorm:"type:text"`
	CreditAccount   string          `gorm:"type:text"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (VacationPolicy) TableName() string { return "vacation_policies" }

// VacationAccount holds the running balance for one employee under one
// policy. Balance is always the sum of ledger quantities for the account;
// it is never mutated without a ledger write.
type VacationAccount struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	PolicyID   snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_vacation_account,priority:1"`
	EmployeeID snowflake.ID    `gorm:"not null;uniqueIndex:ux_vacation_account,priority:2"`
	Balance    decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (VacationAccount) TableName() string { return "vacation_accounts" }

// VacationLedger is the append-only accrual/consumption log. The unique
// (account, reference) pair is the idempotency key: at most one payroll
// accrual per run employee record.
type VacationLedger struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	AccountID   snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_vacation_ledger_ref,priority:1"`
	Source      LedgerSource    `gorm:"type:text;not null"`
	ReferenceID snowflake.ID    `gorm:"not null;uniqueIndex:ux_vacation_ledger_ref,priority:2"`
	Units       decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Liability   decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (VacationLedger) TableName() string { return "vacation_ledger" }
