package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Employee is payroll master data. MonthlySalary is expressed in Currency,
// which may differ from the currency of the planillas the employee is linked
// to; conversion happens at calculation time.
type Employee struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	CompanyID       snowflake.ID    `gorm:"not null;index"`
	Code            string          `gorm:"type:text;not null;uniqueIndex"`
	Name            string          `gorm:"type:text;not null"`
	Active          bool            `gorm:"not null"`
	MonthlySalary   decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	Currency        string          `gorm:"type:text;not null"`
	CostCenter      string          `gorm:"type:text"`
	FiscalStartDate time.Time       `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Employee) TableName() string { return "employees" }
