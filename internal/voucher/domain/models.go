package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ComprobanteContable is the accounting voucher generated from one payroll
// run. The unique nomina index enforces at most one voucher per run;
// regeneration replaces lines in place and bumps the modification count.
type ComprobanteContable struct {
	ID            snowflake.ID                `gorm:"primaryKey"`
	NominaID      snowflake.ID                `gorm:"not null;uniqueIndex"`
	TotalDebit    decimal.Decimal             `gorm:"type:numeric(18,2);not null;default:0"`
	TotalCredit   decimal.Decimal             `gorm:"type:numeric(18,2);not null;default:0"`
	Balanced      bool                        `gorm:"not null;default:false"`
	Warnings      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ModifiedCount int                         `gorm:"not null;default:0"`
	ModifiedBy    string                      `gorm:"type:text"`
	ModifiedAt    *time.Time                  ``
	CreatedBy     string                      `gorm:"type:text"`
	CreatedAt     time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ComprobanteContable) TableName() string { return "comprobante_contables" }

// ComprobanteDetalle is one posting line. Exactly one of Debit and Credit
// is nonzero.
type ComprobanteDetalle struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	ComprobanteID snowflake.ID    `gorm:"not null;index"`
	Account       string          `gorm:"type:text;not null"`
	Debit         decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Credit        decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	EmployeeID    *snowflake.ID   `gorm:"index"`
	ConceptCode   string          `gorm:"type:text"`
	CostCenter    string          `gorm:"type:text"`
	Description   string          `gorm:"type:text"`
	Position      int             `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ComprobanteDetalle) TableName() string { return "comprobante_detalles" }
