package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the run state machine. Any state may fall into error on an
// unrecoverable failure; error runs stay blocked until superseded by a
// recalculation.
type Status string

const (
	StatusCalculating Status = "calculating"
	StatusGenerated   Status = "generated"
	StatusApproved    Status = "approved"
	StatusApplied     Status = "applied"
	StatusPaid        Status = "paid"
	StatusError       Status = "error"
)

var transitions = map[Status][]Status{
	StatusCalculating: {StatusGenerated, StatusError},
	StatusGenerated:   {StatusApproved, StatusError},
	StatusApproved:    {StatusApplied, StatusError},
	StatusApplied:     {StatusPaid, StatusError},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Nomina is one computed payroll execution for a planilla and period. The
// Snapshot column freezes the configuration as it existed at calculation
// time; nothing after computation reads the live planilla tables.
type Nomina struct {
	ID               snowflake.ID                 `gorm:"primaryKey"`
	PlanillaID       snowflake.ID                 `gorm:"not null;index"`
	PeriodStart      time.Time                    `gorm:"not null"`
	PeriodEnd        time.Time                    `gorm:"not null"`
	CalculationDate  time.Time                    `gorm:"not null"`
	Status           Status                       `gorm:"type:text;not null;default:'calculating';index"`
	TotalGross       decimal.Decimal              `gorm:"type:numeric(18,2);not null;default:0"`
	TotalDeductions  decimal.Decimal              `gorm:"type:numeric(18,2);not null;default:0"`
	TotalNet         decimal.Decimal              `gorm:"type:numeric(18,2);not null;default:0"`
	EmployeeCount    int                          `gorm:"not null;default:0"`
	ErrorCount       int                          `gorm:"not null;default:0"`
	Snapshot         datatypes.JSON               `gorm:"type:jsonb"`
	Errors           datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	Warnings         datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	Background       bool                         `gorm:"not null;default:false"`
	IsRecalculation  bool                         `gorm:"not null;default:false"`
	OriginalNominaID *snowflake.ID                `gorm:"index"`
	Diagnostic       string                       `gorm:"type:text"`
	CreatedBy        string                       `gorm:"type:text"`
	CreatedAt        time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Nomina) TableName() string { return "nominas" }

// NominaEmpleado is one employee's result within a run. BaseSalary is the
// period-prorated figure already in run currency; MonthlySalary is the
// converted monthly figure the vacation liability is valued against.
// ExchangeRate is snapshotted when a conversion happened and never
// re-derived, so finalized runs stay stable if rate history changes.
type NominaEmpleado struct {
	ID                snowflake.ID     `gorm:"primaryKey"`
	NominaID          snowflake.ID     `gorm:"not null;index"`
	EmployeeID        snowflake.ID     `gorm:"not null;index"`
	EmployeeCode      string           `gorm:"type:text;not null"`
	EmployeeName      string           `gorm:"type:text;not null"`
	BaseSalary        decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	MonthlySalary     decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	SourceCurrency    string           `gorm:"type:text;not null"`
	ExchangeRate      *decimal.Decimal `gorm:"type:numeric(18,6)"`
	Gross             decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	Deductions        decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	Net               decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	CostCenter        string           `gorm:"type:text"`
	VacationUnits     decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	VacationLiability decimal.Decimal  `gorm:"type:numeric(18,2);not null;default:0"`
	ErrorMsg          string           `gorm:"type:text"`
	CreatedAt         time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (NominaEmpleado) TableName() string { return "nomina_empleados" }

// NominaDetalle is one concept's computed amount for one employee.
// AdelantoID marks loan-installment lines so the voucher can post them
// against the loan's control account instead of the concept's accounts.
type NominaDetalle struct {
	ID               snowflake.ID       `gorm:"primaryKey"`
	NominaEmpleadoID snowflake.ID       `gorm:"not null;index"`
	ConceptID        *snowflake.ID      `gorm:"index"`
	ConceptCode      string             `gorm:"type:text;not null"`
	Kind             conceptdomain.Kind `gorm:"type:text;not null"`
	Amount           decimal.Decimal    `gorm:"type:numeric(18,2);not null"`
	Description      string             `gorm:"type:text"`
	Position         int                `gorm:"not null;default:0"`
	AdelantoID       *snowflake.ID      `gorm:"index"`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (NominaDetalle) TableName() string { return "nomina_detalles" }

// NominaNovedad is an externally-entered, period-specific event: overtime
// hours, a one-time bonus, an absence. It is master data entered by HR, not
// a computed artifact. Recalculation re-links these rows to the new run and
// must never delete or recreate them.
type NominaNovedad struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	NominaID    snowflake.ID    `gorm:"not null;index"`
	EmployeeID  snowflake.ID    `gorm:"not null;index"`
	ConceptCode string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Rate        decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Note        string          `gorm:"type:text"`
	CreatedBy   string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (NominaNovedad) TableName() string { return "nomina_novedades" }
