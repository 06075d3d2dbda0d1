package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Periodicity is the planilla's pay cadence.
type Periodicity string

const (
	PeriodicityMonthly  Periodicity = "monthly"
	PeriodicityBiweekly Periodicity = "biweekly"
	PeriodicityWeekly   Periodicity = "weekly"
)

// Planilla is a named payroll template: the currency runs are denominated
// in, the proration day counts, the chart-of-accounts mapping for base
// salary, and the ordered set of linked concepts. Administrative edits never
// retroactively alter posted runs; runs read their own snapshot.
type Planilla struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	CompanyID        snowflake.ID `gorm:"not null;index"`
	Name             string       `gorm:"type:text;not null"`
	Currency         string       `gorm:"type:text;not null"`
	Periodicity      Periodicity  `gorm:"type:text;not null;default:'monthly'"`
	PeriodDays       int          `gorm:"not null;default:30"`
	BaseDays         int          `gorm:"not null;default:30"`
	SalaryDebit      string       `gorm:"type:text"`
	SalaryCredit     string       `gorm:"type:text"`
	VacationPolicyID *snowflake.ID `gorm:"index"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Planilla) TableName() string { return "planillas" }

// PlanillaConcepto links a catalog concept into a planilla with explicit
// ordering. Inactive links are skipped entirely at calculation time.
// The bool columns carry no database default: gorm omits zero values from
// the INSERT when a default tag is present, which would silently store an
// inactive link as active.
type PlanillaConcepto struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	PlanillaID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_planilla_concepto,priority:1"`
	ConceptID  snowflake.ID `gorm:"not null;uniqueIndex:ux_planilla_concepto,priority:2"`
	Active     bool         `gorm:"not null"`
	Editable   bool         `gorm:"not null"`
	Position   int          `gorm:"not null;default:0"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlanillaConcepto) TableName() string { return "planilla_conceptos" }

// PlanillaEmpleado links an employee into a planilla's roster.
type PlanillaEmpleado struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	PlanillaID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_planilla_empleado,priority:1"`
	EmployeeID snowflake.ID `gorm:"not null;uniqueIndex:ux_planilla_empleado,priority:2"`
	Active     bool         `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlanillaEmpleado) TableName() string { return "planilla_empleados" }
