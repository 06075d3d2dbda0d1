package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind separates income, deduction and benefit concepts. Benefits accrue to
// the employer side and never enter the employee's net.
type Kind string

const (
	KindIncome    Kind = "income"
	KindDeduction Kind = "deduction"
	KindBenefit   Kind = "benefit"
)

// FormulaType selects how a concept amount is computed.
type FormulaType string

const (
	FormulaFixed      FormulaType = "fixed"
	FormulaPercentage FormulaType = "percentage"
	FormulaEvent      FormulaType = "formula"
)

// Status is the concept lifecycle. Only approved concepts may be evaluated
// in a live run.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
)

// Concept is a catalog entry ("concepto"). Amount applies to fixed concepts,
// Percent to percentage concepts; event-driven concepts read their figures
// from the run's novedades.
type Concept struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	Code          string          `gorm:"type:text;not null;uniqueIndex"`
	Name          string          `gorm:"type:text;not null"`
	Description   string          `gorm:"type:text"`
	Kind          Kind            `gorm:"type:text;not null"`
	FormulaType   FormulaType     `gorm:"type:text;not null"`
	Amount        decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Percent       decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	Taxable       bool            `gorm:"not null;default:false"`
	Withholding   bool            `gorm:"not null;default:false"`
	Recurring     bool            `gorm:"not null"`
	Prorated      bool            `gorm:"not null;default:false"`
	Status        Status          `gorm:"type:text;not null;default:'draft'"`
	DebitAccount  string          `gorm:"type:text"`
	CreditAccount string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Concept) TableName() string { return "concepts" }

// Snapshot is the frozen copy of one linked concept taken at calculation
// time. Runs only ever read snapshots, never the live catalog.
type Snapshot struct {
	ConceptID     snowflake.ID    `json:"concept_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Kind          Kind            `json:"kind"`
	FormulaType   FormulaType     `json:"formula_type"`
	Amount        decimal.Decimal `json:"amount"`
	Percent       decimal.Decimal `json:"percent"`
	Prorated      bool            `json:"prorated"`
	Status        Status          `json:"status"`
	Position      int             `json:"position"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
}

// SnapshotOf freezes a catalog concept with its link position.
func SnapshotOf(c Concept, position int) Snapshot {
	return Snapshot{
		ConceptID:     c.ID,
		Code:          c.Code,
		Name:          c.Name,
		Kind:          c.Kind,
		FormulaType:   c.FormulaType,
		Amount:        c.Amount,
		Percent:       c.Percent,
		Prorated:      c.Prorated,
		Status:        c.Status,
		Position:      position,
		DebitAccount:  c.DebitAccount,
		CreditAccount: c.CreditAccount,
	}
}
