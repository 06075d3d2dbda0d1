package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	// ActiveLoans lists loans with outstanding balance for an employee. It
	// reads through the caller's transaction so that balance restorations
	// made earlier in the same transaction are visible.
	ActiveLoans(ctx context.Context, tx *gorm.DB, employeeID snowflake.ID) ([]Adelanto, error)
	// RecordInstallment withholds one installment inside the caller's run
	// transaction: writes the abono row, decrements the balance and
	// deactivates the loan once fully repaid.
	RecordInstallment(ctx context.Context, tx *gorm.DB, loan *Adelanto, nominaID snowflake.ID, amount decimal.Decimal, paidAt time.Time) error
	// DeleteRunInstallments removes the abonos a superseded run created and
	// restores the corresponding loan balances.
	DeleteRunInstallments(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID) error
}

// InstallmentDue caps the configured installment at the remaining balance.
func (a Adelanto) InstallmentDue() decimal.Decimal {
	if a.Installment.GreaterThan(a.Balance) {
		return a.Balance
	}
	return a.Installment
}

var (
	ErrInvalidInstallment = errors.New("invalid_installment")
)
