package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) adelantodomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("adelanto.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) ActiveLoans(ctx context.Context, tx *gorm.DB, employeeID snowflake.ID) ([]adelantodomain.Adelanto, error) {
	var loans []adelantodomain.Adelanto
	err := tx.WithContext(ctx).
		Where("employee_id = ? AND active = ? AND balance > 0", employeeID, true).
		Order("id").
		Find(&loans).Error
	return loans, err
}

func (s *Service) RecordInstallment(ctx context.Context, tx *gorm.DB, loan *adelantodomain.Adelanto, nominaID snowflake.ID, amount decimal.Decimal, paidAt time.Time) error {
	if !amount.IsPositive() || amount.GreaterThan(loan.Balance) {
		return adelantodomain.ErrInvalidInstallment
	}

	abono := adelantodomain.AdelantoAbono{
		ID:         s.genID.Generate(),
		AdelantoID: loan.ID,
		NominaID:   nominaID,
		EmployeeID: loan.EmployeeID,
		Amount:     amount,
		PaidAt:     paidAt.UTC(),
	}
	if err := tx.WithContext(ctx).Create(&abono).Error; err != nil {
		return err
	}

	loan.Balance = loan.Balance.Sub(amount)
	active := loan.Balance.IsPositive()
	return tx.WithContext(ctx).Exec(
		`UPDATE adelantos SET balance = ?, active = ?, updated_at = ? WHERE id = ?`,
		loan.Balance,
		active,
		s.clock.Now(),
		loan.ID,
	).Error
}

func (s *Service) DeleteRunInstallments(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID) error {
	var abonos []adelantodomain.AdelantoAbono
	if err := tx.WithContext(ctx).Where("nomina_id = ?", nominaID).Find(&abonos).Error; err != nil {
		return err
	}

	for _, abono := range abonos {
		if err := tx.WithContext(ctx).Exec(
			`UPDATE adelantos SET balance = balance + ?, active = ?, updated_at = ? WHERE id = ?`,
			abono.Amount,
			true,
			s.clock.Now(),
			abono.AdelantoID,
		).Error; err != nil {
			return err
		}
	}

	return tx.WithContext(ctx).Where("nomina_id = ?", nominaID).Delete(&adelantodomain.AdelantoAbono{}).Error
}
