package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/internal/metrics"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	"github.com/andeanpay/nomina/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(p Params) vacationdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("vacation.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Apply(ctx context.Context, tx *gorm.DB, req vacationdomain.ApplyRequest) error {
	if req.Units.IsZero() && req.Liability.IsZero() {
		return nil
	}

	account, err := s.lockOrCreateAccount(ctx, tx, req.PolicyID, req.EmployeeID)
	if err != nil {
		return err
	}

	var existing int64
	err = tx.WithContext(ctx).Model(&vacationdomain.VacationLedger{}).
		Where("account_id = ? AND reference_id = ?", account.ID, req.ReferenceID).
		Count(&existing).Error
	if err != nil {
		return err
	}
	if existing > 0 {
		s.metrics.IncAccrualDuplicate()
		s.log.Info("vacation accrual already applied",
			zap.String("employee_id", req.EmployeeID.String()),
			zap.String("reference_id", req.ReferenceID.String()))
		return vacationdomain.ErrDuplicateAccrual
	}

	now := s.clock.Now()
	entry := vacationdomain.VacationLedger{
		ID:          s.genID.Generate(),
		AccountID:   account.ID,
		Source:      vacationdomain.SourcePayroll,
		ReferenceID: req.ReferenceID,
		Units:       req.Units,
		Liability:   req.Liability,
		CreatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return vacationdomain.ErrDuplicateAccrual
		}
		return err
	}

	// Balance tracks the ledger: updated only alongside a ledger write.
	return tx.WithContext(ctx).Exec(
		`UPDATE vacation_accounts SET balance = balance + ?, updated_at = ? WHERE id = ?`,
		req.Units,
		now,
		account.ID,
	).Error
}

func (s *Service) Balance(ctx context.Context, policyID, employeeID snowflake.ID) (decimal.Decimal, error) {
	var account vacationdomain.VacationAccount
	err := s.db.WithContext(ctx).
		Where("policy_id = ? AND employee_id = ?", policyID, employeeID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (s *Service) lockOrCreateAccount(ctx context.Context, tx *gorm.DB, policyID, employeeID snowflake.ID) (*vacationdomain.VacationAccount, error) {
	var account vacationdomain.VacationAccount
	err := tx.WithContext(ctx).
		Where("policy_id = ? AND employee_id = ?", policyID, employeeID).
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	account = vacationdomain.VacationAccount{
		ID:         s.genID.Generate(),
		PolicyID:   policyID,
		EmployeeID: employeeID,
		Balance:    decimal.Zero,
		CreatedAt:  s.clock.Now(),
		UpdatedAt:  s.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
