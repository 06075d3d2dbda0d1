package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	auditdomain "github.com/andeanpay/nomina/internal/audit/domain"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/internal/config"
	currencydomain "github.com/andeanpay/nomina/internal/currency/domain"
	"github.com/andeanpay/nomina/internal/metrics"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	queuedomain "github.com/andeanpay/nomina/internal/queue/domain"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Holder      *config.PayrollConfigHolder
	PlanillaSvc planilladomain.Service
	CurrencySvc currencydomain.Service
	AdelantoSvc adelantodomain.Service
	VacationSvc vacationdomain.Service
	QueueSvc    queuedomain.Service
	AuditSvc    auditdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	holder      *config.PayrollConfigHolder
	planillaSvc planilladomain.Service
	currencySvc currencydomain.Service
	adelantoSvc adelantodomain.Service
	vacationSvc vacationdomain.Service
	queueSvc    queuedomain.Service
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

func NewService(p Params) nominadomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("nomina.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		holder:      p.Holder,
		planillaSvc: p.PlanillaSvc,
		currencySvc: p.CurrencySvc,
		adelantoSvc: p.AdelantoSvc,
		vacationSvc: p.VacationSvc,
		queueSvc:    p.QueueSvc,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}
}

func (s *Service) Execute(ctx context.Context, req nominadomain.ExecuteRequest) (*nominadomain.Nomina, error) {
	if req.PeriodEnd.Before(req.PeriodStart) {
		return nil, nominadomain.ErrInvalidPeriod
	}
	calcDate := req.CalculationDate
	if calcDate.IsZero() {
		calcDate = s.clock.Now()
	}

	inputs, err := s.planillaSvc.LoadForRun(ctx, req.PlanillaID)
	if err != nil {
		return nil, err
	}

	snapshot := nominadomain.SnapshotOf(inputs.Planilla, inputs.Concepts)
	raw, err := snapshot.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode run snapshot: %w", err)
	}

	cfg := s.holder.Get()
	background := len(inputs.Employees) > cfg.AsyncThreshold

	run := &nominadomain.Nomina{
		ID:              s.genID.Generate(),
		PlanillaID:      req.PlanillaID,
		PeriodStart:     req.PeriodStart.UTC(),
		PeriodEnd:       req.PeriodEnd.UTC(),
		CalculationDate: calcDate.UTC(),
		Status:          nominadomain.StatusCalculating,
		Snapshot:        raw,
		Warnings:        inputs.Warnings,
		Background:      background,
		CreatedBy:       req.User,
		CreatedAt:       s.clock.Now(),
		UpdatedAt:       s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}

	if background {
		s.metrics.IncRunStarted("background")
		if err := s.enqueueCalculation(ctx, run, req.User); err != nil {
			// Queue submission failure is systemic: the run must not stay
			// calculating with nothing coming to finish it.
			s.failRun(ctx, run, fmt.Sprintf("queue submission failed: %v", err))
			return run, err
		}
		s.audit(ctx, run, "nomina.deferred", req.User, "run deferred to background worker", "", string(run.Status))
		return run, nil
	}

	s.metrics.IncRunStarted("sync")
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.compute(ctx, tx, run, inputs, run.ID)
	})
	if err != nil {
		s.failRun(ctx, run, err.Error())
		return run, err
	}

	s.metrics.IncRunCompleted(string(run.Status))
	s.audit(ctx, run, "nomina.executed", req.User, "payroll run computed", string(nominadomain.StatusCalculating), string(run.Status))
	return run, nil
}

func (s *Service) CompleteBackground(ctx context.Context, nominaID snowflake.ID) error {
	run, err := s.Get(ctx, nominaID)
	if err != nil {
		return err
	}
	if run.Status != nominadomain.StatusCalculating {
		// At-least-once delivery: the run already finished.
		return nil
	}

	inputs, err := s.planillaSvc.LoadForRun(ctx, run.PlanillaID)
	if err != nil {
		s.failRun(ctx, run, err.Error())
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.compute(ctx, tx, run, inputs, run.ID)
	})
	if err != nil {
		// Never leave a background run permanently calculating.
		s.failRun(ctx, run, err.Error())
		return nil
	}

	s.metrics.IncRunCompleted(string(run.Status))
	s.audit(ctx, run, "nomina.executed", run.CreatedBy, "payroll run computed in background", string(nominadomain.StatusCalculating), string(run.Status))
	return nil
}

func (s *Service) Approve(ctx context.Context, nominaID snowflake.ID, user string) (*nominadomain.Nomina, error) {
	return s.transition(ctx, nominaID, nominadomain.StatusApproved, user, "nomina.approved", nil)
}

func (s *Service) ApplyRun(ctx context.Context, nominaID snowflake.ID, user string) (*nominadomain.Nomina, error) {
	run, err := s.Get(ctx, nominaID)
	if err != nil {
		return nil, err
	}

	snapshot, err := nominadomain.DecodeSnapshot(run.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode run snapshot: %w", err)
	}

	var applyAccruals func(*gorm.DB, *nominadomain.Nomina) error
	if snapshot.Planilla.VacationPolicyID != nil {
		policyID := *snapshot.Planilla.VacationPolicyID
		applyAccruals = func(tx *gorm.DB, run *nominadomain.Nomina) error {
			employees, err := s.loadEmployees(ctx, tx, run.ID)
			if err != nil {
				return err
			}
			for _, emp := range employees {
				if emp.ErrorMsg != "" {
					continue
				}
				err := s.vacationSvc.Apply(ctx, tx, vacationdomain.ApplyRequest{
					PolicyID:    policyID,
					EmployeeID:  emp.EmployeeID,
					ReferenceID: emp.ID,
					Units:       emp.VacationUnits,
					Liability:   emp.VacationLiability,
					User:        user,
				})
				if err != nil && !errors.Is(err, vacationdomain.ErrDuplicateAccrual) {
					return err
				}
			}
			return nil
		}
	}

	return s.transition(ctx, nominaID, nominadomain.StatusApplied, user, "nomina.applied", applyAccruals)
}

func (s *Service) MarkPaid(ctx context.Context, nominaID snowflake.ID, user string) (*nominadomain.Nomina, error) {
	return s.transition(ctx, nominaID, nominadomain.StatusPaid, user, "nomina.paid", nil)
}

func (s *Service) Get(ctx context.Context, nominaID snowflake.ID) (*nominadomain.Nomina, error) {
	var run nominadomain.Nomina
	err := s.db.WithContext(ctx).Where("id = ?", nominaID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nominadomain.ErrNominaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *Service) Employees(ctx context.Context, nominaID snowflake.ID) ([]nominadomain.NominaEmpleado, error) {
	return s.loadEmployees(ctx, s.db, nominaID)
}

func (s *Service) loadEmployees(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID) ([]nominadomain.NominaEmpleado, error) {
	var rows []nominadomain.NominaEmpleado
	err := tx.WithContext(ctx).
		Where("nomina_id = ?", nominaID).
		Order("employee_code").
		Find(&rows).Error
	return rows, err
}

func (s *Service) RecoverStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-olderThan)
	res := s.db.WithContext(ctx).Exec(
		`UPDATE nominas
		 SET status = ?, diagnostic = ?, updated_at = ?
		 WHERE status = ? AND updated_at < ?`,
		nominadomain.StatusError,
		"run abandoned in calculating state; recovered by watchdog",
		s.clock.Now(),
		nominadomain.StatusCalculating,
		cutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Warn("recovered stuck payroll runs", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}

// transition performs a guarded status change. The guarded UPDATE is the
// optimistic claim: a concurrent mutation loses the race and gets a
// conflict instead of a double transition.
func (s *Service) transition(
	ctx context.Context,
	nominaID snowflake.ID,
	to nominadomain.Status,
	user string,
	action string,
	sideEffects func(*gorm.DB, *nominadomain.Nomina) error,
) (*nominadomain.Nomina, error) {
	run, err := s.Get(ctx, nominaID)
	if err != nil {
		return nil, err
	}
	if run.Status == nominadomain.StatusError {
		return nil, nominadomain.ErrRunBlocked
	}
	if !nominadomain.CanTransition(run.Status, to) {
		return nil, nominadomain.ErrInvalidTransition
	}
	from := run.Status

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`UPDATE nominas SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to,
			s.clock.Now(),
			run.ID,
			from,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nominadomain.ErrRecalcConflict
		}
		run.Status = to
		if sideEffects != nil {
			return sideEffects(tx, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, run, action, user, "", string(from), string(to))
	return run, nil
}

func (s *Service) enqueueCalculation(ctx context.Context, run *nominadomain.Nomina, user string) error {
	// Primitive, serializable fields only: the consumer may live in a
	// separate process.
	_, err := s.queueSvc.Enqueue(ctx, nominadomain.JobCalculate, map[string]any{
		"run_id":           run.ID.String(),
		"planilla_id":      run.PlanillaID.String(),
		"period_start":     run.PeriodStart.Format(time.RFC3339),
		"period_end":       run.PeriodEnd.Format(time.RFC3339),
		"calculation_date": run.CalculationDate.Format(time.RFC3339),
		"user":             user,
	})
	return err
}

func (s *Service) failRun(ctx context.Context, run *nominadomain.Nomina, diagnostic string) {
	run.Status = nominadomain.StatusError
	run.Diagnostic = diagnostic
	res := s.db.WithContext(ctx).Exec(
		`UPDATE nominas SET status = ?, diagnostic = ?, updated_at = ? WHERE id = ?`,
		nominadomain.StatusError,
		diagnostic,
		s.clock.Now(),
		run.ID,
	)
	if res.Error != nil {
		s.log.Error("failed to mark run as errored", zap.String("nomina_id", run.ID.String()), zap.Error(res.Error))
	}
	s.metrics.IncRunCompleted(string(nominadomain.StatusError))
}

func (s *Service) audit(ctx context.Context, run *nominadomain.Nomina, action, user, description, prev, next string) {
	if s.auditSvc == nil {
		return
	}
	entry := auditdomain.Entry{
		Action:         action,
		TargetType:     "nomina",
		TargetID:       run.ID.String(),
		Actor:          user,
		Description:    description,
		PreviousStatus: prev,
		NewStatus:      next,
		Changeset: map[string]any{
			"planilla_id":  run.PlanillaID.String(),
			"period_start": run.PeriodStart.Format(time.RFC3339),
			"period_end":   run.PeriodEnd.Format(time.RFC3339),
		},
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.log.Warn("failed to write run audit entry", zap.String("action", action), zap.Error(err))
	}
}
