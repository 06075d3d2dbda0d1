package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	currencydomain "github.com/andeanpay/nomina/internal/currency/domain"
	employeedomain "github.com/andeanpay/nomina/internal/employee/domain"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	"github.com/andeanpay/nomina/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// loanConceptCode labels withheld loan installments on detail lines. Loans
// are not catalog concepts; the code exists so statements and vouchers have
// something stable to group on.
const loanConceptCode = "ADELANTO"

// compute fills in one run's employee, detail and total rows inside the
// caller's transaction. eventsNominaID is the run whose novedades apply:
// the run's own ID on a first execution, the superseded run's ID during a
// recalculation, where the rows have not been re-linked yet.
func (s *Service) compute(
	ctx context.Context,
	tx *gorm.DB,
	run *nominadomain.Nomina,
	inputs *planilladomain.RunInputs,
	eventsNominaID snowflake.ID,
) error {
	pl := inputs.Planilla

	periodDays := inclusiveDays(run.PeriodStart, run.PeriodEnd)
	if periodDays <= 0 {
		return nominadomain.ErrInvalidPeriod
	}
	baseDays := int64(pl.BaseDays)
	if baseDays <= 0 {
		baseDays = int64(s.holder.Get().DefaultBaseDays)
	}

	events, err := s.loadEvents(ctx, tx, eventsNominaID)
	if err != nil {
		return err
	}

	var policy *vacationdomain.VacationPolicy
	if pl.VacationPolicyID != nil {
		policy = &vacationdomain.VacationPolicy{}
		err := tx.WithContext(ctx).Where("id = ?", *pl.VacationPolicyID).First(policy).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vacationdomain.ErrPolicyNotFound
		}
		if err != nil {
			return err
		}
	}

	totalGross := decimal.Zero
	totalDeductions := decimal.Zero
	totalNet := decimal.Zero
	var runErrors []string
	errorCount := 0
	processed := 0

	for i := range inputs.Employees {
		emp := inputs.Employees[i]

		// Hired after the period closed: not part of this run at all.
		if emp.FiscalStartDate.After(run.PeriodEnd) {
			continue
		}
		processed++

		row, details, empErr := s.computeEmployee(ctx, tx, run, pl, emp, inputs.Concepts, events[emp.ID], policy, periodDays, baseDays)
		if empErr != nil && !isEmployeeError(empErr) {
			// Infrastructure failure: the whole transaction must roll back.
			return empErr
		}
		if empErr != nil {
			errorCount++
			runErrors = append(runErrors, fmt.Sprintf("%s: %s", emp.Code, empErr.Error()))
			row = &nominadomain.NominaEmpleado{
				ID:             s.genID.Generate(),
				NominaID:       run.ID,
				EmployeeID:     emp.ID,
				EmployeeCode:   emp.Code,
				EmployeeName:   emp.Name,
				SourceCurrency: emp.Currency,
				CostCenter:     emp.CostCenter,
				ErrorMsg:       empErr.Error(),
				CreatedAt:      s.clock.Now(),
			}
			details = nil
			s.log.Warn("employee excluded from payroll run",
				zap.String("nomina_id", run.ID.String()),
				zap.String("employee_code", emp.Code),
				zap.Error(empErr))
		}

		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
		if len(details) > 0 {
			if err := tx.WithContext(ctx).Create(&details).Error; err != nil {
				return err
			}
		}
		if empErr == nil {
			totalGross = totalGross.Add(row.Gross)
			totalDeductions = totalDeductions.Add(row.Deductions)
			totalNet = totalNet.Add(row.Net)
		}
	}

	run.Status = nominadomain.StatusGenerated
	run.TotalGross = totalGross
	run.TotalDeductions = totalDeductions
	run.TotalNet = totalNet
	run.EmployeeCount = processed
	run.ErrorCount = errorCount
	run.Errors = append(run.Errors, runErrors...)
	run.UpdatedAt = s.clock.Now()

	return tx.WithContext(ctx).
		Model(&nominadomain.Nomina{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":           run.Status,
			"total_gross":      run.TotalGross,
			"total_deductions": run.TotalDeductions,
			"total_net":        run.TotalNet,
			"employee_count":   run.EmployeeCount,
			"error_count":      run.ErrorCount,
			"errors":           run.Errors,
			"updated_at":       run.UpdatedAt,
		}).Error
}

func (s *Service) computeEmployee(
	ctx context.Context,
	tx *gorm.DB,
	run *nominadomain.Nomina,
	pl planilladomain.Planilla,
	emp employeedomain.Employee,
	concepts []conceptdomain.Snapshot,
	empEvents map[string][]conceptdomain.Event,
	policy *vacationdomain.VacationPolicy,
	periodDays, baseDays int64,
) (*nominadomain.NominaEmpleado, []nominadomain.NominaDetalle, error) {
	monthly := emp.MonthlySalary
	var rate *decimal.Decimal
	if emp.Currency != pl.Currency {
		r, err := s.currencySvc.Resolve(ctx, tx, emp.Currency, pl.Currency, run.CalculationDate)
		if err != nil {
			return nil, nil, err
		}
		monthly = money.Round(monthly.Mul(r))
		rate = &r
	} else {
		monthly = money.Round(monthly)
	}

	// New hires inside the period earn from their start date only.
	effectiveDays := periodDays
	if emp.FiscalStartDate.After(run.PeriodStart) {
		effectiveDays = inclusiveDays(emp.FiscalStartDate, run.PeriodEnd)
	}
	base := money.Prorate(monthly, effectiveDays, baseDays)

	row := &nominadomain.NominaEmpleado{
		ID:             s.genID.Generate(),
		NominaID:       run.ID,
		EmployeeID:     emp.ID,
		EmployeeCode:   emp.Code,
		EmployeeName:   emp.Name,
		BaseSalary:     base,
		MonthlySalary:  monthly,
		SourceCurrency: emp.Currency,
		ExchangeRate:   rate,
		CostCenter:     emp.CostCenter,
		CreatedAt:      s.clock.Now(),
	}

	gross := base
	deductions := decimal.Zero
	var details []nominadomain.NominaDetalle

	for _, c := range concepts {
		amount, include, err := conceptdomain.Evaluate(c, conceptdomain.Inputs{
			Base:         base,
			PeriodDays:   effectiveDays,
			StandardDays: baseDays,
			Events:       empEvents[c.Code],
		})
		if err != nil {
			return nil, nil, fmt.Errorf("concept %s: %w", c.Code, err)
		}
		if !include {
			continue
		}

		conceptID := c.ConceptID
		details = append(details, nominadomain.NominaDetalle{
			ID:               s.genID.Generate(),
			NominaEmpleadoID: row.ID,
			ConceptID:        &conceptID,
			ConceptCode:      c.Code,
			Kind:             c.Kind,
			Amount:           amount,
			Description:      c.Name,
			Position:         c.Position,
			CreatedAt:        s.clock.Now(),
		})

		switch c.Kind {
		case conceptdomain.KindIncome:
			gross = gross.Add(amount)
		case conceptdomain.KindDeduction:
			deductions = deductions.Add(amount)
		case conceptdomain.KindBenefit:
			// Employer-side cost: a detail line exists but neither gross
			// nor net moves.
		}
	}

	// Loan installments come after concepts so the position ordering puts
	// them at the bottom of the deduction block.
	loans, err := s.adelantoSvc.ActiveLoans(ctx, tx, emp.ID)
	if err != nil {
		return nil, nil, err
	}
	position := len(concepts)
	for i := range loans {
		loan := loans[i]
		due := loan.InstallmentDue()
		if due.IsZero() {
			continue
		}
		if err := s.adelantoSvc.RecordInstallment(ctx, tx, &loan, run.ID, due, run.CalculationDate); err != nil {
			return nil, nil, err
		}
		loanID := loan.ID
		details = append(details, nominadomain.NominaDetalle{
			ID:               s.genID.Generate(),
			NominaEmpleadoID: row.ID,
			ConceptCode:      loanConceptCode,
			Kind:             conceptdomain.KindDeduction,
			Amount:           due,
			Description:      loan.Description,
			Position:         position,
			AdelantoID:       &loanID,
			CreatedAt:        s.clock.Now(),
		})
		position++
		deductions = deductions.Add(due)
	}

	row.Gross = money.Round(gross)
	row.Deductions = money.Round(deductions)
	row.Net = row.Gross.Sub(row.Deductions)

	if policy != nil {
		serviceDays := inclusiveDays(emp.FiscalStartDate, run.PeriodEnd)
		accrual := vacationdomain.ComputeAccrual(*policy, int(periodDays), monthly, int(serviceDays))
		row.VacationUnits = accrual.Units
		row.VacationLiability = accrual.Liability
	}

	return row, details, nil
}

// isEmployeeError reports whether a computation failure is scoped to one
// employee's configuration. Such employees are recorded with an error
// message and excluded from totals; the run itself still completes.
func isEmployeeError(err error) bool {
	return errors.Is(err, currencydomain.ErrMissingRate) ||
		errors.Is(err, conceptdomain.ErrConceptNotApproved)
}

// loadEvents groups a run's novedades by employee then concept code.
func (s *Service) loadEvents(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID) (map[snowflake.ID]map[string][]conceptdomain.Event, error) {
	var rows []nominadomain.NominaNovedad
	err := tx.WithContext(ctx).
		Where("nomina_id = ?", nominaID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	grouped := make(map[snowflake.ID]map[string][]conceptdomain.Event, len(rows))
	for _, r := range rows {
		byCode := grouped[r.EmployeeID]
		if byCode == nil {
			byCode = make(map[string][]conceptdomain.Event)
			grouped[r.EmployeeID] = byCode
		}
		byCode[r.ConceptCode] = append(byCode[r.ConceptCode], conceptdomain.Event{
			Quantity: r.Quantity,
			Rate:     r.Rate,
			Amount:   r.Amount,
		})
	}
	return grouped, nil
}

// inclusiveDays counts calendar days from a through b, both ends included.
func inclusiveDays(a, b time.Time) int64 {
	a = a.UTC().Truncate(24 * time.Hour)
	b = b.UTC().Truncate(24 * time.Hour)
	return int64(b.Sub(a).Hours()/24) + 1
}
