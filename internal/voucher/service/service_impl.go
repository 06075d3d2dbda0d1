package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	"github.com/andeanpay/nomina/internal/clock"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	"github.com/andeanpay/nomina/internal/metrics"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	voucherdomain "github.com/andeanpay/nomina/internal/voucher/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	NominaSvc nominadomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	nominaSvc nominadomain.Service
	metrics   *metrics.Metrics
}

func NewService(p Params) voucherdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("voucher.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		nominaSvc: p.NominaSvc,
		metrics:   p.Metrics,
	}
}

// voucherReady lists run states a voucher may be generated from.
var voucherReady = map[nominadomain.Status]bool{
	nominadomain.StatusGenerated: true,
	nominadomain.StatusApproved:  true,
	nominadomain.StatusApplied:   true,
	nominadomain.StatusPaid:      true,
}

func (s *Service) Generate(ctx context.Context, nominaID snowflake.ID, user string) (*voucherdomain.ComprobanteContable, error) {
	run, err := s.nominaSvc.Get(ctx, nominaID)
	if err != nil {
		return nil, err
	}
	if !voucherReady[run.Status] {
		return nil, voucherdomain.ErrRunNotReady
	}

	snapshot, err := nominadomain.DecodeSnapshot(run.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("decode run snapshot: %w", err)
	}

	employees, err := s.nominaSvc.Employees(ctx, nominaID)
	if err != nil {
		return nil, err
	}

	var voucher *voucherdomain.ComprobanteContable
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.buildLines(ctx, tx, run, snapshot, employees)
		if err != nil {
			return err
		}
		voucher, err = s.replaceVoucher(ctx, tx, run.ID, b, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !voucher.Balanced {
		s.metrics.IncVoucherImbalance()
		s.log.Warn("voucher generated out of balance",
			zap.String("nomina_id", run.ID.String()),
			zap.String("total_debit", voucher.TotalDebit.String()),
			zap.String("total_credit", voucher.TotalCredit.String()))
	}
	return voucher, nil
}

// builder accumulates posting lines and the warnings collected while
// mapping amounts to accounts.
type builder struct {
	lines    []voucherdomain.ComprobanteDetalle
	warnings []string
	debit    decimal.Decimal
	credit   decimal.Decimal
}

func (b *builder) post(account string, debit, credit decimal.Decimal, emp *snowflake.ID, code, costCenter, desc string) {
	b.lines = append(b.lines, voucherdomain.ComprobanteDetalle{
		Account:     account,
		Debit:       debit,
		Credit:      credit,
		EmployeeID:  emp,
		ConceptCode: code,
		CostCenter:  costCenter,
		Description: desc,
		Position:    len(b.lines),
	})
	b.debit = b.debit.Add(debit)
	b.credit = b.credit.Add(credit)
}

func (b *builder) warn(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

func (s *Service) buildLines(
	ctx context.Context,
	tx *gorm.DB,
	run *nominadomain.Nomina,
	snapshot *nominadomain.RunSnapshot,
	employees []nominadomain.NominaEmpleado,
) (*builder, error) {
	pl := snapshot.Planilla
	conceptsByCode := make(map[string]conceptdomain.Snapshot, len(snapshot.Concepts))
	for _, c := range snapshot.Concepts {
		conceptsByCode[c.Code] = c
	}

	details, err := s.runDetails(ctx, tx, run.ID)
	if err != nil {
		return nil, err
	}
	loans, err := s.loanAccounts(ctx, tx, details)
	if err != nil {
		return nil, err
	}

	var policy *vacationdomain.VacationPolicy
	postAccruals := pl.VacationPolicyID != nil &&
		(run.Status == nominadomain.StatusApplied || run.Status == nominadomain.StatusPaid)
	if postAccruals {
		policy = &vacationdomain.VacationPolicy{}
		err := tx.WithContext(ctx).Where("id = ?", *pl.VacationPolicyID).First(policy).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, vacationdomain.ErrPolicyNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	b := &builder{debit: decimal.Zero, credit: decimal.Zero}

	for i := range employees {
		emp := employees[i]
		if emp.ErrorMsg != "" {
			continue
		}
		empID := emp.EmployeeID

		if !emp.BaseSalary.IsZero() {
			if pl.SalaryDebit != "" {
				b.post(pl.SalaryDebit, emp.BaseSalary, decimal.Zero, &empID, "", emp.CostCenter, "base salary")
			} else {
				b.warn("planilla has no salary debit account; %s omitted for %s", emp.BaseSalary.String(), emp.EmployeeCode)
			}
			if pl.SalaryCredit != "" {
				b.post(pl.SalaryCredit, decimal.Zero, emp.BaseSalary, &empID, "", emp.CostCenter, "base salary payable")
			} else {
				b.warn("planilla has no salary credit account; %s omitted for %s", emp.BaseSalary.String(), emp.EmployeeCode)
			}
		}

		for _, d := range details[emp.ID] {
			if d.Amount.IsZero() {
				continue
			}

			if d.AdelantoID != nil {
				// Loan withholding reduces what is owed to the employee and
				// moves it onto the loan's own control account. The concept
				// account pair never applies here.
				control := loans[*d.AdelantoID]
				if pl.SalaryCredit != "" {
					b.post(pl.SalaryCredit, d.Amount, decimal.Zero, &empID, d.ConceptCode, emp.CostCenter, d.Description)
				} else {
					b.warn("planilla has no salary credit account; loan installment %s omitted for %s", d.Amount.String(), emp.EmployeeCode)
				}
				if control != "" {
					b.post(control, decimal.Zero, d.Amount, &empID, d.ConceptCode, emp.CostCenter, d.Description)
				} else {
					b.warn("loan %s has no control account; installment %s omitted for %s", d.AdelantoID.String(), d.Amount.String(), emp.EmployeeCode)
				}
				continue
			}

			c, ok := conceptsByCode[d.ConceptCode]
			if !ok {
				b.warn("concept %s missing from run snapshot; %s omitted for %s", d.ConceptCode, d.Amount.String(), emp.EmployeeCode)
				continue
			}
			if c.DebitAccount != "" {
				b.post(c.DebitAccount, d.Amount, decimal.Zero, &empID, c.Code, emp.CostCenter, c.Name)
			} else {
				b.warn("concept %s has no debit account; %s omitted for %s", c.Code, d.Amount.String(), emp.EmployeeCode)
			}
			if c.CreditAccount != "" {
				b.post(c.CreditAccount, decimal.Zero, d.Amount, &empID, c.Code, emp.CostCenter, c.Name)
			} else {
				b.warn("concept %s has no credit account; %s omitted for %s", c.Code, d.Amount.String(), emp.EmployeeCode)
			}
		}

		if postAccruals && !emp.VacationLiability.IsZero() {
			if policy.DebitAccount != "" {
				b.post(policy.DebitAccount, emp.VacationLiability, decimal.Zero, &empID, "", emp.CostCenter, "vacation accrual")
			} else {
				b.warn("vacation policy has no debit account; %s omitted for %s", emp.VacationLiability.String(), emp.EmployeeCode)
			}
			if policy.CreditAccount != "" {
				b.post(policy.CreditAccount, decimal.Zero, emp.VacationLiability, &empID, "", emp.CostCenter, "vacation accrual provision")
			} else {
				b.warn("vacation policy has no credit account; %s omitted for %s", emp.VacationLiability.String(), emp.EmployeeCode)
			}
		}
	}

	diff := b.debit.Sub(b.credit)
	if !diff.IsZero() {
		b.warn("voucher out of balance by %s (debits %s, credits %s)", diff.Abs().String(), b.debit.String(), b.credit.String())
	}
	return b, nil
}

// replaceVoucher upserts the run's voucher and swaps its line set.
func (s *Service) replaceVoucher(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID, b *builder, user string) (*voucherdomain.ComprobanteContable, error) {
	now := s.clock.Now()
	balanced := b.debit.Equal(b.credit)

	var voucher voucherdomain.ComprobanteContable
	err := tx.WithContext(ctx).Where("nomina_id = ?", nominaID).First(&voucher).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		voucher = voucherdomain.ComprobanteContable{
			ID:          s.genID.Generate(),
			NominaID:    nominaID,
			TotalDebit:  b.debit,
			TotalCredit: b.credit,
			Balanced:    balanced,
			Warnings:    b.warnings,
			CreatedBy:   user,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&voucher).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := tx.WithContext(ctx).
			Where("comprobante_id = ?", voucher.ID).
			Delete(&voucherdomain.ComprobanteDetalle{}).Error; err != nil {
			return nil, err
		}
		voucher.TotalDebit = b.debit
		voucher.TotalCredit = b.credit
		voucher.Balanced = balanced
		voucher.Warnings = b.warnings
		voucher.ModifiedCount++
		voucher.ModifiedBy = user
		voucher.ModifiedAt = &now
		voucher.UpdatedAt = now
		if err := tx.WithContext(ctx).Save(&voucher).Error; err != nil {
			return nil, err
		}
	}

	for i := range b.lines {
		b.lines[i].ID = s.genID.Generate()
		b.lines[i].ComprobanteID = voucher.ID
		b.lines[i].CreatedAt = now
	}
	if len(b.lines) > 0 {
		if err := tx.WithContext(ctx).Create(&b.lines).Error; err != nil {
			return nil, err
		}
	}
	return &voucher, nil
}

func (s *Service) Get(ctx context.Context, nominaID snowflake.ID) (*voucherdomain.ComprobanteContable, error) {
	var voucher voucherdomain.ComprobanteContable
	err := s.db.WithContext(ctx).Where("nomina_id = ?", nominaID).First(&voucher).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, voucherdomain.ErrVoucherNotFound
	}
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (s *Service) Lines(ctx context.Context, comprobanteID snowflake.ID) ([]voucherdomain.ComprobanteDetalle, error) {
	var lines []voucherdomain.ComprobanteDetalle
	err := s.db.WithContext(ctx).
		Where("comprobante_id = ?", comprobanteID).
		Order("position").
		Find(&lines).Error
	return lines, err
}

func (s *Service) Summarize(ctx context.Context, comprobanteID snowflake.ID) ([]voucherdomain.SummaryLine, error) {
	var grouped []voucherdomain.SummaryLine
	err := s.db.WithContext(ctx).Raw(
		`SELECT account, cost_center, SUM(debit) AS debit, SUM(credit) AS credit
		 FROM comprobante_detalles
		 WHERE comprobante_id = ?
		 GROUP BY account, cost_center
		 ORDER BY account, cost_center`,
		comprobanteID,
	).Scan(&grouped).Error
	if err != nil {
		return nil, err
	}

	out := make([]voucherdomain.SummaryLine, 0, len(grouped))
	for _, g := range grouped {
		net := g.Debit.Sub(g.Credit)
		if net.IsZero() {
			continue
		}
		line := voucherdomain.SummaryLine{Account: g.Account, CostCenter: g.CostCenter}
		if net.IsPositive() {
			line.Debit = net
			line.Credit = decimal.Zero
		} else {
			line.Debit = decimal.Zero
			line.Credit = net.Neg()
		}
		out = append(out, line)
	}
	return out, nil
}

func (s *Service) DetailByEmployee(ctx context.Context, comprobanteID, employeeID snowflake.ID) ([]voucherdomain.ComprobanteDetalle, error) {
	var lines []voucherdomain.ComprobanteDetalle
	err := s.db.WithContext(ctx).
		Where("comprobante_id = ? AND employee_id = ?", comprobanteID, employeeID).
		Order("position").
		Find(&lines).Error
	return lines, err
}

func (s *Service) ValidateConfiguration(ctx context.Context, planillaID snowflake.ID) ([]voucherdomain.ConfigurationIssue, error) {
	var issues []voucherdomain.ConfigurationIssue

	var pl struct {
		SalaryDebit      string
		SalaryCredit     string
		VacationPolicyID *snowflake.ID
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT salary_debit, salary_credit, vacation_policy_id FROM planillas WHERE id = ?`,
		planillaID,
	).Scan(&pl).Error
	if err != nil {
		return nil, err
	}

	if pl.SalaryDebit == "" {
		issues = append(issues, voucherdomain.ConfigurationIssue{
			Scope: "planilla", Detail: "salary debit account is not set",
		})
	}
	if pl.SalaryCredit == "" {
		issues = append(issues, voucherdomain.ConfigurationIssue{
			Scope: "planilla", Detail: "salary credit account is not set",
		})
	}

	var concepts []struct {
		Code          string
		DebitAccount  string
		CreditAccount string
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT c.code, c.debit_account, c.credit_account
		 FROM concepts c
		 JOIN planilla_conceptos pc ON pc.concept_id = c.id
		 WHERE pc.planilla_id = ? AND pc.active = ?
		 ORDER BY c.code`,
		planillaID, true,
	).Scan(&concepts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range concepts {
		if c.DebitAccount == "" {
			issues = append(issues, voucherdomain.ConfigurationIssue{
				Scope: "concept", Code: c.Code, Detail: "debit account is not set",
			})
		}
		if c.CreditAccount == "" {
			issues = append(issues, voucherdomain.ConfigurationIssue{
				Scope: "concept", Code: c.Code, Detail: "credit account is not set",
			})
		}
	}

	var loans []struct {
		ID snowflake.ID
	}
	err = s.db.WithContext(ctx).Raw(
		`SELECT a.id
		 FROM adelantos a
		 JOIN planilla_empleados pe ON pe.employee_id = a.employee_id
		 WHERE pe.planilla_id = ? AND a.active = ? AND a.control_account = ''`,
		planillaID, true,
	).Scan(&loans).Error
	if err != nil {
		return nil, err
	}
	for _, l := range loans {
		issues = append(issues, voucherdomain.ConfigurationIssue{
			Scope: "adelanto", Code: l.ID.String(), Detail: "control account is not set",
		})
	}

	if pl.VacationPolicyID != nil {
		var policy vacationdomain.VacationPolicy
		err := s.db.WithContext(ctx).Where("id = ?", *pl.VacationPolicyID).First(&policy).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil && policy.Paid {
			if policy.DebitAccount == "" {
				issues = append(issues, voucherdomain.ConfigurationIssue{
					Scope: "vacation_policy", Code: policy.Name, Detail: "debit account is not set",
				})
			}
			if policy.CreditAccount == "" {
				issues = append(issues, voucherdomain.ConfigurationIssue{
					Scope: "vacation_policy", Code: policy.Name, Detail: "credit account is not set",
				})
			}
		}
	}

	return issues, nil
}

// runDetails loads every concept line of a run grouped by employee record.
func (s *Service) runDetails(ctx context.Context, tx *gorm.DB, nominaID snowflake.ID) (map[snowflake.ID][]nominadomain.NominaDetalle, error) {
	var rows []nominadomain.NominaDetalle
	err := tx.WithContext(ctx).
		Where(`nomina_empleado_id IN (SELECT id FROM nomina_empleados WHERE nomina_id = ?)`, nominaID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	grouped := make(map[snowflake.ID][]nominadomain.NominaDetalle)
	for _, r := range rows {
		grouped[r.NominaEmpleadoID] = append(grouped[r.NominaEmpleadoID], r)
	}
	return grouped, nil
}

// loanAccounts maps every referenced loan to its control account.
func (s *Service) loanAccounts(ctx context.Context, tx *gorm.DB, details map[snowflake.ID][]nominadomain.NominaDetalle) (map[snowflake.ID]string, error) {
	ids := make([]snowflake.ID, 0)
	seen := make(map[snowflake.ID]bool)
	for _, lines := range details {
		for _, d := range lines {
			if d.AdelantoID != nil && !seen[*d.AdelantoID] {
				seen[*d.AdelantoID] = true
				ids = append(ids, *d.AdelantoID)
			}
		}
	}
	if len(ids) == 0 {
		return map[snowflake.ID]string{}, nil
	}

	var loans []adelantodomain.Adelanto
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&loans).Error; err != nil {
		return nil, err
	}
	accounts := make(map[snowflake.ID]string, len(loans))
	for _, l := range loans {
		accounts[l.ID] = l.ControlAccount
	}
	return accounts, nil
}
