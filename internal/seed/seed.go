package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	currencydomain "github.com/andeanpay/nomina/internal/currency/domain"
	employeedomain "github.com/andeanpay/nomina/internal/employee/domain"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const demoPlanillaName = "Planilla General"

// EnsureDemoData seeds a small working payroll configuration for local
// development: currencies, a rate, a planilla with linked concepts, a
// vacation policy and a handful of employees. Every ensure step is keyed on
// a natural identifier, so repeated startups change nothing.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCurrencies(ctx, tx, node); err != nil {
			return err
		}
		policy, err := ensureVacationPolicy(ctx, tx, node)
		if err != nil {
			return err
		}
		pl, err := ensurePlanilla(ctx, tx, node, policy.ID)
		if err != nil {
			return err
		}
		if err := ensureConcepts(ctx, tx, node, pl.ID); err != nil {
			return err
		}
		return ensureEmployees(ctx, tx, node, pl.ID)
	})
}

func ensureCurrencies(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	currencies := []currencydomain.Currency{
		{Code: "NIO", Name: "Córdoba", Symbol: "C$"},
		{Code: "USD", Name: "US Dollar", Symbol: "$"},
	}
	for _, c := range currencies {
		var existing currencydomain.Currency
		err := tx.WithContext(ctx).Where("code = ?", c.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		c.ID = node.Generate()
		if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
			return err
		}
	}

	var count int64
	if err := tx.WithContext(ctx).Model(&currencydomain.ExchangeRate{}).
		Where("source = ? AND target = ?", "USD", "NIO").
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		rate := currencydomain.ExchangeRate{
			ID:          node.Generate(),
			Source:      "USD",
			Target:      "NIO",
			Rate:        decimal.RequireFromString("36.624400"),
			EffectiveAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := tx.WithContext(ctx).Create(&rate).Error; err != nil {
			return err
		}
	}
	return nil
}

func ensureVacationPolicy(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (*vacationdomain.VacationPolicy, error) {
	var policy vacationdomain.VacationPolicy
	err := tx.WithContext(ctx).Where("name = ?", "Vacaciones de ley").First(&policy).Error
	if err == nil {
		return &policy, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	policy = vacationdomain.VacationPolicy{
		ID:              node.Generate(),
		Name:            "Vacaciones de ley",
		Method:          vacationdomain.AccrualPeriodic,
		AccrualRate:     decimal.RequireFromString("2.50"),
		FrequencyDays:   30,
		Paid:            true,
		BaseDaysDivisor: 30,
		DebitAccount:    "6105",
		CreditAccount:   "2105",
	}
	if err := tx.WithContext(ctx).Create(&policy).Error; err != nil {
		return nil, err
	}
	return &policy, nil
}

func ensurePlanilla(ctx context.Context, tx *gorm.DB, node *snowflake.Node, policyID snowflake.ID) (*planilladomain.Planilla, error) {
	var pl planilladomain.Planilla
	err := tx.WithContext(ctx).Where("name = ?", demoPlanillaName).First(&pl).Error
	if err == nil {
		return &pl, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pl = planilladomain.Planilla{
		ID:               node.Generate(),
		CompanyID:        node.Generate(),
		Name:             demoPlanillaName,
		Currency:         "NIO",
		Periodicity:      planilladomain.PeriodicityMonthly,
		PeriodDays:       30,
		BaseDays:         30,
		SalaryDebit:      "6101",
		SalaryCredit:     "2101",
		VacationPolicyID: &policyID,
	}
	if err := tx.WithContext(ctx).Create(&pl).Error; err != nil {
		return nil, err
	}
	return &pl, nil
}

func ensureConcepts(ctx context.Context, tx *gorm.DB, node *snowflake.Node, planillaID snowflake.ID) error {
	concepts := []struct {
		concept  conceptdomain.Concept
		position int
	}{
		{conceptdomain.Concept{
			Code: "HE", Name: "Horas extra", Kind: conceptdomain.KindIncome,
			FormulaType:  conceptdomain.FormulaEvent,
			Status:       conceptdomain.StatusApproved,
			DebitAccount: "6102", CreditAccount: "2101",
		}, 1},
		{conceptdomain.Concept{
			Code: "INSS", Name: "INSS laboral", Kind: conceptdomain.KindDeduction,
			FormulaType:  conceptdomain.FormulaPercentage,
			Percent:      decimal.RequireFromString("7.00"),
			Status:       conceptdomain.StatusApproved,
			DebitAccount: "2101", CreditAccount: "2102",
		}, 2},
		{conceptdomain.Concept{
			Code: "INATEC", Name: "Aporte INATEC", Kind: conceptdomain.KindBenefit,
			FormulaType:  conceptdomain.FormulaPercentage,
			Percent:      decimal.RequireFromString("2.00"),
			Status:       conceptdomain.StatusApproved,
			DebitAccount: "6103", CreditAccount: "2103",
		}, 3},
	}

	for _, entry := range concepts {
		var existing conceptdomain.Concept
		err := tx.WithContext(ctx).Where("code = ?", entry.concept.Code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry.concept.ID = node.Generate()
			if err := tx.WithContext(ctx).Create(&entry.concept).Error; err != nil {
				return err
			}
			existing = entry.concept
		} else if err != nil {
			return err
		}

		var linked int64
		err = tx.WithContext(ctx).Model(&planilladomain.PlanillaConcepto{}).
			Where("planilla_id = ? AND concept_id = ?", planillaID, existing.ID).
			Count(&linked).Error
		if err != nil {
			return err
		}
		if linked == 0 {
			link := planilladomain.PlanillaConcepto{
				ID:         node.Generate(),
				PlanillaID: planillaID,
				ConceptID:  existing.ID,
				Active:     true,
				Editable:   true,
				Position:   entry.position,
			}
			if err := tx.WithContext(ctx).Create(&link).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureEmployees(ctx context.Context, tx *gorm.DB, node *snowflake.Node, planillaID snowflake.ID) error {
	employees := []employeedomain.Employee{
		{
			Code: "E001", Name: "María Robles", Active: true,
			MonthlySalary:   decimal.RequireFromString("30000.00"),
			Currency:        "NIO",
			CostCenter:      "ADMIN",
			FiscalStartDate: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Code: "E002", Name: "Carlos Mendoza", Active: true,
			MonthlySalary:   decimal.RequireFromString("850.00"),
			Currency:        "USD",
			CostCenter:      "VENTAS",
			FiscalStartDate: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, emp := range employees {
		var existing employeedomain.Employee
		err := tx.WithContext(ctx).Where("code = ?", emp.Code).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			emp.ID = node.Generate()
			emp.CompanyID = planillaID
			if err := tx.WithContext(ctx).Create(&emp).Error; err != nil {
				return err
			}
			existing = emp
		} else if err != nil {
			return err
		}

		var linked int64
		err = tx.WithContext(ctx).Model(&planilladomain.PlanillaEmpleado{}).
			Where("planilla_id = ? AND employee_id = ?", planillaID, existing.ID).
			Count(&linked).Error
		if err != nil {
			return err
		}
		if linked == 0 {
			link := planilladomain.PlanillaEmpleado{
				ID:         node.Generate(),
				PlanillaID: planillaID,
				EmployeeID: existing.ID,
				Active:     true,
			}
			if err := tx.WithContext(ctx).Create(&link).Error; err != nil {
				return err
			}
		}
	}

	// One outstanding advance so loan withholding shows up in demo runs.
	var emp employeedomain.Employee
	if err := tx.WithContext(ctx).Where("code = ?", "E001").First(&emp).Error; err != nil {
		return err
	}
	var loans int64
	err := tx.WithContext(ctx).Model(&adelantodomain.Adelanto{}).
		Where("employee_id = ?", emp.ID).
		Count(&loans).Error
	if err != nil {
		return err
	}
	if loans == 0 {
		loan := adelantodomain.Adelanto{
			ID:             node.Generate(),
			EmployeeID:     emp.ID,
			Description:    "Adelanto de salario",
			Principal:      decimal.RequireFromString("6000.00"),
			Balance:        decimal.RequireFromString("6000.00"),
			Installment:    decimal.RequireFromString("1000.00"),
			ControlAccount: "1305",
			Active:         true,
		}
		if err := tx.WithContext(ctx).Create(&loan).Error; err != nil {
			return err
		}
	}
	return nil
}
