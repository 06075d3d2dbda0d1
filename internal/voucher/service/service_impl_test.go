package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	adelantoservice "github.com/andeanpay/nomina/internal/adelanto/service"
	auditservice "github.com/andeanpay/nomina/internal/audit/service"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/internal/config"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	currencyservice "github.com/andeanpay/nomina/internal/currency/service"
	employeedomain "github.com/andeanpay/nomina/internal/employee/domain"
	"github.com/andeanpay/nomina/internal/migration"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	nominaservice "github.com/andeanpay/nomina/internal/nomina/service"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	planillaservice "github.com/andeanpay/nomina/internal/planilla/service"
	queueservice "github.com/andeanpay/nomina/internal/queue/service"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	vacationservice "github.com/andeanpay/nomina/internal/vacation/service"
	voucherdomain "github.com/andeanpay/nomina/internal/voucher/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testHarness struct {
	db      *gorm.DB
	node    *snowflake.Node
	nomina  nominadomain.Service
	voucher voucherdomain.Service
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.Run(db))

	node, _ := snowflake.NewNode(1)
	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	holder := config.NewStaticPayrollConfigHolder(config.PayrollConfig{
		AsyncThreshold:  100,
		DefaultBaseDays: 30,
	})
	log := zap.NewNop()

	auditSvc := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	planillaSvc := planillaservice.NewService(planillaservice.Params{DB: db, Log: log})
	currencySvc := currencyservice.NewService(currencyservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	adelantoSvc := adelantoservice.NewService(adelantoservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	vacationSvc := vacationservice.NewService(vacationservice.Params{DB: db, Log: log, GenID: node, Clock: fake})
	queueSvc := queueservice.NewService(queueservice.Params{DB: db, Log: log, GenID: node, Clock: fake})

	nominaSvc := nominaservice.NewService(nominaservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Holder:      holder,
		PlanillaSvc: planillaSvc,
		CurrencySvc: currencySvc,
		AdelantoSvc: adelantoSvc,
		VacationSvc: vacationSvc,
		QueueSvc:    queueSvc,
		AuditSvc:    auditSvc,
	})
	voucherSvc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		NominaSvc: nominaSvc,
	})

	return &testHarness{db: db, node: node, nomina: nominaSvc, voucher: voucherSvc}
}

var (
	jan1  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jan30 = time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	y2025 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func (h *testHarness) seedPlanilla(t *testing.T) *planilladomain.Planilla {
	t.Helper()
	pl := &planilladomain.Planilla{
		ID:           h.node.Generate(),
		CompanyID:    h.node.Generate(),
		Name:         "general",
		Currency:     "NIO",
		Periodicity:  planilladomain.PeriodicityMonthly,
		PeriodDays:   30,
		BaseDays:     30,
		SalaryDebit:  "6101",
		SalaryCredit: "2101",
	}
	require.NoError(t, h.db.Create(pl).Error)
	return pl
}

func (h *testHarness) seedEmployee(t *testing.T, pl *planilladomain.Planilla, code, salary, costCenter string) *employeedomain.Employee {
	t.Helper()
	emp := &employeedomain.Employee{
		ID:              h.node.Generate(),
		CompanyID:       pl.CompanyID,
		Code:            code,
		Name:            "employee " + code,
		Active:          true,
		MonthlySalary:   decimal.RequireFromString(salary),
		Currency:        "NIO",
		CostCenter:      costCenter,
		FiscalStartDate: y2025,
	}
	require.NoError(t, h.db.Create(emp).Error)
	require.NoError(t, h.db.Create(&planilladomain.PlanillaEmpleado{
		ID:         h.node.Generate(),
		PlanillaID: pl.ID,
		EmployeeID: emp.ID,
		Active:     true,
	}).Error)
	return emp
}

func (h *testHarness) seedConcept(t *testing.T, pl *planilladomain.Planilla, c conceptdomain.Concept, position int) *conceptdomain.Concept {
	t.Helper()
	c.ID = h.node.Generate()
	if c.Status == "" {
		c.Status = conceptdomain.StatusApproved
	}
	require.NoError(t, h.db.Create(&c).Error)
	require.NoError(t, h.db.Create(&planilladomain.PlanillaConcepto{
		ID:         h.node.Generate(),
		PlanillaID: pl.ID,
		ConceptID:  c.ID,
		Active:     true,
		Position:   position,
	}).Error)
	return &c
}

func (h *testHarness) execute(t *testing.T, pl *planilladomain.Planilla) *nominadomain.Nomina {
	t.Helper()
	run, err := h.nomina.Execute(context.Background(), nominadomain.ExecuteRequest{
		PlanillaID:      pl.ID,
		PeriodStart:     jan1,
		PeriodEnd:       jan30,
		CalculationDate: jan30,
		User:            "tester",
	})
	require.NoError(t, err)
	return run
}

func TestGenerate_BalancedVoucher(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")
	h.seedConcept(t, pl, conceptdomain.Concept{
		Code: "INSS", Name: "social security", Kind: conceptdomain.KindDeduction,
		FormulaType: conceptdomain.FormulaPercentage,
		Percent:     decimal.RequireFromString("7.00"),
		DebitAccount: "2101", CreditAccount: "2102",
	}, 1)

	run := h.execute(t, pl)

	voucher, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)

	assert.True(t, voucher.Balanced)
	assert.True(t, voucher.TotalDebit.Equal(voucher.TotalCredit), "debits equal credits")
	assert.Equal(t, "10700.00", voucher.TotalDebit.StringFixed(2))
	assert.Empty(t, voucher.Warnings)

	lines, err := h.voucher.Lines(context.Background(), voucher.ID)
	require.NoError(t, err)
	require.Len(t, lines, 4)
	for _, l := range lines {
		oneSided := (l.Debit.IsZero() && !l.Credit.IsZero()) || (!l.Debit.IsZero() && l.Credit.IsZero())
		assert.True(t, oneSided, "each line posts exactly one side")
	}
}

func TestGenerate_LoanPostsAgainstControlAccount(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	emp := h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")

	require.NoError(t, h.db.Create(&adelantodomain.Adelanto{
		ID:             h.node.Generate(),
		EmployeeID:     emp.ID,
		Description:    "salary advance",
		Principal:      decimal.RequireFromString("1000.00"),
		Balance:        decimal.RequireFromString("1000.00"),
		Installment:    decimal.RequireFromString("250.00"),
		ControlAccount: "1305",
		Active:         true,
	}).Error)

	run := h.execute(t, pl)
	voucher, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)
	assert.True(t, voucher.Balanced)

	lines, err := h.voucher.Lines(context.Background(), voucher.ID)
	require.NoError(t, err)

	var controlCredit, payableDebit decimal.Decimal
	for _, l := range lines {
		if l.Account == "1305" {
			controlCredit = controlCredit.Add(l.Credit)
		}
		if l.Account == "2101" && !l.Debit.IsZero() {
			payableDebit = payableDebit.Add(l.Debit)
		}
	}
	assert.Equal(t, "250.00", controlCredit.StringFixed(2), "installment credited to the loan control account")
	assert.Equal(t, "250.00", payableDebit.StringFixed(2), "withholding reduces salary payable")
}

func TestGenerate_MissingAccountYieldsImbalanceWarning(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")
	h.seedConcept(t, pl, conceptdomain.Concept{
		Code: "BONO", Name: "bonus", Kind: conceptdomain.KindIncome,
		FormulaType: conceptdomain.FormulaFixed,
		Amount:      decimal.RequireFromString("500.00"),
		DebitAccount: "6102",
	}, 1)

	run := h.execute(t, pl)
	voucher, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err, "imbalance is reported, not fatal")

	assert.False(t, voucher.Balanced)
	assert.Equal(t, "500.00", voucher.TotalDebit.Sub(voucher.TotalCredit).StringFixed(2))

	var foundDiff, foundAccount bool
	for _, w := range voucher.Warnings {
		if strings.Contains(w, "out of balance") && strings.Contains(w, "500") {
			foundDiff = true
		}
		if strings.Contains(w, "BONO") && strings.Contains(w, "credit account") {
			foundAccount = true
		}
	}
	assert.True(t, foundDiff, "warning names the numeric difference")
	assert.True(t, foundAccount, "warning names the unconfigured concept")
}

func TestGenerate_ReplacesExistingVoucher(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")

	run := h.execute(t, pl)

	first, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)
	second, err := h.voucher.Generate(context.Background(), run.ID, "reviewer")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "one voucher per run")
	assert.Equal(t, 1, second.ModifiedCount)
	assert.Equal(t, "reviewer", second.ModifiedBy)
	require.NotNil(t, second.ModifiedAt)

	var voucherCount, lineCount int64
	h.db.Model(&voucherdomain.ComprobanteContable{}).Count(&voucherCount)
	h.db.Model(&voucherdomain.ComprobanteDetalle{}).Where("comprobante_id = ?", first.ID).Count(&lineCount)
	assert.EqualValues(t, 1, voucherCount)
	assert.EqualValues(t, 2, lineCount, "lines replaced, not appended")
}

func TestGenerate_RefusesUnfinishedRun(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)

	busy := &nominadomain.Nomina{
		ID:          h.node.Generate(),
		PlanillaID:  pl.ID,
		PeriodStart: jan1,
		PeriodEnd:   jan30,
		Status:      nominadomain.StatusCalculating,
	}
	require.NoError(t, h.db.Create(busy).Error)

	_, err := h.voucher.Generate(context.Background(), busy.ID, "tester")
	assert.ErrorIs(t, err, voucherdomain.ErrRunNotReady)
}

func TestGenerate_AppliedRunPostsVacationPair(t *testing.T) {
	h := newTestHarness(t)

	policy := &vacationdomain.VacationPolicy{
		ID:              h.node.Generate(),
		Name:            "statutory",
		Method:          vacationdomain.AccrualPeriodic,
		AccrualRate:     decimal.RequireFromString("2.50"),
		FrequencyDays:   30,
		Paid:            true,
		BaseDaysDivisor: 30,
		DebitAccount:    "6105",
		CreditAccount:   "2105",
	}
	require.NoError(t, h.db.Create(policy).Error)

	pl := h.seedPlanilla(t)
	pl.VacationPolicyID = &policy.ID
	require.NoError(t, h.db.Save(pl).Error)
	h.seedEmployee(t, pl, "E001", "30000.00", "CC-01")

	run := h.execute(t, pl)

	// Before apply the accrual is only a snapshot: no provision lines.
	voucher, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)
	lines, err := h.voucher.Lines(context.Background(), voucher.ID)
	require.NoError(t, err)
	for _, l := range lines {
		assert.NotEqual(t, "2105", l.Account)
	}

	_, err = h.nomina.Approve(context.Background(), run.ID, "tester")
	require.NoError(t, err)
	_, err = h.nomina.ApplyRun(context.Background(), run.ID, "tester")
	require.NoError(t, err)

	voucher, err = h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)
	assert.True(t, voucher.Balanced)

	lines, err = h.voucher.Lines(context.Background(), voucher.ID)
	require.NoError(t, err)
	var provision decimal.Decimal
	for _, l := range lines {
		if l.Account == "2105" {
			provision = provision.Add(l.Credit)
		}
	}
	assert.Equal(t, "2500.00", provision.StringFixed(2))
}

func TestSummarize_NetsGroupsAndDropsZero(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")
	h.seedEmployee(t, pl, "E002", "5000.00", "CC-02")
	// Debit and credit on the same account cancel exactly per group.
	h.seedConcept(t, pl, conceptdomain.Concept{
		Code: "WASH", Name: "offset", Kind: conceptdomain.KindDeduction,
		FormulaType: conceptdomain.FormulaFixed,
		Amount:      decimal.RequireFromString("100.00"),
		DebitAccount: "2199", CreditAccount: "2199",
	}, 1)

	run := h.execute(t, pl)
	voucher, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)

	summary, err := h.voucher.Summarize(context.Background(), voucher.ID)
	require.NoError(t, err)

	for _, line := range summary {
		assert.NotEqual(t, "2199", line.Account, "zero-net group dropped")
	}

	// Ordered by account then cost center: 2101 before 6101, CC-01 before CC-02.
	require.Len(t, summary, 4)
	assert.Equal(t, "2101", summary[0].Account)
	assert.Equal(t, "CC-01", summary[0].CostCenter)
	assert.Equal(t, "2101", summary[1].Account)
	assert.Equal(t, "CC-02", summary[1].CostCenter)
	assert.Equal(t, "6101", summary[2].Account)
	assert.Equal(t, "10000.00", summary[2].Debit.StringFixed(2))
}

func TestDetailByEmployee_FiltersLines(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	e1 := h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")
	h.seedEmployee(t, pl, "E002", "5000.00", "CC-02")

	run := h.execute(t, pl)
	voucher, err := h.voucher.Generate(context.Background(), run.ID, "tester")
	require.NoError(t, err)

	lines, err := h.voucher.DetailByEmployee(context.Background(), voucher.ID, e1.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		require.NotNil(t, l.EmployeeID)
		assert.Equal(t, e1.ID, *l.EmployeeID)
	}
}

func TestValidateConfiguration_ReportsMissingAccounts(t *testing.T) {
	h := newTestHarness(t)
	pl := h.seedPlanilla(t)
	pl.SalaryCredit = ""
	require.NoError(t, h.db.Save(pl).Error)

	emp := h.seedEmployee(t, pl, "E001", "10000.00", "CC-01")
	h.seedConcept(t, pl, conceptdomain.Concept{
		Code: "BONO", Name: "bonus", Kind: conceptdomain.KindIncome,
		FormulaType: conceptdomain.FormulaFixed,
		Amount:      decimal.RequireFromString("500.00"),
	}, 1)
	require.NoError(t, h.db.Create(&adelantodomain.Adelanto{
		ID:          h.node.Generate(),
		EmployeeID:  emp.ID,
		Principal:   decimal.RequireFromString("1000.00"),
		Balance:     decimal.RequireFromString("1000.00"),
		Installment: decimal.RequireFromString("100.00"),
		Active:      true,
	}).Error)

	issues, err := h.voucher.ValidateConfiguration(context.Background(), pl.ID)
	require.NoError(t, err)

	scopes := map[string]int{}
	for _, i := range issues {
		scopes[i.Scope]++
	}
	assert.Equal(t, 1, scopes["planilla"], "missing salary credit account")
	assert.Equal(t, 2, scopes["concept"], "bonus lacks both accounts")
	assert.Equal(t, 1, scopes["adelanto"], "loan lacks a control account")
}
