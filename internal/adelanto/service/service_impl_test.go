package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	"github.com/andeanpay/nomina/internal/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, adelantodomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&adelantodomain.Adelanto{}, &adelantodomain.AdelantoAbono{}))

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))})
	return db, svc, node
}

func seedLoan(t *testing.T, db *gorm.DB, node *snowflake.Node, employeeID snowflake.ID, balance, installment string) *adelantodomain.Adelanto {
	t.Helper()
	loan := &adelantodomain.Adelanto{
		ID:             node.Generate(),
		EmployeeID:     employeeID,
		Description:    "advance",
		Principal:      decimal.RequireFromString(balance),
		Balance:        decimal.RequireFromString(balance),
		Installment:    decimal.RequireFromString(installment),
		ControlAccount: "1305",
		Active:         true,
	}
	require.NoError(t, db.Create(loan).Error)
	return loan
}

func TestActiveLoans_SkipsSettledAndInactive(t *testing.T) {
	db, svc, node := newTestService(t)
	employeeID := node.Generate()

	open := seedLoan(t, db, node, employeeID, "500.00", "100.00")
	settled := seedLoan(t, db, node, employeeID, "300.00", "100.00")
	require.NoError(t, db.Model(settled).Update("balance", decimal.Zero).Error)
	inactive := seedLoan(t, db, node, employeeID, "200.00", "50.00")
	require.NoError(t, db.Model(inactive).Update("active", false).Error)

	loans, err := svc.ActiveLoans(context.Background(), db, employeeID)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, open.ID, loans[0].ID)
}

func TestInstallmentDue_CapsAtBalance(t *testing.T) {
	loan := adelantodomain.Adelanto{
		Balance:     decimal.RequireFromString("80.00"),
		Installment: decimal.RequireFromString("150.00"),
	}
	assert.Equal(t, "80.00", loan.InstallmentDue().StringFixed(2))

	loan.Balance = decimal.RequireFromString("500.00")
	assert.Equal(t, "150.00", loan.InstallmentDue().StringFixed(2))
}

func TestRecordInstallment_DecrementsAndDeactivates(t *testing.T) {
	db, svc, node := newTestService(t)
	employeeID := node.Generate()
	nominaID := node.Generate()
	loan := seedLoan(t, db, node, employeeID, "100.00", "100.00")

	paidAt := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordInstallment(context.Background(), tx, loan, nominaID, decimal.RequireFromString("100.00"), paidAt)
	})
	require.NoError(t, err)

	var reloaded adelantodomain.Adelanto
	require.NoError(t, db.First(&reloaded, "id = ?", loan.ID).Error)
	assert.Equal(t, "0.00", reloaded.Balance.StringFixed(2))
	assert.False(t, reloaded.Active)
	assert.True(t, reloaded.UpdatedAt.Equal(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)), "updated_at comes from the injected clock")

	var abonos []adelantodomain.AdelantoAbono
	require.NoError(t, db.Find(&abonos).Error)
	require.Len(t, abonos, 1)
	assert.Equal(t, nominaID, abonos[0].NominaID)
	assert.Equal(t, employeeID, abonos[0].EmployeeID)
}

func TestDeleteRunInstallments_RestoresBalances(t *testing.T) {
	db, svc, node := newTestService(t)
	employeeID := node.Generate()
	nominaID := node.Generate()
	otherRun := node.Generate()
	loan := seedLoan(t, db, node, employeeID, "500.00", "200.00")

	paidAt := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := svc.RecordInstallment(context.Background(), tx, loan, nominaID, decimal.RequireFromString("200.00"), paidAt); err != nil {
			return err
		}
		return svc.RecordInstallment(context.Background(), tx, loan, otherRun, decimal.RequireFromString("200.00"), paidAt)
	}))

	var before adelantodomain.Adelanto
	require.NoError(t, db.First(&before, "id = ?", loan.ID).Error)
	require.Equal(t, "100.00", before.Balance.StringFixed(2))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.DeleteRunInstallments(context.Background(), tx, nominaID)
	}))

	var after adelantodomain.Adelanto
	require.NoError(t, db.First(&after, "id = ?", loan.ID).Error)
	assert.Equal(t, "300.00", after.Balance.StringFixed(2), "only the superseded run's withholding restored")
	assert.True(t, after.Active)

	var remaining []adelantodomain.AdelantoAbono
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, otherRun, remaining[0].NominaID)
}
