package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/andeanpay/nomina/internal/clock"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, vacationdomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&vacationdomain.VacationPolicy{},
		&vacationdomain.VacationAccount{},
		&vacationdomain.VacationLedger{},
	))

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)),
	})
	return db, svc, node
}

func TestApply_CreatesAccountAndLedgerEntry(t *testing.T) {
	db, svc, node := newTestService(t)

	policyID := node.Generate()
	employeeID := node.Generate()
	refID := node.Generate()

	err := svc.Apply(context.Background(), db, vacationdomain.ApplyRequest{
		PolicyID:    policyID,
		EmployeeID:  employeeID,
		ReferenceID: refID,
		Units:       decimal.RequireFromString("1.00"),
		Liability:   decimal.RequireFromString("1000.00"),
		User:        "tester",
	})
	require.NoError(t, err)

	var entries []vacationdomain.VacationLedger
	db.Find(&entries)
	require.Len(t, entries, 1)
	assert.Equal(t, vacationdomain.SourcePayroll, entries[0].Source)
	assert.Equal(t, refID, entries[0].ReferenceID)
	assert.True(t, entries[0].CreatedAt.Equal(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)), "timestamps come from the injected clock")

	balance, err := svc.Balance(context.Background(), policyID, employeeID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", balance.StringFixed(2))
}

func TestApply_SecondApplyIsRejectedNotDuplicated(t *testing.T) {
	db, svc, node := newTestService(t)

	policyID := node.Generate()
	employeeID := node.Generate()
	refID := node.Generate()

	req := vacationdomain.ApplyRequest{
		PolicyID:    policyID,
		EmployeeID:  employeeID,
		ReferenceID: refID,
		Units:       decimal.RequireFromString("1.00"),
	}
	require.NoError(t, svc.Apply(context.Background(), db, req))

	err := svc.Apply(context.Background(), db, req)
	assert.ErrorIs(t, err, vacationdomain.ErrDuplicateAccrual)

	var count int64
	db.Model(&vacationdomain.VacationLedger{}).Count(&count)
	assert.EqualValues(t, 1, count, "exactly one ledger entry per (account, reference)")

	balance, err := svc.Balance(context.Background(), policyID, employeeID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", balance.StringFixed(2), "balance not double-counted")
}

func TestApply_ZeroAccrualIsNoOp(t *testing.T) {
	db, svc, node := newTestService(t)

	err := svc.Apply(context.Background(), db, vacationdomain.ApplyRequest{
		PolicyID:    node.Generate(),
		EmployeeID:  node.Generate(),
		ReferenceID: node.Generate(),
		Units:       decimal.Zero,
		Liability:   decimal.Zero,
	})
	require.NoError(t, err)

	var count int64
	db.Model(&vacationdomain.VacationLedger{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestBalance_SumsAccrualsAcrossRuns(t *testing.T) {
	db, svc, node := newTestService(t)

	policyID := node.Generate()
	employeeID := node.Generate()

	for i := 0; i < 3; i++ {
		err := svc.Apply(context.Background(), db, vacationdomain.ApplyRequest{
			PolicyID:    policyID,
			EmployeeID:  employeeID,
			ReferenceID: node.Generate(),
			Units:       decimal.RequireFromString("1.25"),
		})
		require.NoError(t, err)
	}

	balance, err := svc.Balance(context.Background(), policyID, employeeID)
	require.NoError(t, err)
	assert.Equal(t, "3.75", balance.StringFixed(2))
}
