package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/andeanpay/nomina/internal/clock"
	currencydomain "github.com/andeanpay/nomina/internal/currency/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, currencydomain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&currencydomain.Currency{}, &currencydomain.ExchangeRate{}))

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))})
	return db, svc, node
}

func seedRate(t *testing.T, db *gorm.DB, node *snowflake.Node, source, target, rate string, effective time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&currencydomain.ExchangeRate{
		ID:          node.Generate(),
		Source:      source,
		Target:      target,
		Rate:        decimal.RequireFromString(rate),
		EffectiveAt: effective,
	}).Error)
}

func TestResolve_IdentityPairNeedsNoRate(t *testing.T) {
	_, svc, _ := newTestService(t)

	rate, err := svc.Resolve(context.Background(), nil, "NIO", "NIO", time.Now())
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestResolve_PicksNewestRateOnOrBeforeAsOf(t *testing.T) {
	db, svc, node := newTestService(t)

	jan1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jan20 := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	seedRate(t, db, node, "USD", "NIO", "36.500000", jan1)
	seedRate(t, db, node, "USD", "NIO", "37.000000", jan20)
	seedRate(t, db, node, "USD", "NIO", "38.000000", feb1)

	rate, err := svc.Resolve(context.Background(), nil, "USD", "NIO", time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("37")), "future rates never apply")

	rate, err = svc.Resolve(context.Background(), nil, "usd", "nio", jan20)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("37")), "a rate effective exactly on the as-of date applies")
}

func TestResolve_MissingRateIsTyped(t *testing.T) {
	_, svc, _ := newTestService(t)

	asOf := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := svc.Resolve(context.Background(), nil, "EUR", "NIO", asOf)
	require.Error(t, err)
	assert.ErrorIs(t, err, currencydomain.ErrMissingRate)

	var missing *currencydomain.MissingRateError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "EUR", missing.Source)
	assert.Equal(t, "NIO", missing.Target)
	assert.Contains(t, missing.Error(), "2026-01-15")
}

func TestResolve_DirectionMatters(t *testing.T) {
	db, svc, node := newTestService(t)

	seedRate(t, db, node, "USD", "NIO", "36.500000", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := svc.Resolve(context.Background(), nil, "NIO", "USD", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, currencydomain.ErrMissingRate, "inverse pairs are never derived")
}

func TestUpsert_RejectsNonPositiveRates(t *testing.T) {
	_, svc, _ := newTestService(t)

	err := svc.Upsert(context.Background(), &currencydomain.ExchangeRate{
		Source: "USD", Target: "NIO",
		Rate:        decimal.Zero,
		EffectiveAt: time.Now(),
	})
	assert.ErrorIs(t, err, currencydomain.ErrInvalidRate)
}
