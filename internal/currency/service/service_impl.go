package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/andeanpay/nomina/internal/clock"
	currencydomain "github.com/andeanpay/nomina/internal/currency/domain"
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

func NewService(p Params) currencydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("currency.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

var one = decimal.NewFromInt(1)

func (s *Service) Resolve(ctx context.Context, tx *gorm.DB, source, target string, asOf time.Time) (decimal.Decimal, error) {
	source = strings.ToUpper(strings.TrimSpace(source))
	target = strings.ToUpper(strings.TrimSpace(target))
	if source == "" || target == "" {
		return decimal.Zero, currencydomain.ErrInvalidCurrency
	}
	if source == target {
		return one, nil
	}
	if tx == nil {
		tx = s.db
	}

	var rate currencydomain.ExchangeRate
	err := tx.WithContext(ctx).Raw(
		`SELECT id, source, target, rate, effective_at
		 FROM exchange_rates
		 WHERE source = ? AND target = ? AND effective_at <= ?
		 ORDER BY effective_at DESC
		 LIMIT 1`,
		source,
		target,
		asOf.UTC(),
	).Scan(&rate).Error
	if err != nil {
		return decimal.Zero, err
	}
	if rate.ID == 0 {
		return decimal.Zero, &currencydomain.MissingRateError{Source: source, Target: target, AsOf: asOf}
	}
	return rate.Rate, nil
}

func (s *Service) Upsert(ctx context.Context, rate *currencydomain.ExchangeRate) error {
	if rate == nil || rate.Source == "" || rate.Target == "" {
		return currencydomain.ErrInvalidCurrency
	}
	if !rate.Rate.IsPositive() {
		return currencydomain.ErrInvalidRate
	}
	rate.Source = strings.ToUpper(strings.TrimSpace(rate.Source))
	rate.Target = strings.ToUpper(strings.TrimSpace(rate.Target))
	if rate.ID == 0 {
		rate.ID = s.genID.Generate()
	}
	if rate.EffectiveAt.IsZero() {
		rate.EffectiveAt = s.clock.Now()
	}
	return s.db.WithContext(ctx).Save(rate).Error
}
