package seed

import (
	"context"

	"github.com/andeanpay/nomina/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, db *gorm.DB, log *zap.Logger) {
		if !cfg.SeedDemoData {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Named("seed").Info("seeding demo payroll data")
				return EnsureDemoData(db.WithContext(ctx))
			},
		})
	}),
)
