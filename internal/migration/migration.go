package migration

import (
	"context"

	adelantodomain "github.com/andeanpay/nomina/internal/adelanto/domain"
	auditdomain "github.com/andeanpay/nomina/internal/audit/domain"
	conceptdomain "github.com/andeanpay/nomina/internal/concept/domain"
	currencydomain "github.com/andeanpay/nomina/internal/currency/domain"
	employeedomain "github.com/andeanpay/nomina/internal/employee/domain"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	planilladomain "github.com/andeanpay/nomina/internal/planilla/domain"
	queuedomain "github.com/andeanpay/nomina/internal/queue/domain"
	vacationdomain "github.com/andeanpay/nomina/internal/vacation/domain"
	voucherdomain "github.com/andeanpay/nomina/internal/voucher/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models is the full schema, in dependency order.
func Models() []any {
	return []any{
		&currencydomain.Currency{},
		&currencydomain.ExchangeRate{},
		&employeedomain.Employee{},
		&conceptdomain.Concept{},
		&vacationdomain.VacationPolicy{},
		&vacationdomain.VacationAccount{},
		&vacationdomain.VacationLedger{},
		&planilladomain.Planilla{},
		&planilladomain.PlanillaConcepto{},
		&planilladomain.PlanillaEmpleado{},
		&adelantodomain.Adelanto{},
		&adelantodomain.AdelantoAbono{},
		&nominadomain.Nomina{},
		&nominadomain.NominaEmpleado{},
		&nominadomain.NominaDetalle{},
		&nominadomain.NominaNovedad{},
		&voucherdomain.ComprobanteContable{},
		&voucherdomain.ComprobanteDetalle{},
		&auditdomain.AuditLog{},
		&queuedomain.Job{},
	}
}

// Run applies the schema with gorm's auto migrator.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

var Module = fx.Module("migration",
	fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				log.Named("migration").Info("applying database schema")
				return Run(db.WithContext(ctx))
			},
		})
	}),
)
