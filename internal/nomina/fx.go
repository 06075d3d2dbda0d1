package nomina

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/andeanpay/nomina/internal/config"
	nominadomain "github.com/andeanpay/nomina/internal/nomina/domain"
	"github.com/andeanpay/nomina/internal/nomina/service"
	queuedomain "github.com/andeanpay/nomina/internal/queue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("nomina.service",
	fx.Provide(service.NewService),
	fx.Invoke(registerJobs),
	fx.Invoke(startRecovery),
)

type jobParams struct {
	fx.In

	Svc      nominadomain.Service
	QueueSvc queuedomain.Service
	Log      *zap.Logger
}

func registerJobs(p jobParams) {
	log := p.Log.Named("nomina.jobs")
	p.QueueSvc.Register(nominadomain.JobCalculate, func(ctx context.Context, payload map[string]any) error {
		raw, _ := payload["run_id"].(string)
		runID, err := snowflake.ParseString(raw)
		if err != nil {
			// Malformed payloads never become valid on retry.
			log.Error("unparseable run id in calculation job", zap.String("run_id", raw))
			return nil
		}
		return p.Svc.CompleteBackground(ctx, runID)
	})
}

type recoveryParams struct {
	fx.In

	Svc    nominadomain.Service
	Holder *config.PayrollConfigHolder
	Log    *zap.Logger
}

// startRecovery sweeps runs abandoned in calculating state, once per worker
// interval. A crashed worker otherwise leaves its run stuck forever.
func startRecovery(lc fx.Lifecycle, p recoveryParams) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go recoveryLoop(ctx, p)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}

func recoveryLoop(ctx context.Context, p recoveryParams) {
	log := p.Log.Named("nomina.recovery")
	for {
		cfg := p.Holder.Get()
		interval := cfg.WorkerInterval
		if interval <= 0 {
			interval = 15 * time.Second
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if _, err := p.Svc.RecoverStuck(ctx, cfg.RecoveryThreshold); err != nil {
			log.Error("stuck run recovery failed", zap.Error(err))
		}
	}
}
