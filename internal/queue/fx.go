package queue

import (
	"context"
	"time"

	"github.com/andeanpay/nomina/internal/clock"
	"github.com/andeanpay/nomina/internal/config"
	queuedomain "github.com/andeanpay/nomina/internal/queue/domain"
	"github.com/andeanpay/nomina/internal/queue/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("queue",
	fx.Provide(service.NewService),
	fx.Invoke(startWorker),
)

type workerParams struct {
	fx.In

	Svc    queuedomain.Service
	Holder *config.PayrollConfigHolder
	Clock  clock.Clock
	Log    *zap.Logger
}

func startWorker(lc fx.Lifecycle, p workerParams) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go runLoop(ctx, p)

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

func runLoop(ctx context.Context, p workerParams) {
	log := p.Log.Named("queue.worker")
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

		if _, err := p.Svc.RunOnce(ctx, cfg.WorkerBatchSize); err != nil {
			log.Error("queue pass failed", zap.Error(err))
		}
	}
}
