package ledger

import (
	"context"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/ledger/repair"
	"github.com/smallbiznis/labdesk/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(service.NewService),
	fx.Provide(func(cfg config.Config) repair.Config {
		return repair.Config{
			BatchSize:    cfg.RepairBatchSize,
			PollInterval: cfg.RepairPollInterval,
		}
	}),
	fx.Provide(repair.NewWorker),
	fx.Invoke(func(lc fx.Lifecycle, w *repair.Worker) {
		workerCtx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go w.RunForever(workerCtx)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}),
)
