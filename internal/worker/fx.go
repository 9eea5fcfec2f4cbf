package worker

import (
	"context"

	"github.com/soundline/vocalis/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("worker",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartWorker),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:   cfg.Worker.RunInterval,
		DrainBatch:    cfg.Worker.DrainBatch,
		SweepInterval: cfg.Worker.SweepInterval,
		EnabledJobs:   cfg.Worker.EnabledJobs,
	}
}

func StartWorker(lc fx.Lifecycle, w *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go w.RunForever(runCtx)

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
