package refresh

import (
	"context"

	"github.com/smallbiznis/usagestats/internal/clock"
	"github.com/smallbiznis/usagestats/internal/config"
	"github.com/smallbiznis/usagestats/internal/observability/metrics"
	"github.com/smallbiznis/usagestats/internal/pipeline"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Pipeline *pipeline.Pipeline
	Holder   *Holder
	Config   config.Config
	Clock    clock.Clock
	Log      *zap.Logger
	Metrics  *metrics.PipelineMetrics
}

func provideWorker(p Params) *Worker {
	return NewWorker(
		p.Pipeline,
		p.Holder,
		pipeline.FilterFromConfig(p.Config),
		p.Config.RefreshInterval,
		p.Clock,
		p.Log,
		p.Metrics,
	)
}

func startWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker) {
	if !cfg.IsServe() {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

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

var Module = fx.Module("refresh",
	fx.Provide(NewHolder),
	fx.Provide(provideWorker),
	fx.Invoke(startWorker),
)
