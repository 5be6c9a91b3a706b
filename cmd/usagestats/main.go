package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagestats/internal/clock"
	"github.com/smallbiznis/usagestats/internal/config"
	"github.com/smallbiznis/usagestats/internal/export"
	"github.com/smallbiznis/usagestats/internal/logger"
	"github.com/smallbiznis/usagestats/internal/migration"
	"github.com/smallbiznis/usagestats/internal/pipeline"
	"github.com/smallbiznis/usagestats/internal/refresh"
	"github.com/smallbiznis/usagestats/internal/server"
	"github.com/smallbiznis/usagestats/internal/subscriber"
	"github.com/smallbiznis/usagestats/internal/taxonomy"
	"github.com/smallbiznis/usagestats/internal/usage"
	"github.com/smallbiznis/usagestats/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Functional Domains
		taxonomy.Module,
		usage.Module,
		subscriber.Module,
		pipeline.Module,
		refresh.Module,
		server.Module,

		fx.Invoke(runBatch),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// runBatch executes one aggregation pass, writes the CSV exports and stops
// the application. In serve mode the refresh worker and HTTP server take over
// instead.
func runBatch(
	lc fx.Lifecycle,
	cfg config.Config,
	p *pipeline.Pipeline,
	holder *refresh.Holder,
	log *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	if cfg.IsServe() {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				result, err := p.Run(context.Background(), pipeline.FilterFromConfig(cfg))
				if err != nil {
					log.Error("aggregation run failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				holder.Publish(result)

				if err := export.New(cfg.OutputDir, log).WriteAll(result); err != nil {
					log.Error("export failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}
