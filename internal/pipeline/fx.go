package pipeline

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagestats/internal/config"
	"github.com/smallbiznis/usagestats/internal/observability/metrics"
	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"github.com/smallbiznis/usagestats/internal/usage/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params collects the pipeline's dependencies.
type Params struct {
	fx.In

	Usage       usagedomain.Source
	Subscribers subscriberdomain.Source
	Normalizer  *service.Normalizer
	Exclusions  Exclusions
	IDs         *snowflake.Node
	Log         *zap.Logger
	Metrics     *metrics.PipelineMetrics
}

func provide(p Params) *Pipeline {
	return New(p.Usage, p.Subscribers, p.Normalizer, p.Exclusions, p.IDs, p.Log, p.Metrics)
}

func provideExclusions(cfg config.Config) Exclusions {
	return NewExclusions(cfg.ExcludedUserIDs, cfg.ExcludedInstitutions)
}

func provideMetrics(cfg config.Config) *metrics.PipelineMetrics {
	return metrics.PipelineWithConfig(metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}

// FilterFromConfig builds the run filter from the configured year and
// institution lists.
func FilterFromConfig(cfg config.Config) usagedomain.Filter {
	f := usagedomain.Filter{
		Years:        make(map[int]struct{}, len(cfg.Years)),
		Institutions: make(map[string]struct{}, len(cfg.Institutions)),
	}
	for _, y := range cfg.Years {
		f.Years[y] = struct{}{}
	}
	for _, name := range cfg.Institutions {
		f.Institutions[name] = struct{}{}
	}
	return f
}

var Module = fx.Module("pipeline",
	fx.Provide(
		provideExclusions,
		provideMetrics,
		provide,
	),
)
