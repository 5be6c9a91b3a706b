// Package refresh periodically reruns the aggregation pipeline and publishes
// each result as the snapshot served to readers. A failed run keeps the
// previous snapshot in place.
package refresh

import (
	"context"
	"time"

	"github.com/smallbiznis/usagestats/internal/clock"
	"github.com/smallbiznis/usagestats/internal/observability/metrics"
	"github.com/smallbiznis/usagestats/internal/pipeline"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"go.uber.org/zap"
)

type Worker struct {
	pipeline *pipeline.Pipeline
	holder   *Holder
	filter   usagedomain.Filter
	interval time.Duration
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.PipelineMetrics
}

func NewWorker(
	p *pipeline.Pipeline,
	holder *Holder,
	filter usagedomain.Filter,
	interval time.Duration,
	clk clock.Clock,
	log *zap.Logger,
	m *metrics.PipelineMetrics,
) *Worker {
	return &Worker{
		pipeline: p,
		holder:   holder,
		filter:   filter,
		interval: interval,
		clock:    clk,
		log:      log.Named("refresh"),
		metrics:  m,
	}
}

// RunOnce executes one refresh and publishes the result on success.
func (w *Worker) RunOnce(ctx context.Context) error {
	result, err := w.pipeline.Run(ctx, w.filter)
	if err != nil {
		return err
	}
	w.holder.Publish(result)
	w.metrics.SetSnapshotAge(0)
	return nil
}

// RunForever refreshes on the configured interval until ctx is cancelled.
// The first refresh happens immediately so the server has data to serve.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("refresh failed, keeping previous snapshot", zap.Error(err))
		}
		if latest := w.holder.Latest(); latest != nil {
			w.metrics.SetSnapshotAge(w.clock.Now().Sub(latest.GeneratedAt))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
