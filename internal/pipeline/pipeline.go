// Package pipeline orchestrates one aggregation run: fetch, exclude, normalize,
// join, roll up. A run is a pure function of the store contents plus the
// filter; nothing is mutated in place and reruns are idempotent.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/usagestats/internal/observability/metrics"
	"github.com/smallbiznis/usagestats/internal/rollup"
	subscriberdomain "github.com/smallbiznis/usagestats/internal/subscriber/domain"
	usagedomain "github.com/smallbiznis/usagestats/internal/usage/domain"
	"github.com/smallbiznis/usagestats/internal/usage/service"
	"go.uber.org/zap"
)

// ErrNoExclusions guards against a run that would count internal traffic.
var ErrNoExclusions = errors.New("exclusion lists are empty")

// Exclusions names the internal accounts dropped before normalization.
type Exclusions struct {
	UserIDs      map[int64]struct{}
	Institutions map[string]struct{}
}

// NewExclusions builds the lookup sets from the configured lists.
func NewExclusions(userIDs []int64, institutions []string) Exclusions {
	e := Exclusions{
		UserIDs:      make(map[int64]struct{}, len(userIDs)),
		Institutions: make(map[string]struct{}, len(institutions)),
	}
	for _, id := range userIDs {
		e.UserIDs[id] = struct{}{}
	}
	for _, name := range institutions {
		e.Institutions[name] = struct{}{}
	}
	return e
}

func (e Exclusions) empty() bool {
	return len(e.UserIDs) == 0 || len(e.Institutions) == 0
}

func (e Exclusions) dropUsage(row usagedomain.RawUsageRow) bool {
	if _, ok := e.UserIDs[row.UserID]; ok {
		return true
	}
	_, ok := e.Institutions[row.InstitutionName]
	return ok
}

func (e Exclusions) dropSubscriber(row subscriberdomain.SubscriberRecord) bool {
	if _, ok := e.UserIDs[row.UserID]; ok {
		return true
	}
	_, ok := e.Institutions[row.InstitutionName]
	return ok
}

// Result is the immutable outcome of one run. Readers hold it as a snapshot;
// the next run replaces it wholesale.
type Result struct {
	RunID       snowflake.ID
	GeneratedAt time.Time
	Filter      usagedomain.Filter

	Tables  rollup.Set
	Dataset *rollup.Dataset

	Joined      []usagedomain.JoinedRecord
	Subscribers []subscriberdomain.SubscriberRecord

	Errors   []usagedomain.ValidationError
	Warnings []usagedomain.IntegrityWarning
}

// Pipeline wires the sources, the normalizer and the exclusion lists.
type Pipeline struct {
	usage       usagedomain.Source
	subscribers subscriberdomain.Source
	normalizer  *service.Normalizer
	exclusions  Exclusions
	ids         *snowflake.Node
	log         *zap.Logger
	metrics     *metrics.PipelineMetrics
}

func New(
	usage usagedomain.Source,
	subscribers subscriberdomain.Source,
	normalizer *service.Normalizer,
	exclusions Exclusions,
	ids *snowflake.Node,
	log *zap.Logger,
	m *metrics.PipelineMetrics,
) *Pipeline {
	return &Pipeline{
		usage:       usage,
		subscribers: subscribers,
		normalizer:  normalizer,
		exclusions:  exclusions,
		ids:         ids,
		log:         log.Named("pipeline"),
		metrics:     m,
	}
}

// Run executes one aggregation pass. Empty rollups are a valid outcome; only
// fetch failures or a missing exclusion configuration abort the run.
func (p *Pipeline) Run(ctx context.Context, filter usagedomain.Filter) (*Result, error) {
	started := time.Now()
	if p.exclusions.empty() {
		p.metrics.IncRun(metrics.RunStatusError)
		return nil, ErrNoExclusions
	}

	rawUsage, err := p.usage.FetchUsage(ctx, filter)
	if err != nil {
		p.metrics.IncRun(metrics.RunStatusError)
		return nil, err
	}
	p.metrics.AddRowsFetched("usage", len(rawUsage))

	subscribers, err := p.subscribers.FetchSubscribers(ctx, subscriberdomain.Filter{Institutions: filter.Institutions})
	if err != nil {
		p.metrics.IncRun(metrics.RunStatusError)
		return nil, err
	}
	p.metrics.AddRowsFetched("subscribers", len(subscribers))

	// Exclusions come first so internal accounts never reach normalization,
	// the join, or any count.
	kept := rawUsage[:0:0]
	for _, row := range rawUsage {
		if p.exclusions.dropUsage(row) {
			continue
		}
		kept = append(kept, row)
	}
	keptSubs := subscribers[:0:0]
	for _, row := range subscribers {
		if p.exclusions.dropSubscriber(row) {
			continue
		}
		keptSubs = append(keptSubs, row)
	}

	records, rejects, warnings := p.normalizer.NormalizeAll(kept)
	p.metrics.AddRowsRejected(len(rejects))

	joined, joinWarnings := Join(records, keptSubs)
	warnings = append(warnings, joinWarnings...)
	for _, w := range warnings {
		p.metrics.IncWarning(w.Kind)
	}

	tables := rollup.Compute(joined, keptSubs)
	p.recordTableSizes(tables)

	result := &Result{
		RunID:       p.ids.Generate(),
		GeneratedAt: time.Now().UTC(),
		Filter:      filter,
		Tables:      tables,
		Dataset:     rollup.NewDataset(joined),
		Joined:      joined,
		Subscribers: keptSubs,
		Errors:      rejects,
		Warnings:    warnings,
	}

	p.metrics.IncRun(metrics.RunStatusOK)
	p.metrics.ObserveRunDuration(time.Since(started))
	p.log.Info("aggregation run complete",
		zap.String("run_id", result.RunID.String()),
		zap.Int("usage_rows", len(rawUsage)),
		zap.Int("usage_kept", len(kept)),
		zap.Int("subscriber_rows", len(keptSubs)),
		zap.Int("joined_rows", len(joined)),
		zap.Int("rejected_rows", len(rejects)),
		zap.Int("warnings", len(warnings)),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

func (p *Pipeline) recordTableSizes(tables rollup.Set) {
	p.metrics.SetTableRows(metrics.TableGlobalMonthlyUsers, len(tables.GlobalMonthlyUsers))
	p.metrics.SetTableRows(metrics.TableInstitutionMonthlyCodes, len(tables.InstitutionMonthlyCodes))
	p.metrics.SetTableRows(metrics.TableInstitutionMonthlyUsers, len(tables.InstitutionMonthlyUsers))
	p.metrics.SetTableRows(metrics.TableInstitutionDatabaseYearly, len(tables.InstitutionDatabaseYearly))
	p.metrics.SetTableRows(metrics.TableSubscribersByStatus, len(tables.SubscribersByStatus))
	p.metrics.SetTableRows(metrics.TableSubscribersByYearCreated, len(tables.SubscribersByYearCreated))
	p.metrics.SetTableRows(metrics.TableSubscribersByYearLastAccess, len(tables.SubscribersByYearLastAccess))
}
