package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RunStatusOK    = "ok"
	RunStatusError = "error"
)

const (
	TableGlobalMonthlyUsers          = "global_monthly_users"
	TableInstitutionMonthlyCodes     = "institution_monthly_codes"
	TableInstitutionMonthlyUsers     = "institution_monthly_users"
	TableInstitutionDatabaseYearly   = "institution_database_yearly"
	TableSubscribersByStatus         = "subscribers_by_status"
	TableSubscribersByYearCreated    = "subscribers_by_year_created"
	TableSubscribersByYearLastAccess = "subscribers_by_year_last_access"
)

// Config carries the constant labels stamped on every series.
type Config struct {
	ServiceName string
	Environment string
}

// PipelineMetrics captures aggregation run health signals.
type PipelineMetrics struct {
	runs         *prometheus.CounterVec
	runDuration  prometheus.Observer
	rowsFetched  *prometheus.CounterVec
	rowsRejected prometheus.Counter
	warnings     *prometheus.CounterVec
	tableRows    *prometheus.GaugeVec
	snapshotAge  prometheus.Gauge
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

// PipelineWithConfig returns the singleton pipeline metrics registry using config labels.
func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "usagestats"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "usagestats_pipeline_runs_total",
		Help:        "Aggregation pipeline runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "usagestats_pipeline_run_duration_seconds",
		Help:        "End-to-end aggregation run latency.",
		Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	})
	rowsFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "usagestats_pipeline_rows_fetched_total",
		Help:        "Rows fetched from the platform store by source.",
		ConstLabels: constLabels,
	}, []string{"source"})
	rowsRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "usagestats_pipeline_rows_rejected_total",
		Help:        "Usage rows rejected by normalization.",
		ConstLabels: constLabels,
	})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "usagestats_pipeline_warnings_total",
		Help:        "Data integrity warnings by kind.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	tableRows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "usagestats_rollup_table_rows",
		Help:        "Row counts of the latest computed rollup tables.",
		ConstLabels: constLabels,
	}, []string{"table"})
	snapshotAge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "usagestats_snapshot_age_seconds",
		Help:        "Seconds since the last successful aggregation run.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		runs,
		runDuration,
		rowsFetched,
		rowsRejected,
		warnings,
		tableRows,
		snapshotAge,
	)

	return &PipelineMetrics{
		runs:         runs,
		runDuration:  runDuration,
		rowsFetched:  rowsFetched,
		rowsRejected: rowsRejected,
		warnings:     warnings,
		tableRows:    tableRows,
		snapshotAge:  snapshotAge,
	}
}

// IncRun increments the run counter for the given outcome.
func (m *PipelineMetrics) IncRun(status string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// ObserveRunDuration records end-to-end run latency in seconds.
func (m *PipelineMetrics) ObserveRunDuration(duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}

// AddRowsFetched increments the fetched-row counter for a source by count.
func (m *PipelineMetrics) AddRowsFetched(source string, count int) {
	if m == nil || m.rowsFetched == nil || count <= 0 {
		return
	}
	m.rowsFetched.WithLabelValues(source).Add(float64(count))
}

// AddRowsRejected increments the rejected-row counter by count.
func (m *PipelineMetrics) AddRowsRejected(count int) {
	if m == nil || m.rowsRejected == nil || count <= 0 {
		return
	}
	m.rowsRejected.Add(float64(count))
}

// IncWarning increments the integrity warning counter for a kind.
func (m *PipelineMetrics) IncWarning(kind string) {
	if m == nil || m.warnings == nil {
		return
	}
	m.warnings.WithLabelValues(kind).Inc()
}

// SetTableRows records the row count of one freshly computed table.
func (m *PipelineMetrics) SetTableRows(table string, rows int) {
	if m == nil || m.tableRows == nil {
		return
	}
	m.tableRows.WithLabelValues(table).Set(float64(rows))
}

// SetSnapshotAge records the staleness of the served snapshot.
func (m *PipelineMetrics) SetSnapshotAge(age time.Duration) {
	if m == nil || m.snapshotAge == nil {
		return
	}
	if age < 0 {
		age = 0
	}
	m.snapshotAge.Set(age.Seconds())
}
