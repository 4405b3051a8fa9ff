// Package metrics provides batch run metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for entry counters.
const (
	OutcomeInserted        = "inserted"
	OutcomeUpdated         = "updated"
	OutcomeAffected        = "affected"
	OutcomeRejected        = "rejected"
	OutcomeRejectedUnknown = "rejected_unknown"
)

// Skip reasons for period files.
const (
	SkipAlreadyProcessed = "already_processed"
	SkipMalformed        = "malformed"
	SkipIndeterminate    = "indeterminate"
)

// BatchMetrics contains Prometheus metrics for batch runs
type BatchMetrics struct {
	runsTotal            *prometheus.CounterVec
	runDuration          prometheus.Histogram
	lastSuccessTimestamp prometheus.Gauge
	rosterEntriesTotal   *prometheus.CounterVec
	attendanceTotal      *prometheus.CounterVec
	periodsProcessed     prometheus.Counter
	periodsSkippedTotal  *prometheus.CounterVec
	promotionsTotal      prometheus.Counter
	exportFailuresTotal  *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewBatchMetrics creates and registers batch metrics
func NewBatchMetrics(registry *prometheus.Registry) (*BatchMetrics, error) {
	m := &BatchMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BatchMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftledger_runs_total",
			Help: "Total number of batch runs",
		},
		[]string{"trigger", "status"},
	)
	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiftledger_run_duration_seconds",
			Help:    "Time taken for a batch run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
	)
	m.lastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiftledger_last_success_timestamp_seconds",
			Help: "Unix time of the last successful batch run",
		},
	)
	m.rosterEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftledger_roster_entries_total",
			Help: "Roster entries by outcome",
		},
		[]string{"outcome"},
	)
	m.attendanceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftledger_attendance_entries_total",
			Help: "Weekly attendance entries by outcome",
		},
		[]string{"outcome"},
	)
	m.periodsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftledger_periods_processed_total",
			Help: "Periods ingested and marked processed",
		},
	)
	m.periodsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftledger_periods_skipped_total",
			Help: "Period files not ingested",
		},
		[]string{"reason"},
	)
	m.promotionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shiftledger_promotions_total",
			Help: "Employees promoted",
		},
	)
	m.exportFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiftledger_export_failures_total",
			Help: "Report files that could not be exported",
		},
		[]string{"target"},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.lastSuccessTimestamp,
		m.rosterEntriesTotal,
		m.attendanceTotal,
		m.periodsProcessed,
		m.periodsSkippedTotal,
		m.promotionsTotal,
		m.exportFailuresTotal,
	}
}

// Describe implements the Collector interface
func (m *BatchMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *BatchMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRun records a finished run. The success timestamp only moves on success.
func (m *BatchMetrics) RecordRun(trigger, status string, duration time.Duration, finishedAt time.Time, success bool) {
	m.runsTotal.WithLabelValues(trigger, status).Inc()
	m.runDuration.Observe(duration.Seconds())
	if success {
		m.lastSuccessTimestamp.Set(float64(finishedAt.Unix()))
	}
}

// RecordRoster adds roster sync counts.
func (m *BatchMetrics) RecordRoster(inserted, updated, rejected int) {
	m.rosterEntriesTotal.WithLabelValues(OutcomeInserted).Add(float64(inserted))
	m.rosterEntriesTotal.WithLabelValues(OutcomeUpdated).Add(float64(updated))
	m.rosterEntriesTotal.WithLabelValues(OutcomeRejected).Add(float64(rejected))
}

// RecordPeriod adds one ingested period's counts.
func (m *BatchMetrics) RecordPeriod(affected, rejected, rejectedUnknown int) {
	m.periodsProcessed.Inc()
	m.attendanceTotal.WithLabelValues(OutcomeAffected).Add(float64(affected))
	m.attendanceTotal.WithLabelValues(OutcomeRejected).Add(float64(rejected))
	m.attendanceTotal.WithLabelValues(OutcomeRejectedUnknown).Add(float64(rejectedUnknown))
}

// RecordSkipped counts period files that were not ingested.
func (m *BatchMetrics) RecordSkipped(reason string, n int) {
	if n > 0 {
		m.periodsSkippedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordPromotions adds promoted employees.
func (m *BatchMetrics) RecordPromotions(n int) {
	m.promotionsTotal.Add(float64(n))
}

// RecordExportFailure counts one failed export.
func (m *BatchMetrics) RecordExportFailure(target string) {
	m.exportFailuresTotal.WithLabelValues(target).Inc()
}
