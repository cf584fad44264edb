package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "wxdata"

// Metrics holds the Prometheus counters and histograms for the batch jobs and the API.
type Metrics struct {
	// Ingest job.
	RecordsInserted prometheus.Counter
	RecordsSkipped  prometheus.Counter
	BulkConflicts   prometheus.Counter
	FilesProcessed  prometheus.Counter
	FilesFailed     prometheus.Counter
	RecordsStored   prometheus.Gauge

	// Analyze job.
	StatsInserted prometheus.Counter
	StatsSkipped  prometheus.Counter

	JobDuration        *prometheus.HistogramVec // labels: job={ingest,analyze}
	JobLastSuccessTime *prometheus.GaugeVec     // labels: job={ingest,analyze}

	HTTPRequests *prometheus.CounterVec // labels: method, status
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.RecordsInserted,
		m.RecordsSkipped,
		m.BulkConflicts,
		m.FilesProcessed,
		m.FilesFailed,
		m.RecordsStored,
		m.StatsInserted,
		m.StatsSkipped,
		m.JobDuration,
		m.JobLastSuccessTime,
		m.HTTPRequests,
	)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Raw observations persisted by ingestion.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Raw observations skipped because they were already stored.",
		}),
		BulkConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_conflicts_total",
			Help:      "Bulk inserts that fell back to per-record inserts.",
		}),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Station files ingested without error.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_failed_total",
			Help:      "Station files rejected as unreadable or malformed.",
		}),
		RecordsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records_stored",
			Help:      "Raw observations in the store after the last ingest run.",
		}),
		StatsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_inserted_total",
			Help:      "Yearly aggregates persisted by analysis.",
		}),
		StatsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_skipped_total",
			Help:      "Yearly aggregates skipped because they were already stored.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a complete batch job.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		JobLastSuccessTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last batch job that finished without error.",
		}, []string{"job"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method and response status.",
		}, []string{"method", "status"}),
	}
}

// Push sends everything gathered from g to a Prometheus Pushgateway, grouped under job.
func Push(ctx context.Context, url, job string, g prometheus.Gatherer) error {
	if err := push.New(url, job).Gatherer(g).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
