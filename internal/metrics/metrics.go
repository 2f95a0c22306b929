// Package metrics exposes Prometheus collectors for plan edits and batch jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fitrooms"

// Metrics groups the collectors updated by the service layer.
type Metrics struct {
	JobRuns           *prometheus.CounterVec
	JobDuration       *prometheus.HistogramVec
	JobUnitFailures   *prometheus.CounterVec
	DailyStatsWritten prometheus.Counter
	SnapshotsWritten  prometheus.Counter
	LockRejections    *prometheus.CounterVec
	OverridesRecorded *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Batch job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of batch job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		JobUnitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_unit_failures_total",
			Help:      "Per-user or per-room failures inside batch jobs.",
		}, []string{"job"}),
		DailyStatsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_stats_written_total",
			Help:      "Daily stat rows upserted by settlement.",
		}),
		SnapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaderboard_snapshots_written_total",
			Help:      "Leaderboard snapshots upserted.",
		}),
		LockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_lock_rejections_total",
			Help:      "Plan mutations refused because the plan date was locked.",
		}, []string{"operation"}),
		OverridesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_overrides_recorded_total",
			Help:      "Override records appended, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.JobRuns,
			m.JobDuration,
			m.JobUnitFailures,
			m.DailyStatsWritten,
			m.SnapshotsWritten,
			m.LockRejections,
			m.OverridesRecorded,
		)
	}
	return m
}

// ObserveJob records one job run. It is meant to be deferred with the start
// time and a pointer to the job's returned error.
func (m *Metrics) ObserveJob(job string, start time.Time, err *error) {
	outcome := "success"
	if err != nil && *err != nil {
		outcome = "error"
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
