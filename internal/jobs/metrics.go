package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs      *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	conflicts *prometheus.CounterVec
	expiring  prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddURLConflicts counts duplicate active URLs found by the catalog
// integrity scan, per domain.
func (m *Metrics) AddURLConflicts(domain string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflicts.WithLabelValues(domain).Add(float64(count))
}

// AddExpiringDelegations counts delegations the digest flagged as expiring.
func (m *Metrics) AddExpiringDelegations(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.expiring.Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "acacia_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "acacia_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acacia_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "acacia_route_url_conflicts_total",
		Help: "Duplicate active route URLs detected by the integrity scan.",
	}, []string{"domain"})
	expiring := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "acacia_delegations_expiring_total",
		Help: "Delegations reported by the expiry digest.",
	})
	registerer.MustRegister(runs, failures, duration, conflicts, expiring)
	return &Metrics{runs: runs, failures: failures, duration: duration, conflicts: conflicts, expiring: expiring}
}
