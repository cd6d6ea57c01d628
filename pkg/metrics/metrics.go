package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	JobsQueuedTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hodei_jobs_queued_total",
			Help: "Total number of jobs waiting in the queue by priority",
		},
		[]string{"priority"},
	)

	JobsByPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hodei_jobs_by_phase",
			Help: "Total number of jobs by lifecycle phase",
		},
		[]string{"phase"},
	)

	JobQueueWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hodei_job_queue_wait_seconds",
			Help:    "Time a job spent waiting in the queue before being scheduled",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hodei_jobs_evicted_total",
			Help: "Total number of jobs evicted from the queue after exceeding maxWaitTime",
		},
	)

	// Worker registry metrics
	WorkersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hodei_workers_total",
			Help: "Total number of workers by pool and status",
		},
		[]string{"pool", "status"},
	)

	// Scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hodei_scheduling_latency_seconds",
			Help:    "Time taken to place a job onto a worker in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hodei_jobs_scheduled_total",
			Help: "Total number of jobs successfully scheduled",
		},
	)

	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hodei_jobs_failed_total",
			Help: "Total number of failed jobs by reason",
		},
		[]string{"reason"},
	)

	// Resource pool / provider metrics
	PoolWorkersProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hodei_pool_workers_provisioned_total",
			Help: "Total number of workers provisioned by pool",
		},
		[]string{"pool"},
	)

	ProvisioningDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hodei_provisioning_duration_seconds",
			Help:    "Time taken by an Instance Provider to provision a worker",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProvisioningFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hodei_provisioning_failed_total",
			Help: "Total number of failed provisioning attempts by provider",
		},
		[]string{"provider"},
	)

	// Execution engine / interpreter metrics
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hodei_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "step"},
	)

	JobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hodei_job_duration_seconds",
			Help:    "End-to-end job execution duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hodei_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hodei_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)

	WorkersMarkedOfflineTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hodei_workers_marked_offline_total",
			Help: "Total number of workers marked offline after missing heartbeats",
		},
	)

	// Control-plane RPC metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hodei_api_requests_total",
			Help: "Total number of control-plane RPCs by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hodei_api_request_duration_seconds",
			Help:    "Control-plane RPC duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		JobsQueuedTotal,
		JobsByPhase,
		JobQueueWaitSeconds,
		JobsEvictedTotal,
		WorkersTotal,
		SchedulingLatency,
		JobsScheduledTotal,
		JobsFailedTotal,
		PoolWorkersProvisioned,
		ProvisioningDuration,
		ProvisioningFailedTotal,
		StepDuration,
		JobDuration,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		WorkersMarkedOfflineTotal,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
