package reconciler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/metrics"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// HeartbeatTimeout is how long a worker can go without a heartbeat before
// the reconciler marks it offline.
const HeartbeatTimeout = 30 * time.Second

// interval between reconciliation cycles.
const interval = 10 * time.Second

// Reconciler periodically sweeps stored Workers and queued Jobs, marking
// workers offline on missed heartbeats and evicting jobs that exceeded
// their MaxWaitTime in the queue. It does not reschedule evicted jobs or
// reassign a lost worker's jobs: pkg/engine fails a lost worker's jobs, and
// pkg/scheduler skips a queued job once its stored phase is terminal.
type Reconciler struct {
	store  storage.Store
	broker *events.Broker
	logger zerolog.Logger
	mu     sync.Mutex
	stopCh chan struct{}
}

// New creates a Reconciler over store, publishing lifecycle events through broker.
func New(store storage.Store, broker *events.Broker) *Reconciler {
	return &Reconciler{
		store:  store,
		broker: broker,
		logger: log.WithComponent("reconciler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the reconciliation loop in a background goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop halts the reconciliation loop.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().Msg("reconciler started")

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.reconcileWorkers(); err != nil {
		r.logger.Error().Err(err).Msg("failed to reconcile workers")
	}
	if err := r.reconcileQueue(); err != nil {
		r.logger.Error().Err(err).Msg("failed to reconcile queue")
	}
}

// reconcileWorkers marks workers offline once they exceed HeartbeatTimeout
// without a heartbeat, and emits a worker.lost event for each of their
// active jobs so pkg/engine can fail them.
func (r *Reconciler) reconcileWorkers() error {
	workers, err := r.store.ListWorkers()
	if err != nil {
		return err
	}

	now := time.Now()
	for _, w := range workers {
		if w.Status == types.WorkerOffline || w.Status == types.WorkerDrained {
			continue
		}
		if now.Sub(w.LastHeartbeat) <= HeartbeatTimeout {
			continue
		}

		r.logger.Warn().
			Str("worker_id", w.ID).
			Str("pool", w.PoolName).
			Dur("since_heartbeat", now.Sub(w.LastHeartbeat)).
			Msg("worker missed heartbeat, marking offline")

		lostJobs := w.ActiveJobIDs
		w.Status = types.WorkerOffline
		w.ActiveJobIDs = nil
		if err := r.store.UpdateWorker(w); err != nil {
			r.logger.Error().Err(err).Str("worker_id", w.ID).Msg("failed to mark worker offline")
			continue
		}
		metrics.WorkersMarkedOfflineTotal.Inc()

		for _, jobID := range lostJobs {
			r.publish(&types.ExecutionEvent{
				JobID:     jobID,
				Type:      types.EventWorkerLost,
				Timestamp: now,
				Message:   "worker " + w.ID + " stopped heartbeating",
				Metadata:  map[string]string{"workerId": w.ID},
			})
		}
	}

	return nil
}

// reconcileQueue evicts jobs that have been pending longer than their
// MaxWaitTime, marking them failed with ReasonSchedulingTimeout.
func (r *Reconciler) reconcileQueue() error {
	pending, err := r.store.ListJobsByPhase(types.JobPending)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, job := range pending {
		if job.MaxWaitTime <= 0 {
			continue
		}
		if now.Sub(job.SubmittedAt) <= job.MaxWaitTime {
			continue
		}

		r.logger.Warn().
			Str("job_id", job.ID).
			Dur("waited", now.Sub(job.SubmittedAt)).
			Msg("job exceeded max wait time, evicting")

		job.Phase = types.JobFailed
		job.FinishedAt = &now
		job.Error = types.NewJobError(types.ReasonSchedulingTimeout, "job exceeded max wait time in queue")
		if err := r.store.UpdateJob(job); err != nil {
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to evict job")
			continue
		}
		metrics.JobsEvictedTotal.Inc()

		r.publish(&types.ExecutionEvent{
			JobID:     job.ID,
			Type:      types.EventJobFailed,
			Timestamp: now,
			Message:   job.Error.Error(),
		})
	}

	return nil
}

// publish assigns event an ID (Broker.Publish would otherwise do this too
// late for AppendEvent's composite key), appends it to the durable per-job
// log, then fans it out; a persistence failure is logged but never blocks
// live subscribers.
func (r *Reconciler) publish(event *types.ExecutionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := r.store.AppendEvent(event); err != nil {
		r.logger.Error().Err(err).Str("job_id", event.JobID).Msg("failed to persist event")
	}
	r.broker.Publish(event)
}
