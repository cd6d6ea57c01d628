package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hodei/pipelines/pkg/events"
	"github.com/hodei/pipelines/pkg/log"
	"github.com/hodei/pipelines/pkg/metrics"
	"github.com/hodei/pipelines/pkg/pool"
	"github.com/hodei/pipelines/pkg/storage"
	"github.com/hodei/pipelines/pkg/types"
)

// tickInterval is how often the scheduler drains the queue.
const tickInterval = 2 * time.Second

// JobSource is the Job Queue as seen by the scheduler: pull the next
// pending job, and push one back when it fails to place.
type JobSource interface {
	Dequeue() *types.Job
	Enqueue(job *types.Job) error
}

// Scheduler implements the first of placement's two phases: picking a
// ResourcePool for a queued Job. It filters candidate pools by provider
// health and by the job's PoolLabelSelector (a &&/grouping expression over
// pool labels, see labelexpr.go), ranks what's left with a PoolStrategy
// (round robin, least loaded, greedy best fit, or bin packing over the
// Resource Pool Registry's utilization snapshots), and records the result
// as Job.AssignedPool. It never picks a worker — pkg/engine does that
// within the assigned pool, preferring an idle worker before provisioning.
type Scheduler struct {
	queue    JobSource
	store    storage.Store
	pools    *pool.Registry
	broker   *events.Broker
	strategy PoolStrategy
	logger   zerolog.Logger
	stopCh   chan struct{}
}

// New creates a Scheduler using strategy for pool placement.
func New(queue JobSource, store storage.Store, pools *pool.Registry, broker *events.Broker, strategy PoolStrategy) *Scheduler {
	return &Scheduler{
		queue:    queue,
		store:    store,
		pools:    pools,
		broker:   broker,
		strategy: strategy,
		logger:   log.WithComponent("scheduler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the scheduling loop in a background goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts the scheduling loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.logger.Info().Str("strategy", s.strategy.Name()).Msg("scheduler started")

	for {
		select {
		case <-ticker.C:
			s.drainQueue()
		case <-s.stopCh:
			s.logger.Info().Msg("scheduler stopped")
			return
		}
	}
}

// drainQueue pulls every job currently queued into a local batch, then
// attempts to place each one. A job that fails placement this tick (no
// healthy, label-matching pool with room) is pushed back onto the queue
// rather than dropped, so it keeps being considered on later ticks once a
// pool becomes eligible. Draining into a batch first, instead of looping
// Dequeue/place/Enqueue directly, avoids re-placing the same failed job in
// an infinite loop within one tick and keeps one perpetually-unplaceable
// job from blocking every job behind it. A job whose stored phase is
// already terminal (for example evicted by pkg/reconciler) is dropped.
func (s *Scheduler) drainQueue() {
	var batch []*types.Job
	for {
		job := s.queue.Dequeue()
		if job == nil {
			break
		}
		batch = append(batch, job)
	}

	for _, job := range batch {
		if stored, err := s.store.GetJob(job.ID); err == nil && stored.Phase.Terminal() {
			continue
		}
		if err := s.place(job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("no pool available, returning job to queue")
			job.Phase = types.JobPending
			if uerr := s.store.UpdateJob(job); uerr != nil {
				s.logger.Error().Err(uerr).Str("job_id", job.ID).Msg("failed to persist requeued job")
			}
			if eerr := s.queue.Enqueue(job); eerr != nil {
				s.logger.Error().Err(eerr).Str("job_id", job.ID).Msg("failed to return unplaceable job to queue")
			}
		}
	}
}

// place selects a pool for job and records the assignment.
func (s *Scheduler) place(job *types.Job) error {
	timer := metrics.NewTimer()

	candidates, err := s.candidatePools(job)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		metrics.JobsFailedTotal.WithLabelValues(string(types.ReasonSchedulingTimeout)).Inc()
		return errNoCandidate{jobID: job.ID}
	}

	selected := s.strategy.SelectPool(candidates, job, s.pools)

	now := time.Now()
	job.Phase = types.JobScheduled
	job.ScheduledAt = &now
	job.AssignedPool = selected.Name

	if err := s.store.UpdateJob(job); err != nil {
		return err
	}

	metrics.JobQueueWaitSeconds.Observe(job.Waiting().Seconds())
	timer.ObserveDuration(metrics.SchedulingLatency)
	metrics.JobsScheduledTotal.Inc()

	s.logger.Info().
		Str("job_id", job.ID).
		Str("pool", selected.Name).
		Str("strategy", s.strategy.Name()).
		Dur("waited", job.Waiting()).
		Msg("job scheduled to pool")

	s.publish(&types.ExecutionEvent{
		JobID:     job.ID,
		Type:      types.EventJobScheduled,
		Timestamp: now,
		Metadata:  map[string]string{"pool": selected.Name},
	})

	return nil
}

// publish assigns event an ID (Broker.Publish would otherwise do this too
// late for AppendEvent's composite key), appends it to the durable per-job
// log, then fans it out; a persistence failure is logged but never blocks
// live subscribers.
func (s *Scheduler) publish(event *types.ExecutionEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := s.store.AppendEvent(event); err != nil {
		s.logger.Error().Err(err).Str("job_id", event.JobID).Msg("failed to persist event")
	}
	s.broker.Publish(event)
}

// candidatePools returns every pool whose provider is healthy and whose
// labels satisfy job's PoolLabelSelector, narrowed to exactly PoolName if
// the job pinned one.
func (s *Scheduler) candidatePools(job *types.Job) ([]*types.ResourcePool, error) {
	all, err := s.store.ListPools()
	if err != nil {
		return nil, err
	}

	selector, err := ParseLabelExpr(job.Requirements.PoolLabelSelector)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	candidates := make([]*types.ResourcePool, 0, len(all))
	for _, p := range all {
		if job.Requirements.PoolName != "" && p.Name != job.Requirements.PoolName {
			continue
		}
		if !s.pools.ProviderHealthy(p.Provider) {
			continue
		}
		if !selector.Match(p.Labels) {
			continue
		}
		candidates = append(candidates, p)
	}
	return candidates, nil
}

type errNoCandidate struct{ jobID string }

func (e errNoCandidate) Error() string {
	return "no pool available for job " + e.jobID
}
